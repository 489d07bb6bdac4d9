// routes_author.go
package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func registerAuthorRoutes(r *gin.Engine) {
	instr := r.Group("/instructor", instructorRequired())
	{
		instr.GET("/courses", instructorCoursesHandler)

		// полный редактор: черновик на сервере, одна отправка
		instr.GET("/courses/new", newDraftHandler)
		instr.GET("/drafts/:id", editDraftHandler)
		instr.POST("/drafts/:id", updateDraftHandler)

		// пошаговое наполнение уже созданного курса
		instr.GET("/content", contentManagerHandler)
		instr.POST("/content/:courseID/modules", addModuleHandler)
		instr.POST("/content/:courseID/lessons", addLessonHandler)
	}
}

func instructorCoursesHandler(c *gin.Context) {
	user := getCurrentUser(c)
	courses, err := backend.InstructorCourses(c.Request.Context(), user)
	if err != nil {
		logger.Warn("load instructor courses", "uid", user.UID, "error", err)
	}
	c.HTML(http.StatusOK, "instructor_courses.html", page(c, gin.H{
		"Courses": courses,
	}))
}

// ---------- редактор черновика ----------

func draftURL(id string) string {
	return "/instructor/drafts/" + id
}

// «Новый курс» всегда начинает с чистого черновика.
func newDraftHandler(c *gin.Context) {
	user := getCurrentUser(c)
	d, err := drafts.Create(c.Request.Context(), user.UID)
	if err != nil {
		logger.Error("create draft", "uid", user.UID, "error", err)
		c.String(http.StatusInternalServerError, "Не удалось создать черновик")
		return
	}
	c.Redirect(http.StatusFound, draftURL(d.ID))
}

func loadDraft(c *gin.Context) (*Draft, bool) {
	user := getCurrentUser(c)
	d, err := drafts.Get(c.Request.Context(), c.Param("id"), user.UID)
	if errors.Is(err, ErrDraftNotFound) {
		c.String(http.StatusNotFound, "Черновик не найден")
		return nil, false
	}
	if err != nil {
		logger.Error("load draft", "draft", c.Param("id"), "error", err)
		c.String(http.StatusInternalServerError, "Ошибка загрузки черновика")
		return nil, false
	}
	return d, true
}

func editDraftHandler(c *gin.Context) {
	d, ok := loadDraft(c)
	if !ok {
		return
	}
	renderEditor(c, http.StatusOK, d)
}

func renderEditor(c *gin.Context, status int, d *Draft) {
	categories, err := backend.Categories(c.Request.Context())
	if err != nil {
		logger.Warn("load categories", "error", err)
	}
	c.HTML(status, "instructor_editor.html", page(c, gin.H{
		"Draft":        d,
		"Categories":   categories,
		"Difficulties": difficultyLevels,
		"LessonTypes":  []LessonType{LessonVideo, LessonDocument, LessonLive, LessonText},
	}))
}

// parseOp разбирает значение кнопки: "remove_lesson:0:2" → ("remove_lesson", [0 2]).
func parseOp(raw string) (string, []int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	args := make([]int, 0, len(parts)-1)
	for _, p := range parts[1:] {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", nil, fmt.Errorf("op %q: %w", raw, ErrDraftIndex)
		}
		args = append(args, n)
	}
	return parts[0], args, nil
}

func opArgs(args []int, n int) error {
	if len(args) != n {
		return ErrDraftIndex
	}
	return nil
}

func applyDraftOp(d *Draft, op string, args []int) error {
	switch op {
	case "", "save":
		return nil
	case "add_module":
		d.Tree.AddModule()
		return nil
	case "remove_module":
		if err := opArgs(args, 1); err != nil {
			return err
		}
		return d.Tree.RemoveModule(args[0])
	case "add_lesson":
		if err := opArgs(args, 1); err != nil {
			return err
		}
		return d.Tree.AddLesson(args[0])
	case "remove_lesson":
		if err := opArgs(args, 2); err != nil {
			return err
		}
		return d.Tree.RemoveLesson(args[0], args[1])
	default:
		return fmt.Errorf("op %q: %w", op, ErrDraftField)
	}
}

func draftErrorMessage(err error) string {
	switch {
	case errors.Is(err, ErrDraftFloor):
		return "Нельзя удалить последний модуль или последний урок модуля"
	case errors.Is(err, ErrDraftIndex):
		return "Такого модуля или урока нет"
	case errors.Is(err, ErrDraftField):
		return "Некорректное значение в форме"
	default:
		return "Ошибка сохранения черновика"
	}
}

func updateDraftHandler(c *gin.Context) {
	user := getCurrentUser(c)
	ctx := c.Request.Context()

	d, ok := loadDraft(c)
	if !ok {
		return
	}

	if err := c.Request.ParseMultipartForm(cfg.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		c.String(http.StatusBadRequest, "Некорректная форма")
		return
	}

	// корректные поля сохраняются, кнопка при ошибке в форме не выполняется
	if err := ApplyDraftForm(d, c.Request.PostForm); err != nil {
		setFlash(c, "warning", draftErrorMessage(err))
		if err := drafts.Save(ctx, d); err != nil {
			logger.Error("save draft", "draft", d.ID, "error", err)
		}
		c.Redirect(http.StatusFound, draftURL(d.ID))
		return
	}

	op, args, err := parseOp(c.PostForm("op"))
	switch op {
	case "submit_draft", "submit_review":
		if err := drafts.Save(ctx, d); err != nil {
			logger.Error("save draft", "draft", d.ID, "error", err)
		}
		submitDraft(c, user, d, op)
		return
	}
	if err == nil {
		err = applyDraftOp(d, op, args)
	}
	if err != nil {
		setFlash(c, "warning", draftErrorMessage(err))
	}

	if err := drafts.Save(ctx, d); err != nil {
		logger.Error("save draft", "draft", d.ID, "error", err)
		c.String(http.StatusInternalServerError, "Ошибка сохранения черновика")
		return
	}
	c.Redirect(http.StatusFound, draftURL(d.ID))
}

// submitDraft — единственная отправка курса на бэкенд. При ошибке черновик
// остаётся как был, при успехе удаляется.
func submitDraft(c *gin.Context, user *Identity, d *Draft, op string) {
	ctx := c.Request.Context()

	status := ApprovalDraft
	if op == "submit_review" {
		status = ApprovalPending
	}

	var image *ImageUpload
	if fh, err := c.FormFile("course_image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			logger.Warn("open course image", "error", err)
		} else {
			defer f.Close()
			image = &ImageUpload{Filename: fh.Filename, Data: f}
		}
	}

	if err := backend.SubmitCourse(ctx, user, d, status, image); err != nil {
		logger.Warn("submit course", "draft", d.ID, "status", status, "error", err)
		setFlash(c, "danger", "Ошибка при создании курса. Попробуйте ещё раз.")
		c.Redirect(http.StatusFound, draftURL(d.ID))
		return
	}

	if err := drafts.Delete(ctx, d.ID); err != nil {
		logger.Warn("delete submitted draft", "draft", d.ID, "error", err)
	}
	if status == ApprovalPending {
		setFlash(c, "success", "Курс отправлен на проверку")
	} else {
		setFlash(c, "success", "Курс сохранён как черновик")
	}
	c.Redirect(http.StatusFound, "/instructor/courses")
}

// ---------- пошаговое наполнение ----------

func contentURL(courseID string) string {
	return "/instructor/content?course=" + url.QueryEscape(courseID)
}

func contentManagerHandler(c *gin.Context) {
	user := getCurrentUser(c)
	ctx := c.Request.Context()

	courses, err := backend.InstructorCourses(ctx, user)
	if err != nil {
		logger.Warn("load instructor courses", "uid", user.UID, "error", err)
	}

	selected := c.Query("course")
	if selected == "" && len(courses) > 0 {
		selected = courses[0].ID
	}

	var modules []Module
	if selected != "" {
		modules, err = backend.InstructorContent(ctx, user, selected)
		if err != nil {
			logger.Warn("load course content", "course", selected, "error", err)
		}
	}

	c.HTML(http.StatusOK, "instructor_content.html", page(c, gin.H{
		"Courses":     courses,
		"Selected":    selected,
		"Modules":     modules,
		"LessonTypes": []LessonType{LessonVideo, LessonDocument, LessonLive, LessonText},
	}))
}

func addModuleHandler(c *gin.Context) {
	user := getCurrentUser(c)
	courseID := c.Param("courseID")

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		c.Redirect(http.StatusFound, contentURL(courseID))
		return
	}

	err := backend.CreateModule(c.Request.Context(), user, NewModuleRequest{
		CourseID:    courseID,
		Title:       title,
		Description: c.PostForm("description"),
	})
	if err != nil {
		logger.Warn("create module", "course", courseID, "error", err)
	}
	c.Redirect(http.StatusFound, contentURL(courseID))
}

func addLessonHandler(c *gin.Context) {
	user := getCurrentUser(c)
	courseID := c.Param("courseID")

	title := strings.TrimSpace(c.PostForm("title"))
	moduleID := strings.TrimSpace(c.PostForm("module_id"))
	if title == "" || moduleID == "" {
		c.Redirect(http.StatusFound, contentURL(courseID))
		return
	}

	minutes, _ := strconv.Atoi(strings.TrimSpace(c.PostForm("duration_minutes")))
	isFree := 0
	if formBool(c.PostForm("is_free")) {
		isFree = 1
	}

	err := backend.CreateLesson(c.Request.Context(), user, NewLessonRequest{
		ModuleID:        moduleID,
		Title:           title,
		Content:         c.PostForm("content"),
		VideoURL:        c.PostForm("video_url"),
		LessonType:      string(ParseLessonType(c.PostForm("lesson_type"))),
		DurationMinutes: minutes,
		IsFree:          isFree,
	})
	if err != nil {
		logger.Warn("create lesson", "course", courseID, "module", moduleID, "error", err)
	}
	c.Redirect(http.StatusFound, contentURL(courseID))
}
