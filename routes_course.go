// routes_course.go
package main

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func registerCourseRoutes(r *gin.Engine) {
	courseGroup := r.Group("/")
	{
		courseGroup.GET("/courses", listCoursesHandler)
		courseGroup.GET("/courses/:id", courseDetailHandler)
	}

	learn := r.Group("/learn/:id", authRequired())
	{
		learn.GET("", viewCourseContentHandler)
		learn.POST("/lessons/:lessonID/select", selectLessonHandler)
		learn.POST("/lessons/:lessonID/complete", completeLessonHandler)
		learn.POST("/modules/:moduleID/toggle", toggleModuleHandler)
	}

	api := r.Group("/api", apiCORS(cfg.AllowedOrigins))
	{
		api.OPTIONS("/*path", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		api.GET("/learn/:id", authRequired(), apiLearnHandler)
	}
}

// ---------- каталог и карточка курса ----------

func listCoursesHandler(c *gin.Context) {
	ctx := c.Request.Context()

	categories, err := backend.Categories(ctx)
	if err != nil {
		logger.Warn("load categories", "error", err)
	}

	selected := c.Query("category")
	if selected == "" && len(categories) > 0 {
		selected = categories[0].ID
	}

	var courses []CourseSummary
	if selected != "" {
		courses, err = backend.CoursesByCategory(ctx, selected)
		if err != nil {
			logger.Warn("load courses by category", "category", selected, "error", err)
		}
	}

	c.HTML(http.StatusOK, "courses.html", page(c, gin.H{
		"Categories": categories,
		"Selected":   selected,
		"Courses":    courses,
	}))
}

// Карточка курса: сначала сам курс, затем параллельно запись и рекомендации.
func courseDetailHandler(c *gin.Context) {
	user := getCurrentUser(c)
	ctx := c.Request.Context()
	courseID := c.Param("id")

	course, err := backend.Course(ctx, user, courseID)
	if err != nil {
		renderCourseMissing(c, courseID, err)
		return
	}

	var (
		enrolled bool
		recs     []CourseSummary
	)
	if user != nil {
		var g errgroup.Group
		g.Go(func() error {
			if course.Enrollment != nil {
				enrolled = course.Enrollment.Active()
				return nil
			}
			ok, err := backend.CheckEnrollment(ctx, user, courseID)
			if err != nil {
				logger.Warn("check enrollment", "course", courseID, "error", err)
				return nil
			}
			enrolled = ok
			return nil
		})
		g.Go(func() error {
			list, err := backend.Recommendations(ctx, user, courseID)
			if err != nil {
				logger.Warn("load recommendations", "course", courseID, "error", err)
				return nil
			}
			recs = list
			return nil
		})
		_ = g.Wait()
	}

	c.HTML(http.StatusOK, "course_detail.html", page(c, gin.H{
		"Course":          course,
		"Enrolled":        enrolled,
		"CanOpen":         user != nil && (enrolled || !user.Role.NeedsEnrollment()),
		"Recommendations": recs,
	}))
}

func renderCourseMissing(c *gin.Context, courseID string, err error) {
	status := http.StatusOK
	if errors.Is(err, ErrCourseNotFound) {
		status = http.StatusNotFound
	} else {
		logger.Warn("load course", "course", courseID, "error", err)
	}
	c.HTML(status, "course_missing.html", page(c, gin.H{"CourseID": courseID}))
}

// ---------- плеер курса ----------

type sidebarLesson struct {
	ID        string
	Title     string
	Type      LessonType
	Minutes   int
	Active    bool
	Completed bool
}

type sidebarModule struct {
	ID          string
	Number      int
	Title       string
	Description string
	Expanded    bool
	Lessons     []sidebarLesson
}

func buildSidebar(course *Course, st *SelectionState) []sidebarModule {
	out := make([]sidebarModule, 0, len(course.Modules))
	for i, m := range course.Modules {
		sm := sidebarModule{
			ID:          m.ID,
			Number:      i + 1,
			Title:       m.Title,
			Description: m.Description,
			Expanded:    st.IsExpanded(m.ID),
		}
		for _, l := range m.Lessons {
			sm.Lessons = append(sm.Lessons, sidebarLesson{
				ID:        l.ID,
				Title:     l.Title,
				Type:      l.Type(),
				Minutes:   l.DurationMinutes,
				Active:    l.ID == st.ActiveLessonID,
				Completed: st.IsCompleted(l.ID),
			})
		}
		out = append(out, sm)
	}
	return out
}

// canViewContent — студенту нужна активная запись, преподавателю и админу нет.
func canViewContent(c *gin.Context, user *Identity, course *Course) bool {
	if !user.Role.NeedsEnrollment() {
		return true
	}
	if course.Enrollment != nil {
		return course.Enrollment.Active()
	}
	ok, err := backend.CheckEnrollment(c.Request.Context(), user, course.ID)
	if err != nil {
		logger.Warn("check enrollment", "course", course.ID, "error", err)
		return false
	}
	return ok
}

func selectionKey(courseID string) string {
	return "sel:" + courseID
}

func loadSelection(c *gin.Context, courseID string) (*SelectionState, bool) {
	raw, _ := sessions.Default(c).Get(selectionKey(courseID)).(string)
	if raw == "" {
		return NewSelectionState(), false
	}
	st, err := DecodeSelectionState(raw)
	if err != nil {
		logger.Warn("decode selection state", "course", courseID, "error", err)
		return NewSelectionState(), false
	}
	return st, true
}

func saveSelection(c *gin.Context, courseID string, st *SelectionState) {
	raw, err := st.Encode()
	if err != nil {
		logger.Warn("encode selection state", "course", courseID, "error", err)
		return
	}
	sess := sessions.Default(c)
	sess.Set(selectionKey(courseID), raw)
	if err := sess.Save(); err != nil {
		logger.Warn("save selection state", "course", courseID, "error", err)
	}
}

// openCourse загружает курс, проверяет доступ и поднимает состояние плеера.
// Если ok == false, ответ уже отправлен.
func openCourse(c *gin.Context) (*Identity, *Course, *SelectionState, bool) {
	user := getCurrentUser(c)
	courseID := c.Param("id")
	log := logger.With("course", courseID, "uid", user.UID)

	course, err := backend.Course(c.Request.Context(), user, courseID)
	if err != nil {
		if isAPIRequest(c) {
			status := http.StatusBadGateway
			if errors.Is(err, ErrCourseNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return nil, nil, nil, false
		}
		renderCourseMissing(c, courseID, err)
		return nil, nil, nil, false
	}

	if !canViewContent(c, user, course) {
		if isAPIRequest(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "enrollment required"})
			return nil, nil, nil, false
		}
		c.HTML(http.StatusForbidden, "course_locked.html", page(c, gin.H{"Course": course}))
		return nil, nil, nil, false
	}

	st, found := loadSelection(c, courseID)
	if !found && course.LessonCount() > 0 {
		ids, err := progress.Completed(c.Request.Context(), user.UID, courseID)
		if err != nil {
			log.Warn("load progress", "error", err)
		}
		for _, id := range ids {
			st.MarkComplete(id)
		}
		st.Bootstrap(course)
		saveSelection(c, courseID, st)
	}
	return user, course, st, true
}

func viewCourseContentHandler(c *gin.Context) {
	_, course, st, ok := openCourse(c)
	if !ok {
		return
	}

	data := gin.H{
		"Course":    course,
		"Sidebar":   buildSidebar(course, st),
		"Total":     course.LessonCount(),
		"Done":      0,
		"Lesson":    nil,
		"Percent":   0,
		"EmptyTree": course.LessonCount() == 0,
	}
	if _, lesson := course.FindLesson(st.ActiveLessonID); lesson != nil {
		view := RenderLesson(lesson, st, renderOptions(c))
		data["Lesson"] = &view
	}
	if total := course.LessonCount(); total > 0 {
		done := len(st.CompletedIn(course))
		data["Done"] = done
		data["Percent"] = min(done*100/total, 100)
	}

	c.HTML(http.StatusOK, "course_player.html", page(c, data))
}

func renderOptions(c *gin.Context) RenderOptions {
	return RenderOptions{
		Locale:   ResolveLocale(c.GetHeader("Accept-Language")),
		Location: cfg.DisplayLocation,
	}
}

func learnURL(courseID string) string {
	return "/learn/" + courseID
}

func selectLessonHandler(c *gin.Context) {
	_, course, st, ok := openCourse(c)
	if !ok {
		return
	}
	lessonID := c.Param("lessonID")
	if _, l := course.FindLesson(lessonID); l == nil {
		c.String(http.StatusNotFound, "Урок не найден")
		return
	}
	st.Select(lessonID)
	saveSelection(c, c.Param("id"), st)
	c.Redirect(http.StatusFound, learnURL(c.Param("id")))
}

func toggleModuleHandler(c *gin.Context) {
	_, course, st, ok := openCourse(c)
	if !ok {
		return
	}
	moduleID := c.Param("moduleID")
	if course.FindModule(moduleID) == nil {
		c.String(http.StatusNotFound, "Модуль не найден")
		return
	}
	st.ToggleModule(moduleID)
	saveSelection(c, c.Param("id"), st)
	c.Redirect(http.StatusFound, learnURL(c.Param("id")))
}

func completeLessonHandler(c *gin.Context) {
	user, course, st, ok := openCourse(c)
	if !ok {
		return
	}
	courseID := c.Param("id")
	lessonID := c.Param("lessonID")
	if _, l := course.FindLesson(lessonID); l == nil {
		c.String(http.StatusNotFound, "Урок не найден")
		return
	}

	st.MarkComplete(lessonID)
	saveSelection(c, courseID, st)

	if err := progress.MarkComplete(c.Request.Context(), user.UID, courseID, lessonID); err != nil {
		logger.With("course", courseID, "lesson", lessonID).Warn("persist progress", "error", err)
	}
	c.Redirect(http.StatusFound, learnURL(courseID))
}

// ---------- JSON ----------

type selectionJSON struct {
	ActiveLessonID string   `json:"active_lesson_id"`
	Expanded       []string `json:"expanded_modules"`
	Completed      []string `json:"completed_lessons"`
}

func apiLearnHandler(c *gin.Context) {
	_, course, st, ok := openCourse(c)
	if !ok {
		return
	}

	expanded := make([]string, 0, len(course.Modules))
	for _, m := range course.Modules {
		if st.IsExpanded(m.ID) {
			expanded = append(expanded, m.ID)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"course": gin.H{
			"id":          course.ID,
			"title":       course.Title,
			"description": course.Description,
			"instructor":  course.Instructor,
			"modules":     course.Modules,
		},
		"selection": selectionJSON{
			ActiveLessonID: st.ActiveLessonID,
			Expanded:       expanded,
			Completed:      st.CompletedIn(course),
		},
	})
}
