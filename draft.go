package main

import (
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ---------- дерево черновика ----------

type DraftLesson struct {
	Title           string `json:"title"`
	ContentType     string `json:"content_type"`
	VideoURL        string `json:"video_url"`
	ContentText     string `json:"content_text"`
	DurationMinutes int    `json:"duration_minutes"`
	IsPreview       bool   `json:"is_preview"`
}

type DraftModule struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Lessons     []DraftLesson `json:"lessons"`
}

// DraftTree — модули и уроки курса до отправки. Всегда не меньше
// одного модуля, в каждом модуле не меньше одного урока.
type DraftTree struct {
	Modules []DraftModule `json:"modules"`
}

func newDraftLesson() DraftLesson {
	return DraftLesson{ContentType: string(LessonVideo)}
}

func newDraftModule() DraftModule {
	return DraftModule{Lessons: []DraftLesson{newDraftLesson()}}
}

func NewDraftTree() DraftTree {
	return DraftTree{Modules: []DraftModule{newDraftModule()}}
}

func (t *DraftTree) AddModule() {
	t.Modules = append(t.Modules, newDraftModule())
}

func (t *DraftTree) RemoveModule(i int) error {
	if i < 0 || i >= len(t.Modules) {
		return ErrDraftIndex
	}
	if len(t.Modules) <= 1 {
		return ErrDraftFloor
	}
	t.Modules = append(t.Modules[:i], t.Modules[i+1:]...)
	return nil
}

func (t *DraftTree) AddLesson(mi int) error {
	if mi < 0 || mi >= len(t.Modules) {
		return ErrDraftIndex
	}
	t.Modules[mi].Lessons = append(t.Modules[mi].Lessons, newDraftLesson())
	return nil
}

func (t *DraftTree) RemoveLesson(mi, li int) error {
	if mi < 0 || mi >= len(t.Modules) {
		return ErrDraftIndex
	}
	lessons := t.Modules[mi].Lessons
	if li < 0 || li >= len(lessons) {
		return ErrDraftIndex
	}
	if len(lessons) <= 1 {
		return ErrDraftFloor
	}
	t.Modules[mi].Lessons = append(lessons[:li], lessons[li+1:]...)
	return nil
}

func (t *DraftTree) UpdateModule(i int, field, value string) error {
	if i < 0 || i >= len(t.Modules) {
		return ErrDraftIndex
	}
	m := &t.Modules[i]
	switch field {
	case "title":
		m.Title = value
	case "description":
		m.Description = value
	default:
		return fmt.Errorf("module field %q: %w", field, ErrDraftField)
	}
	return nil
}

func (t *DraftTree) UpdateLesson(mi, li int, field, value string) error {
	if mi < 0 || mi >= len(t.Modules) {
		return ErrDraftIndex
	}
	if li < 0 || li >= len(t.Modules[mi].Lessons) {
		return ErrDraftIndex
	}
	l := &t.Modules[mi].Lessons[li]
	switch field {
	case "title":
		l.Title = value
	case "content_type":
		l.ContentType = value
	case "video_url":
		l.VideoURL = value
	case "content_text":
		l.ContentText = value
	case "duration_minutes":
		value = strings.TrimSpace(value)
		if value == "" {
			l.DurationMinutes = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("duration_minutes %q: %w", value, ErrDraftField)
		}
		l.DurationMinutes = n
	case "is_preview":
		l.IsPreview = formBool(value)
	default:
		return fmt.Errorf("lesson field %q: %w", field, ErrDraftField)
	}
	return nil
}

// ---------- метаданные курса ----------

type CourseMeta struct {
	Title                string `json:"title"`
	Slug                 string `json:"slug"`
	Description          string `json:"description"`
	ShortDescription     string `json:"short_description"`
	CategoryID           string `json:"category_id"`
	Price                string `json:"price"`
	OriginalPrice        string `json:"original_price"`
	DurationWeeks        int    `json:"duration_weeks"`
	DurationHours        int    `json:"duration_hours"`
	DifficultyLevel      string `json:"difficulty_level"`
	Language             string `json:"language"`
	LearningOutcomes     string `json:"learning_outcomes"`
	Prerequisites        string `json:"prerequisites"`
	TargetAudience       string `json:"target_audience"`
	CertificateAvailable bool   `json:"certificate_available"`
}

var difficultyLevels = []string{"Beginner", "Intermediate", "Advanced"}

func NewCourseMeta() CourseMeta {
	return CourseMeta{
		DurationWeeks:        8,
		DurationHours:        40,
		DifficultyLevel:      "Beginner",
		Language:             "English",
		CertificateAvailable: true,
	}
}

// SetTitle меняет название и пересчитывает slug.
func (m *CourseMeta) SetTitle(title string) {
	m.Title = title
	m.Slug = Slugify(title)
}

// formFields — поля multipart-формы в порядке отправки.
func (m CourseMeta) formFields() [][2]string {
	return [][2]string{
		{"title", m.Title},
		{"slug", m.Slug},
		{"description", m.Description},
		{"short_description", m.ShortDescription},
		{"category_id", m.CategoryID},
		{"price", m.Price},
		{"original_price", m.OriginalPrice},
		{"duration_weeks", strconv.Itoa(m.DurationWeeks)},
		{"duration_hours", strconv.Itoa(m.DurationHours)},
		{"difficulty_level", m.DifficultyLevel},
		{"language", m.Language},
		{"learning_outcomes", m.LearningOutcomes},
		{"prerequisites", m.Prerequisites},
		{"target_audience", m.TargetAudience},
		{"certificate_available", strconv.FormatBool(m.CertificateAvailable)},
	}
}

var (
	slugStripRe = regexp.MustCompile(`[^a-z0-9 -]`)
	slugSpaceRe = regexp.MustCompile(`\s+`)
	slugDashRe  = regexp.MustCompile(`-+`)
)

func Slugify(title string) string {
	s := strings.ToLower(title)
	s = slugStripRe.ReplaceAllString(s, "")
	s = slugSpaceRe.ReplaceAllString(s, "-")
	s = slugDashRe.ReplaceAllString(s, "-")
	return s
}

// ---------- черновик целиком ----------

type Draft struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Meta      CourseMeta `json:"meta"`
	Tree      DraftTree  `json:"tree"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type ApprovalStatus string

const (
	ApprovalDraft   ApprovalStatus = "draft"
	ApprovalPending ApprovalStatus = "pending"
)

// ApplyDraftForm переносит поля редактора в черновик. Ключи модулей и уроков:
// modules[i][field] и modules[i][lessons][j][field]. Ключи обходятся в
// отсортированном порядке, корректные поля применяются всегда, а первая
// ошибка (неверный индекс или значение) возвращается после обхода.
func ApplyDraftForm(d *Draft, form url.Values) error {
	firstErr := applyMetaForm(&d.Meta, form)
	for _, key := range slices.Sorted(maps.Keys(form)) {
		vals := form[key]
		if len(vals) == 0 || !strings.HasPrefix(key, "modules[") {
			continue
		}
		// последнее значение выигрывает: перед чекбоксом стоит hidden=false
		val := vals[len(vals)-1]
		var err error
		if mi, li, field, ok := parseDraftKey(key); !ok {
			err = fmt.Errorf("form key %q: %w", key, ErrDraftField)
		} else if li < 0 {
			err = d.Tree.UpdateModule(mi, field, val)
		} else {
			err = d.Tree.UpdateLesson(mi, li, field, val)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func applyMetaForm(m *CourseMeta, form url.Values) error {
	if _, ok := form["title"]; ok {
		m.SetTitle(form.Get("title"))
	}
	strFields := []struct {
		name string
		dst  *string
	}{
		{"description", &m.Description},
		{"short_description", &m.ShortDescription},
		{"category_id", &m.CategoryID},
		{"price", &m.Price},
		{"original_price", &m.OriginalPrice},
		{"difficulty_level", &m.DifficultyLevel},
		{"language", &m.Language},
		{"learning_outcomes", &m.LearningOutcomes},
		{"prerequisites", &m.Prerequisites},
		{"target_audience", &m.TargetAudience},
	}
	for _, f := range strFields {
		if vals, ok := form[f.name]; ok && len(vals) > 0 {
			*f.dst = vals[len(vals)-1]
		}
	}

	var firstErr error
	intFields := []struct {
		name string
		dst  *int
	}{
		{"duration_weeks", &m.DurationWeeks},
		{"duration_hours", &m.DurationHours},
	}
	for _, f := range intFields {
		vals, ok := form[f.name]
		if !ok || len(vals) == 0 {
			continue
		}
		raw := strings.TrimSpace(vals[len(vals)-1])
		if raw == "" {
			*f.dst = 0
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			// прежнее значение остаётся
			if firstErr == nil {
				firstErr = fmt.Errorf("%s %q: %w", f.name, raw, ErrDraftField)
			}
			continue
		}
		*f.dst = n
	}
	if vals, ok := form["certificate_available"]; ok && len(vals) > 0 {
		m.CertificateAvailable = formBool(vals[len(vals)-1])
	}
	return firstErr
}

// parseDraftKey разбирает modules[0][title] и modules[0][lessons][1][title].
// Для ключей модуля li = -1.
func parseDraftKey(key string) (mi, li int, field string, ok bool) {
	parts := bracketParts(key)
	if parts == nil || parts[0] != "modules" {
		return 0, 0, "", false
	}
	switch len(parts) {
	case 3:
		m, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, "", false
		}
		return m, -1, parts[2], true
	case 5:
		if parts[2] != "lessons" {
			return 0, 0, "", false
		}
		m, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, "", false
		}
		l, err := strconv.Atoi(parts[3])
		if err != nil {
			return 0, 0, "", false
		}
		return m, l, parts[4], true
	default:
		return 0, 0, "", false
	}
}

// "a[b][c]" → ["a","b","c"]; nil, если скобки не сбалансированы.
func bracketParts(key string) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return nil
	}
	parts := []string{key[:open]}
	rest := key[open:]
	for rest != "" {
		if rest[0] != '[' {
			return nil
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return nil
		}
		parts = append(parts, rest[1:end])
		rest = rest[end+1:]
	}
	return parts
}

func formBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
