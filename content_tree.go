package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// ---------- сырые структуры ответа бэкенда ----------

type rawCourse struct {
	CourseID        string         `mapstructure:"CourseID"`
	AltID           string         `mapstructure:"id"`
	Title           string         `mapstructure:"Title"`
	Description     string         `mapstructure:"Description"`
	Instructors     any            `mapstructure:"Instructors"`
	Price           float64        `mapstructure:"price"`
	ImageURL        string         `mapstructure:"ImageURL"`
	Duration        string         `mapstructure:"Duration"`
	Rating          float64        `mapstructure:"rating"`
	EnrollmentCount int            `mapstructure:"enrollment_count"`
	Enrollment      *rawEnrollment `mapstructure:"enrollment"`
	Modules         []rawModule    `mapstructure:"modules"`
}

type rawEnrollment struct {
	Status     string  `mapstructure:"enrollment_status"`
	AmountPaid float64 `mapstructure:"amount_paid"`
	Currency   string  `mapstructure:"currency"`
}

// короткие ключи id, title и type встречаются в старых ответах
type rawModule struct {
	ModuleID    string      `mapstructure:"ModuleID"`
	AltID       string      `mapstructure:"id"`
	Title       string      `mapstructure:"ModuleTitle"`
	AltTitle    string      `mapstructure:"title"`
	Description string      `mapstructure:"ModuleDescription"`
	Lessons     []rawLesson `mapstructure:"lessons"`
}

type rawLesson struct {
	LessonID        string `mapstructure:"LessonID"`
	AltID           string `mapstructure:"id"`
	Title           string `mapstructure:"Title"`
	Type            string `mapstructure:"lesson_type"`
	AltType         string `mapstructure:"type"`
	DurationMinutes int    `mapstructure:"duration_minutes"`
	VideoURL        string `mapstructure:"VideoURL"`
	StreamURL       string `mapstructure:"live_stream_url"`
	StreamDate      string `mapstructure:"live_stream_date"`
	DocumentURL     string `mapstructure:"document_url"`
	Content         string `mapstructure:"Content"`
}

func decodeWeak(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// DecodeCourseJSON разбирает тело GET /api/course/:id.
func DecodeCourseJSON(data []byte) (*Course, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, ErrCourseNotFound
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode course payload: %w", err)
	}
	return BuildContentTree(payload)
}

// BuildContentTree превращает ответ бэкенда в дерево курса.
// Отсутствие модулей или уроков — не ошибка, а пустое дерево.
func BuildContentTree(payload map[string]any) (*Course, error) {
	var raw rawCourse
	if err := decodeWeak(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode course: %w", err)
	}

	course := &Course{
		ID:              firstNonEmpty(raw.CourseID, raw.AltID),
		Title:           raw.Title,
		Description:     raw.Description,
		Instructor:      instructorName(raw.Instructors),
		Price:           raw.Price,
		ImageURL:        raw.ImageURL,
		Duration:        raw.Duration,
		Rating:          raw.Rating,
		EnrollmentCount: raw.EnrollmentCount,
		Modules:         buildModules(raw.Modules),
	}
	if raw.Enrollment != nil {
		course.Enrollment = &Enrollment{
			Status:     raw.Enrollment.Status,
			AmountPaid: raw.Enrollment.AmountPaid,
			Currency:   raw.Enrollment.Currency,
		}
	}
	return course, nil
}

// BuildModules — для ответа /api/instructor/courses/:id/content (массив модулей).
func BuildModules(items []any) ([]Module, error) {
	var raw []rawModule
	if err := decodeWeak(items, &raw); err != nil {
		return nil, fmt.Errorf("decode modules: %w", err)
	}
	return buildModules(raw), nil
}

func buildModules(raw []rawModule) []Module {
	modules := make([]Module, 0, len(raw))
	for _, rm := range raw {
		m := Module{
			ID:          firstNonEmpty(rm.ModuleID, rm.AltID),
			Title:       firstNonEmpty(rm.Title, rm.AltTitle),
			Description: rm.Description,
			Lessons:     make([]Lesson, 0, len(rm.Lessons)),
		}
		for _, rl := range rm.Lessons {
			m.Lessons = append(m.Lessons, buildLesson(rl))
		}
		modules = append(modules, m)
	}
	return modules
}

func buildLesson(rl rawLesson) Lesson {
	l := Lesson{
		ID:              firstNonEmpty(rl.LessonID, rl.AltID),
		Title:           rl.Title,
		DurationMinutes: rl.DurationMinutes,
	}
	switch ParseLessonType(firstNonEmpty(rl.Type, rl.AltType)) {
	case LessonVideo:
		id, _ := ResolveVideoID(rl.VideoURL)
		l.Body = VideoLesson{Ref: strings.TrimSpace(rl.VideoURL), VideoID: id}
	case LessonDocument:
		l.Body = DocumentLesson{URL: strings.TrimSpace(rl.DocumentURL), Description: rl.Content}
	case LessonLive:
		l.Body = LiveLesson{StreamURL: strings.TrimSpace(rl.StreamURL), ScheduledAt: parseSchedule(rl.StreamDate)}
	case LessonText:
		l.Body = TextLesson{Body: rl.Content}
	}
	return l
}

var scheduleLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// nil — дата не назначена или не разбирается
func parseSchedule(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func instructorName(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []any:
		names := make([]string, 0, len(x))
		for _, item := range x {
			if s := instructorName(item); s != "" {
				names = append(names, s)
			}
		}
		return strings.Join(names, ", ")
	case map[string]any:
		for _, key := range []string{"name", "Name", "full_name", "FullName"} {
			if s, ok := x[key].(string); ok {
				return strings.TrimSpace(s)
			}
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
