package main

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeCourseJSONShortKeys(t *testing.T) {
	body := []byte(`{"modules":[{"id":1,"lessons":[{"id":10,"type":"video","videoUrl":"https://youtu.be/abcDEFghijk?t=5"}]}]}`)

	course, err := DecodeCourseJSON(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(course.Modules) != 1 {
		t.Fatalf("modules: got=%d want=1", len(course.Modules))
	}
	m := course.Modules[0]
	if m.ID != "1" || len(m.Lessons) != 1 {
		t.Fatalf("module: got id=%q lessons=%d", m.ID, len(m.Lessons))
	}
	l := m.Lessons[0]
	if l.ID != "10" || l.Type() != LessonVideo {
		t.Fatalf("lesson: got id=%q type=%q", l.ID, l.Type())
	}
	video, ok := l.Body.(VideoLesson)
	if !ok {
		t.Fatalf("lesson body: got %T want VideoLesson", l.Body)
	}
	if video.VideoID != "abcDEFghijk" {
		t.Fatalf("video id: got=%q want=%q", video.VideoID, "abcDEFghijk")
	}
}

func TestDecodeCourseJSONBackendKeys(t *testing.T) {
	body := []byte(`{
		"CourseID": 42,
		"Title": "Go для начинающих",
		"Description": "Курс",
		"Instructors": [{"name": "Анна"}, "Борис"],
		"price": "19.99",
		"rating": 4.5,
		"enrollment_count": "120",
		"enrollment": {"enrollment_status": "Active", "amount_paid": 19.99, "currency": "USD"},
		"modules": [
			{"ModuleID": "m1", "ModuleTitle": "Основы", "ModuleDescription": "intro", "lessons": [
				{"LessonID": "l1", "Title": "Документ", "lesson_type": "document", "document_url": "https://cdn.example.com/files/intro.pdf", "Content": "Прочитайте"},
				{"LessonID": "l2", "Title": "Эфир", "lesson_type": "LIVE", "live_stream_date": "2025-03-01T18:30", "duration_minutes": "45"},
				{"LessonID": "l3", "Title": "Квиз", "lesson_type": "quiz", "Content": "текст"}
			]},
			{"ModuleID": "m2", "ModuleTitle": "Пусто"}
		]
	}`)

	course, err := DecodeCourseJSON(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if course.ID != "42" || course.Price != 19.99 || course.EnrollmentCount != 120 {
		t.Fatalf("course fields: got id=%q price=%v count=%d", course.ID, course.Price, course.EnrollmentCount)
	}
	if course.Instructor != "Анна, Борис" {
		t.Fatalf("instructor: got=%q", course.Instructor)
	}
	if !course.Enrollment.Active() {
		t.Fatalf("expected active enrollment, got %+v", course.Enrollment)
	}
	if course.LessonCount() != 3 {
		t.Fatalf("lesson count: got=%d want=3", course.LessonCount())
	}
	if len(course.Modules[1].Lessons) != 0 {
		t.Fatalf("module without lessons should stay empty, got %d", len(course.Modules[1].Lessons))
	}

	lessons := course.Modules[0].Lessons
	if doc, ok := lessons[0].Body.(DocumentLesson); !ok || doc.URL != "https://cdn.example.com/files/intro.pdf" || doc.Description != "Прочитайте" {
		t.Fatalf("document lesson: got %#v", lessons[0].Body)
	}

	live, ok := lessons[1].Body.(LiveLesson)
	if !ok {
		t.Fatalf("live lesson: got %T", lessons[1].Body)
	}
	want := time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)
	if live.ScheduledAt == nil || !live.ScheduledAt.Equal(want) {
		t.Fatalf("scheduled at: got=%v want=%v", live.ScheduledAt, want)
	}
	if lessons[1].DurationMinutes != 45 {
		t.Fatalf("duration: got=%d want=45", lessons[1].DurationMinutes)
	}

	if lessons[2].Type() != LessonText {
		t.Fatalf("unknown type should fall back to text, got %q", lessons[2].Type())
	}

	m, l := course.FindLesson("l2")
	if m == nil || m.ID != "m1" || l == nil || l.Title != "Эфир" {
		t.Fatalf("FindLesson(l2): got module=%v lesson=%v", m, l)
	}
	if m, l := course.FindLesson("missing"); m != nil || l != nil {
		t.Fatalf("FindLesson(missing) should return nils")
	}
}

func TestDecodeCourseJSONEmpty(t *testing.T) {
	for _, body := range []string{"", "  ", "null"} {
		if _, err := DecodeCourseJSON([]byte(body)); !errors.Is(err, ErrCourseNotFound) {
			t.Fatalf("body %q: got err=%v want ErrCourseNotFound", body, err)
		}
	}

	course, err := DecodeCourseJSON([]byte(`{"Title":"Без модулей"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(course.Modules) != 0 || course.LessonCount() != 0 {
		t.Fatalf("expected empty tree, got %+v", course.Modules)
	}
}

func TestBuildLessonUnresolvedVideo(t *testing.T) {
	l := buildLesson(rawLesson{LessonID: "v", Type: "video", VideoURL: "https://vimeo.com/1"})
	video, ok := l.Body.(VideoLesson)
	if !ok {
		t.Fatalf("body: got %T", l.Body)
	}
	if video.VideoID != "" || video.Ref != "https://vimeo.com/1" {
		t.Fatalf("unresolved video: got %+v", video)
	}
}

func TestParseSchedule(t *testing.T) {
	cases := map[string]bool{
		"2025-03-01T18:30:00Z":      true,
		"2025-03-01T18:30:00+03:00": true,
		"2025-03-01T18:30:00":       true,
		"2025-03-01 18:30:00":       true,
		"2025-03-01":                true,
		"":                          false,
		"завтра":                    false,
	}
	for in, ok := range cases {
		if got := parseSchedule(in); (got != nil) != ok {
			t.Fatalf("parseSchedule(%q): got=%v want parsed=%v", in, got, ok)
		}
	}
}

func TestBuildModulesFromInstructorContent(t *testing.T) {
	items := []any{
		map[string]any{
			"ModuleID":    7,
			"ModuleTitle": "Модуль",
			"lessons": []any{
				map[string]any{"LessonID": 70, "Title": "Видео", "lesson_type": "video", "VideoURL": "abcDEFghijk"},
			},
		},
	}
	modules, err := BuildModules(items)
	if err != nil {
		t.Fatalf("build modules: %v", err)
	}
	if len(modules) != 1 || modules[0].ID != "7" || modules[0].Lessons[0].ID != "70" {
		t.Fatalf("modules: got %+v", modules)
	}
}
