package main

import (
	"reflect"
	"testing"
)

func sampleCourse() *Course {
	return &Course{
		ID:    "c1",
		Title: "Go",
		Modules: []Module{
			{ID: "m1", Title: "Основы", Lessons: []Lesson{
				{ID: "l1", Title: "Видео", Body: VideoLesson{Ref: "https://youtu.be/abcDEFghijk", VideoID: "abcDEFghijk"}},
				{ID: "l2", Title: "Текст", Body: TextLesson{Body: "hello"}},
			}},
			{ID: "m2", Title: "Дальше", Lessons: []Lesson{
				{ID: "l3", Title: "Эфир", Body: LiveLesson{}},
			}},
		},
	}
}

func TestBootstrapSelectsFirstLesson(t *testing.T) {
	st := NewSelectionState()
	if !st.Bootstrap(sampleCourse()) {
		t.Fatalf("bootstrap should succeed on a non-empty course")
	}
	if st.ActiveLessonID != "l1" {
		t.Fatalf("active lesson: got=%q want=l1", st.ActiveLessonID)
	}
	if !st.IsExpanded("m1") || st.IsExpanded("m2") {
		t.Fatalf("expanded: got %v, want only m1", st.Expanded)
	}
}

func TestBootstrapEmptyTreeIsNoop(t *testing.T) {
	cases := []*Course{
		nil,
		{ID: "empty"},
		{ID: "no-lessons", Modules: []Module{{ID: "m1"}}},
	}
	for _, c := range cases {
		st := NewSelectionState()
		if st.Bootstrap(c) {
			t.Fatalf("bootstrap on %+v should be a no-op", c)
		}
		if st.ActiveLessonID != "" || len(st.Expanded) != 0 {
			t.Fatalf("state changed on empty course: %+v", st)
		}
	}
}

func TestSelectReplacesActiveLesson(t *testing.T) {
	st := NewSelectionState()
	st.Bootstrap(sampleCourse())

	st.Select("l3")
	if st.ActiveLessonID != "l3" {
		t.Fatalf("active lesson: got=%q want=l3", st.ActiveLessonID)
	}

	encoded, err := st.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeSelectionState(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ActiveLessonID != "l3" {
		t.Fatalf("decoded active lesson: got=%q want=l3", decoded.ActiveLessonID)
	}
	// первый модуль остаётся раскрытым, выбор урока на это не влияет
	if !decoded.IsExpanded("m1") {
		t.Fatalf("expanded state lost after select")
	}
}

func TestToggleModule(t *testing.T) {
	st := NewSelectionState()
	st.ToggleModule("m2")
	if !st.IsExpanded("m2") {
		t.Fatalf("first toggle should expand")
	}
	st.ToggleModule("m2")
	if st.IsExpanded("m2") {
		t.Fatalf("second toggle should collapse")
	}
}

func TestMarkCompleteIdempotent(t *testing.T) {
	once := NewSelectionState()
	once.MarkComplete("l1")

	twice := NewSelectionState()
	twice.MarkComplete("l1")
	twice.MarkComplete("l1")
	twice.MarkComplete("")

	if !reflect.DeepEqual(once.CompletedIDs(), twice.CompletedIDs()) {
		t.Fatalf("completed: once=%v twice=%v", once.CompletedIDs(), twice.CompletedIDs())
	}
	if len(twice.CompletedIDs()) != 1 || !twice.IsCompleted("l1") {
		t.Fatalf("completed: got %v", twice.CompletedIDs())
	}
}

func TestCompletedIDsSorted(t *testing.T) {
	st := NewSelectionState()
	for _, id := range []string{"l3", "l1", "l2"} {
		st.MarkComplete(id)
	}
	want := []string{"l1", "l2", "l3"}
	if got := st.CompletedIDs(); !reflect.DeepEqual(got, want) {
		t.Fatalf("completed ids: got=%v want=%v", got, want)
	}
}

func TestDecodeSelectionStateGarbage(t *testing.T) {
	if _, err := DecodeSelectionState("{not json"); err == nil {
		t.Fatalf("expected error for malformed state")
	}
	st, err := DecodeSelectionState("{}")
	if err != nil {
		t.Fatalf("decode empty object: %v", err)
	}
	// карты должны быть готовы к записи
	st.MarkComplete("l1")
	st.ToggleModule("m1")
}

func TestCompletedInSkipsUnknownLessons(t *testing.T) {
	st := NewSelectionState()
	for _, id := range []string{"l3", "removed", "l1", "x1"} {
		st.MarkComplete(id)
	}
	if got, want := st.CompletedIn(sampleCourse()), []string{"l1", "l3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("completed in course: got=%v want=%v", got, want)
	}
	if got := len(st.CompletedIDs()); got != 4 {
		t.Fatalf("raw completion set should keep every mark, got %d", got)
	}
}
