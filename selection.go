package main

import (
	"encoding/json"
	"sort"
)

// SelectionState — что сейчас открыто в плеере курса. Живёт в сессии
// посетителя, на бэкенд не отправляется.
type SelectionState struct {
	ActiveLessonID string          `json:"a,omitempty"`
	Expanded       map[string]bool `json:"e,omitempty"`
	Completed      map[string]bool `json:"c,omitempty"`
}

func NewSelectionState() *SelectionState {
	return &SelectionState{
		Expanded:  map[string]bool{},
		Completed: map[string]bool{},
	}
}

// Bootstrap раскрывает первый модуль и выбирает его первый урок.
// Для курса без уроков в первом модуле ничего не меняет.
func (s *SelectionState) Bootstrap(c *Course) bool {
	if c == nil || len(c.Modules) == 0 || len(c.Modules[0].Lessons) == 0 {
		return false
	}
	first := c.Modules[0]
	s.Expanded[first.ID] = true
	s.ActiveLessonID = first.Lessons[0].ID
	return true
}

// Select всегда заменяет текущий выбор.
func (s *SelectionState) Select(lessonID string) {
	s.ActiveLessonID = lessonID
}

func (s *SelectionState) ToggleModule(moduleID string) {
	s.Expanded[moduleID] = !s.Expanded[moduleID]
}

func (s *SelectionState) IsExpanded(moduleID string) bool {
	return s.Expanded[moduleID]
}

// MarkComplete идемпотентна; отметку снять нельзя.
func (s *SelectionState) MarkComplete(lessonID string) {
	if lessonID == "" {
		return
	}
	s.Completed[lessonID] = true
}

func (s *SelectionState) IsCompleted(lessonID string) bool {
	return s.Completed[lessonID]
}

func (s *SelectionState) CompletedIDs() []string {
	ids := make([]string, 0, len(s.Completed))
	for id, ok := range s.Completed {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// CompletedIn — отметки только по урокам, которые есть в курсе сейчас.
// Отметки удалённых уроков остаются в состоянии, но не считаются.
func (s *SelectionState) CompletedIn(c *Course) []string {
	ids := make([]string, 0, len(s.Completed))
	for _, id := range s.CompletedIDs() {
		if _, l := c.FindLesson(id); l != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *SelectionState) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DecodeSelectionState(raw string) (*SelectionState, error) {
	st := NewSelectionState()
	if err := json.Unmarshal([]byte(raw), st); err != nil {
		return nil, err
	}
	if st.Expanded == nil {
		st.Expanded = map[string]bool{}
	}
	if st.Completed == nil {
		st.Completed = map[string]bool{}
	}
	return st, nil
}
