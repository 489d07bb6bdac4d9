package main

import (
	"errors"
	"fmt"
)

var (
	// Курсы
	ErrCourseNotFound = errors.New("course not found")

	// Пользователи и сессия
	ErrUnauthenticated    = errors.New("you must be signed in to access this resource")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("a user with that email address already exists")

	// Черновики
	ErrDraftNotFound = errors.New("draft not found")
	ErrDraftFloor    = errors.New("draft must keep at least one item")
	ErrDraftIndex    = errors.New("draft index out of range")
	ErrDraftField    = errors.New("unknown or malformed draft field")
)

// BackendError — ответ REST-бэкенда с не-2xx статусом.
type BackendError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend %s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func backendStatus(err error) int {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Status
	}
	return 0
}
