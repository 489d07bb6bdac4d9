package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"
)

func newTestBackend(t *testing.T) (*BackendClient, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	srv := httptest.NewServer(fb.handler())
	t.Cleanup(srv.Close)
	return NewBackendClient(srv.URL+"/", NewJWTTokenSource(testJWTSecret, time.Minute)), fb
}

var testIdentity = &Identity{UID: "fb-uid-1", Email: "ann@example.com", Role: RoleInstructor}

func TestAPIPathEscapesSegments(t *testing.T) {
	cases := []struct {
		segments []string
		want     string
	}{
		{[]string{"course", "c1"}, "/api/course/c1"},
		{[]string{"enrollment", "check", "ann@example.com", "c1"}, "/api/enrollment/check/ann@example.com/c1"},
		{[]string{"course", "a/b c"}, "/api/course/a%2Fb%20c"},
		{nil, "/api"},
	}
	for _, tc := range cases {
		if got := apiPath(tc.segments...); got != tc.want {
			t.Fatalf("apiPath(%q): got=%q want=%q", tc.segments, got, tc.want)
		}
	}
}

func TestBackendFreshTokenPerCall(t *testing.T) {
	client, fb := newTestBackend(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.UserRole(ctx, testIdentity); err != nil {
			t.Fatalf("user role: %v", err)
		}
	}

	ids := fb.tokenIDs()
	if len(ids) != 3 {
		t.Fatalf("authorized calls: got=%d want=3", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" || seen[id] {
			t.Fatalf("token ids must be unique and non-empty: %v", ids)
		}
		seen[id] = true
	}
}

func TestBackendUserRole(t *testing.T) {
	client, fb := newTestBackend(t)
	ctx := context.Background()

	fb.setRole("ADMIN")
	if role, err := client.UserRole(ctx, testIdentity); err != nil || role != RoleAdmin {
		t.Fatalf("role: got=%q err=%v", role, err)
	}
	fb.setRole("guest")
	if role, err := client.UserRole(ctx, testIdentity); err != nil || role != RoleStudent {
		t.Fatalf("unknown role: got=%q err=%v", role, err)
	}
}

func TestBackendCourse(t *testing.T) {
	client, fb := newTestBackend(t)
	ctx := context.Background()
	fb.addCourse("c1", courseC1)

	course, err := client.Course(ctx, testIdentity, "c1")
	if err != nil {
		t.Fatalf("course: %v", err)
	}
	if course.ID != "c1" || course.Title != "Go на практике" || course.LessonCount() != 3 {
		t.Fatalf("course: got id=%q title=%q lessons=%d", course.ID, course.Title, course.LessonCount())
	}

	if _, err := client.Course(ctx, nil, "c1"); err != nil {
		t.Fatalf("anonymous course: %v", err)
	}

	if _, err := client.Course(ctx, testIdentity, "nope"); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("missing course: got err=%v want ErrCourseNotFound", err)
	}
}

func TestBackendErrorStatus(t *testing.T) {
	client, _ := newTestBackend(t)

	// неверная подпись: фейк отвечает 401
	client.tokens = NewJWTTokenSource("wrong-secret", time.Minute)
	_, err := client.InstructorCourses(context.Background(), testIdentity)
	if got := backendStatus(err); got != http.StatusUnauthorized {
		t.Fatalf("status: got=%d want=401 (err=%v)", got, err)
	}
	var be *BackendError
	if !errors.As(err, &be) || be.Path != "/api/instructor/courses" || !strings.Contains(be.Error(), "status 401") {
		t.Fatalf("backend error: %v", err)
	}

	if got := backendStatus(errors.New("plain")); got != 0 {
		t.Fatalf("plain error status: got=%d want=0", got)
	}
}

func TestBackendTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewBackendClient(srv.URL, NewJWTTokenSource(testJWTSecret, time.Minute))

	_, err := client.Course(context.Background(), testIdentity, "c1")
	if err == nil || errors.Is(err, ErrCourseNotFound) || backendStatus(err) != 0 {
		t.Fatalf("transport failure should not look like a missing course: %v", err)
	}
}

func TestBackendCatalogue(t *testing.T) {
	client, fb := newTestBackend(t)
	ctx := context.Background()

	cats, err := client.Categories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	want := []Category{{ID: "1", Name: "Программирование"}, {ID: "2", Name: "Дизайн"}}
	if !reflect.DeepEqual(cats, want) {
		t.Fatalf("categories: got=%+v want=%+v", cats, want)
	}

	courses, err := client.CoursesByCategory(ctx, "2")
	if err != nil {
		t.Fatalf("courses: %v", err)
	}
	if len(courses) != 1 || courses[0].ID != "c-2" || courses[0].Title != "Курс категории 2" {
		t.Fatalf("courses: got=%+v", courses)
	}

	recs, err := client.Recommendations(ctx, testIdentity, "c1")
	if err != nil {
		t.Fatalf("recommendations: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "9" || recs[0].Price != 10 {
		t.Fatalf("recommendations: got=%+v", recs)
	}

	// каталог доступен без токена
	if ids := fb.tokenIDs(); len(ids) != 1 {
		t.Fatalf("only recommendations are authorized, got %d tokens", len(ids))
	}
}

func TestBackendEnrollmentAndContent(t *testing.T) {
	client, fb := newTestBackend(t)
	ctx := context.Background()

	if ok, err := client.CheckEnrollment(ctx, testIdentity, "c1"); err != nil || ok {
		t.Fatalf("enrollment: got=%v err=%v", ok, err)
	}
	fb.setEnrolled(true)
	if ok, err := client.CheckEnrollment(ctx, testIdentity, "c1"); err != nil || !ok {
		t.Fatalf("enrollment: got=%v err=%v", ok, err)
	}

	courses, err := client.InstructorCourses(ctx, testIdentity)
	if err != nil || len(courses) != 1 || courses[0].ApprovalStatus != "approved" {
		t.Fatalf("instructor courses: got=%+v err=%v", courses, err)
	}

	modules, err := client.InstructorContent(ctx, testIdentity, "c1")
	if err != nil {
		t.Fatalf("content: %v", err)
	}
	if len(modules) != 1 || modules[0].ID != "5" || modules[0].Title != "Существующий модуль" {
		t.Fatalf("content: got=%+v", modules)
	}
}

func TestBackendSubmitCourse(t *testing.T) {
	client, fb := newTestBackend(t)
	ctx := context.Background()

	d := &Draft{ID: "d1", OwnerID: "fb-uid-1", Meta: NewCourseMeta(), Tree: NewDraftTree()}
	d.Meta.SetTitle("Intro to Go")
	image := &ImageUpload{Filename: "cover.jpg", Data: strings.NewReader("JPEG")}

	if err := client.SubmitCourse(ctx, testIdentity, d, ApprovalPending, image); err != nil {
		t.Fatalf("submit: %v", err)
	}
	subs := fb.submitted()
	if len(subs) != 1 {
		t.Fatalf("submissions: got=%d want=1", len(subs))
	}
	got := subs[0]
	if got.Fields.Get("slug") != "intro-to-go" || got.Fields.Get("approval_status") != "pending" {
		t.Fatalf("fields: %v", got.Fields)
	}
	if got.Fields.Get("language") != "English" || got.Fields.Get("difficulty_level") != "Beginner" {
		t.Fatalf("default fields: %v", got.Fields)
	}
	if !strings.Contains(got.Fields.Get("modules"), "lessons") {
		t.Fatalf("modules json: %q", got.Fields.Get("modules"))
	}
	if got.FileName != "cover.jpg" || got.FileData != "JPEG" {
		t.Fatalf("image: got %q (%q)", got.FileName, got.FileData)
	}

	fb.setSubmitOK(false)
	err := client.SubmitCourse(ctx, testIdentity, d, ApprovalDraft, nil)
	if !errors.Is(err, errSubmitRejected) || !strings.Contains(err.Error(), "title is required") {
		t.Fatalf("rejected submit: got err=%v", err)
	}
}

func TestBackendIncrementalContent(t *testing.T) {
	client, fb := newTestBackend(t)
	ctx := context.Background()

	mod := NewModuleRequest{CourseID: "c1", Title: "М"}
	if err := client.CreateModule(ctx, testIdentity, mod); err != nil {
		t.Fatalf("create module: %v", err)
	}
	lesson := NewLessonRequest{ModuleID: "5", Title: "У", LessonType: "text", IsFree: 0}
	if err := client.CreateLesson(ctx, testIdentity, lesson); err != nil {
		t.Fatalf("create lesson: %v", err)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.modules) != 1 || fb.modules[0] != mod {
		t.Fatalf("modules: got=%+v", fb.modules)
	}
	if len(fb.lessons) != 1 || fb.lessons[0] != lesson {
		t.Fatalf("lessons: got=%+v", fb.lessons)
	}
}
