package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// BackendClient — REST-бэкенд маркетплейса. Без повторов: одна попытка
// на вызов, токен свежий на каждый запрос.
type BackendClient struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

func NewBackendClient(baseURL string, tokens TokenSource) *BackendClient {
	return &BackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		tokens:  tokens,
	}
}

// apiPath собирает путь с экранированными сегментами: apiPath("course", id).
func apiPath(segments ...string) string {
	var b strings.Builder
	b.WriteString("/api")
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// do выполняет запрос и возвращает тело. id == nil — запрос без авторизации.
func (b *BackendClient) do(ctx context.Context, method, path string, id *Identity, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id != nil {
		token, err := b.tokens.Token(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("backend token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend %s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &BackendError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   truncateBody(data),
		}
	}
	return data, nil
}

func (b *BackendClient) getJSON(ctx context.Context, path string, id *Identity, out any) error {
	data, err := b.do(ctx, http.MethodGet, path, id, nil, "")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend GET %s: decode: %w", path, err)
	}
	return nil
}

func (b *BackendClient) postJSON(ctx context.Context, path string, id *Identity, in any) ([]byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return b.do(ctx, http.MethodPost, path, id, bytes.NewReader(payload), "application/json")
}

func truncateBody(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// ---------- курсы ----------

func (b *BackendClient) Course(ctx context.Context, id *Identity, courseID string) (*Course, error) {
	data, err := b.do(ctx, http.MethodGet, apiPath("course", courseID), id, nil, "")
	if err != nil {
		if backendStatus(err) == http.StatusNotFound {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	course, err := DecodeCourseJSON(data)
	if err != nil {
		return nil, err
	}
	if course.ID == "" {
		course.ID = courseID
	}
	return course, nil
}

func (b *BackendClient) CheckEnrollment(ctx context.Context, id *Identity, courseID string) (bool, error) {
	var out struct {
		Enrolled bool `json:"enrolled"`
	}
	if err := b.getJSON(ctx, apiPath("enrollment", "check", id.Email, courseID), id, &out); err != nil {
		return false, err
	}
	return out.Enrolled, nil
}

func (b *BackendClient) Recommendations(ctx context.Context, id *Identity, courseID string) ([]CourseSummary, error) {
	var out struct {
		Recommendations []any `json:"recommendations"`
	}
	if err := b.getJSON(ctx, apiPath("course", "recommendations", courseID, id.Email), id, &out); err != nil {
		return nil, err
	}
	return decodeSummaries(out.Recommendations)
}

func (b *BackendClient) Categories(ctx context.Context) ([]Category, error) {
	var raw []any
	if err := b.getJSON(ctx, apiPath("categories"), nil, &raw); err != nil {
		return nil, err
	}
	var out []Category
	if err := decodeWeak(raw, &out); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return out, nil
}

func (b *BackendClient) CoursesByCategory(ctx context.Context, categoryID string) ([]CourseSummary, error) {
	var raw []any
	if err := b.getJSON(ctx, apiPath("courses", categoryID), nil, &raw); err != nil {
		return nil, err
	}
	return decodeSummaries(raw)
}

func decodeSummaries(raw []any) ([]CourseSummary, error) {
	out := make([]CourseSummary, 0, len(raw))
	if err := decodeWeak(raw, &out); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	return out, nil
}

// ---------- пользователь ----------

func (b *BackendClient) UserRole(ctx context.Context, id *Identity) (Role, error) {
	var out struct {
		User struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	if err := b.getJSON(ctx, apiPath("user", "info"), id, &out); err != nil {
		return RoleStudent, err
	}
	return ParseRole(out.User.Role), nil
}

// ---------- преподаватель ----------

func (b *BackendClient) InstructorCourses(ctx context.Context, id *Identity) ([]CourseSummary, error) {
	var raw []any
	if err := b.getJSON(ctx, apiPath("instructor", "courses"), id, &raw); err != nil {
		return nil, err
	}
	return decodeSummaries(raw)
}

func (b *BackendClient) InstructorContent(ctx context.Context, id *Identity, courseID string) ([]Module, error) {
	var raw []any
	if err := b.getJSON(ctx, apiPath("instructor", "courses", courseID, "content"), id, &raw); err != nil {
		return nil, err
	}
	return BuildModules(raw)
}

type NewModuleRequest struct {
	CourseID    string `json:"CourseID"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
}

type NewLessonRequest struct {
	ModuleID        string `json:"ModuleID"`
	Title           string `json:"Title"`
	Content         string `json:"Content"`
	VideoURL        string `json:"VideoURL"`
	LessonType      string `json:"lesson_type"`
	DurationMinutes int    `json:"duration_minutes"`
	IsFree          int    `json:"is_free"` // 1 | 0
}

func (b *BackendClient) CreateModule(ctx context.Context, id *Identity, req NewModuleRequest) error {
	_, err := b.postJSON(ctx, apiPath("instructor", "modules"), id, req)
	return err
}

func (b *BackendClient) CreateLesson(ctx context.Context, id *Identity, req NewLessonRequest) error {
	_, err := b.postJSON(ctx, apiPath("instructor", "lessons"), id, req)
	return err
}

// ImageUpload — обложка курса из формы редактора.
type ImageUpload struct {
	Filename string
	Data     io.Reader
}

var errSubmitRejected = errors.New("backend rejected course submission")

// SubmitCourse отправляет черновик одним multipart-запросом.
func (b *BackendClient) SubmitCourse(ctx context.Context, id *Identity, d *Draft, status ApprovalStatus, image *ImageUpload) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range d.Meta.formFields() {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	modules, err := json.Marshal(d.Tree.Modules)
	if err != nil {
		return err
	}
	if err := w.WriteField("modules", string(modules)); err != nil {
		return err
	}
	if err := w.WriteField("approval_status", string(status)); err != nil {
		return err
	}
	if image != nil {
		part, err := w.CreateFormFile("course_image", image.Filename)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, image.Data); err != nil {
			return fmt.Errorf("copy course image: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	data, err := b.do(ctx, http.MethodPost, apiPath("instructor", "courses"), id, &buf, w.FormDataContentType())
	if err != nil {
		return err
	}
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode submit response: %w", err)
	}
	if !out.Success {
		if out.Message != "" {
			return fmt.Errorf("%w: %s", errSubmitRejected, out.Message)
		}
		return errSubmitRejected
	}
	return nil
}
