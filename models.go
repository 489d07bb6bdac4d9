// models.go
package main

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// ---------- Курс / Модуль / Урок (приходят с бэкенда, в БД не хранятся) ----------

type LessonType string

const (
	LessonVideo    LessonType = "video"
	LessonDocument LessonType = "document"
	LessonLive     LessonType = "live"
	LessonText     LessonType = "text"
)

// ParseLessonType: неизвестный тип считается текстовым уроком.
func ParseLessonType(s string) LessonType {
	switch LessonType(strings.ToLower(strings.TrimSpace(s))) {
	case LessonVideo:
		return LessonVideo
	case LessonDocument:
		return LessonDocument
	case LessonLive:
		return LessonLive
	default:
		return LessonText
	}
}

type Course struct {
	ID              string
	Title           string
	Description     string
	Instructor      string
	Price           float64
	ImageURL        string
	Duration        string
	Rating          float64
	EnrollmentCount int
	Modules         []Module
	Enrollment      *Enrollment
}

func (c *Course) LessonCount() int {
	n := 0
	for _, m := range c.Modules {
		n += len(m.Lessons)
	}
	return n
}

// FindLesson ищет урок по id во всех модулях.
func (c *Course) FindLesson(id string) (*Module, *Lesson) {
	if id == "" {
		return nil, nil
	}
	for mi := range c.Modules {
		for li := range c.Modules[mi].Lessons {
			if c.Modules[mi].Lessons[li].ID == id {
				return &c.Modules[mi], &c.Modules[mi].Lessons[li]
			}
		}
	}
	return nil, nil
}

func (c *Course) FindModule(id string) *Module {
	for i := range c.Modules {
		if c.Modules[i].ID == id {
			return &c.Modules[i]
		}
	}
	return nil
}

type Module struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Lessons     []Lesson `json:"lessons"`
}

type Lesson struct {
	ID              string
	Title           string
	DurationMinutes int
	Body            LessonBody
}

func (l Lesson) Type() LessonType {
	if l.Body == nil {
		return LessonText
	}
	return l.Body.lessonType()
}

func (l Lesson) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"id":               l.ID,
		"title":            l.Title,
		"type":             l.Type(),
		"duration_minutes": l.DurationMinutes,
	}
	switch b := l.Body.(type) {
	case VideoLesson:
		out["video_ref"] = b.Ref
		out["video_id"] = b.VideoID
	case DocumentLesson:
		out["document_url"] = b.URL
		out["description"] = b.Description
	case LiveLesson:
		out["stream_url"] = b.StreamURL
		if b.ScheduledAt != nil {
			out["scheduled_at"] = b.ScheduledAt.Format(time.RFC3339)
		}
	case TextLesson:
		out["content"] = b.Body
	}
	return json.Marshal(out)
}

// LessonBody — содержимое урока, ровно один вариант на урок.
type LessonBody interface {
	lessonType() LessonType
}

type VideoLesson struct {
	Ref     string
	VideoID string // пусто, если ссылку не удалось разобрать
}

type DocumentLesson struct {
	URL         string
	Description string
}

type LiveLesson struct {
	StreamURL   string // пусто — трансляция ещё не началась
	ScheduledAt *time.Time
}

type TextLesson struct {
	Body string
}

func (VideoLesson) lessonType() LessonType    { return LessonVideo }
func (DocumentLesson) lessonType() LessonType { return LessonDocument }
func (LiveLesson) lessonType() LessonType     { return LessonLive }
func (TextLesson) lessonType() LessonType     { return LessonText }

type Enrollment struct {
	Status     string
	AmountPaid float64
	Currency   string
}

func (e *Enrollment) Active() bool {
	return e != nil && strings.EqualFold(strings.TrimSpace(e.Status), "active")
}

// краткая карточка курса для каталога и рекомендаций
type CourseSummary struct {
	ID               string  `mapstructure:"CourseID"`
	Title            string  `mapstructure:"Title"`
	ShortDescription string  `mapstructure:"short_description"`
	Description      string  `mapstructure:"Description"`
	ImageURL         string  `mapstructure:"ImageURL"`
	Price            float64 `mapstructure:"price"`
	Rating           float64 `mapstructure:"rating"`
	ApprovalStatus   string  `mapstructure:"approval_status"`
}

type Category struct {
	ID   string `mapstructure:"CategoryID"`
	Name string `mapstructure:"CategoryName"`
}

// ---------- Локальные аккаунты ----------

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	FullName     string `gorm:"type:varchar(255)"`
	CreatedAt    time.Time
}

// UID — идентификатор локального аккаунта в том же пространстве, что и Firebase UID.
func (u User) UID() string {
	return "local:" + strconv.FormatUint(uint64(u.ID), 10)
}

// ---------- Прогресс и черновики ----------

type LessonProgress struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      string    `gorm:"size:128;not null;uniqueIndex:idx_progress_lesson"`
	CourseID    string    `gorm:"size:64;not null;uniqueIndex:idx_progress_lesson"`
	LessonID    string    `gorm:"size:64;not null;uniqueIndex:idx_progress_lesson"`
	CompletedAt time.Time `gorm:"autoCreateTime"`
}

func (LessonProgress) TableName() string { return "lesson_progress" }

type DraftRecord struct {
	ID        string         `gorm:"primaryKey;size:36"`
	OwnerID   string         `gorm:"size:128;index;not null"`
	Data      datatypes.JSON // Draft целиком
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"index"`
}

func (DraftRecord) TableName() string { return "course_drafts" }
