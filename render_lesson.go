package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	msgVideoUnavailable = "Видео недоступно"
	msgNoMaterial       = "Материалы для этого урока пока не загружены"
	msgLiveScheduled    = "Прямой эфир запланирован"
	msgDateNotSet       = "Дата не назначена"
)

// ---------- настройки плеера ----------

var plyrControls = []string{
	"play-large", "play", "progress", "current-time",
	"mute", "volume", "settings", "fullscreen",
}

type youtubeOptions struct {
	NoCookie       bool `json:"noCookie"`
	Rel            int  `json:"rel"`
	ShowInfo       int  `json:"showinfo"`
	IVLoadPolicy   int  `json:"iv_load_policy"`
	ModestBranding int  `json:"modestbranding"`
}

type PlayerConfig struct {
	Controls []string       `json:"controls"`
	YouTube  youtubeOptions `json:"youtube"`
}

func defaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		Controls: plyrControls,
		YouTube: youtubeOptions{
			NoCookie:       true,
			Rel:            0,
			ShowInfo:       0,
			IVLoadPolicy:   3,
			ModestBranding: 1,
		},
	}
}

// ---------- локаль ----------

var supportedLocales = []language.Tag{
	language.English, // по умолчанию
	language.Russian,
	language.BritishEnglish,
	language.German,
	language.French,
}

var localeMatcher = language.NewMatcher(supportedLocales)

var scheduleFormats = map[language.Tag]string{
	language.English:        "Jan 2, 2006, 3:04 PM",
	language.Russian:        "02.01.2006, 15:04",
	language.BritishEnglish: "2 Jan 2006, 15:04",
	language.German:         "02.01.2006, 15:04",
	language.French:         "02/01/2006 15:04",
}

// ResolveLocale подбирает поддерживаемую локаль по заголовку Accept-Language.
func ResolveLocale(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return supportedLocales[0]
	}
	_, idx, conf := localeMatcher.Match(tags...)
	if conf == language.No {
		return supportedLocales[0]
	}
	return supportedLocales[idx]
}

type RenderOptions struct {
	Locale   language.Tag
	Location *time.Location
}

func FormatSchedule(t *time.Time, opts RenderOptions) string {
	if t == nil {
		return msgDateNotSet
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	layout, ok := scheduleFormats[opts.Locale]
	if !ok {
		layout = scheduleFormats[supportedLocales[0]]
	}
	return t.In(loc).Format(layout) + " " + t.In(loc).Format("MST")
}

// ---------- представление урока ----------

type LessonView struct {
	LessonID  string
	Title     string
	Type      LessonType
	Duration  string
	Completed bool

	// заполнено ровно одно
	Video    *VideoView
	Document *DocumentView
	Live     *LiveView
	Text     *TextView
}

type VideoView struct {
	Available    bool
	VideoID      string
	EmbedURL     string
	PlayerConfig string // JSON для data-plyr-config
	Message      string
}

type DocumentView struct {
	Description string
	DownloadURL string
	FileName    string
	Message     string
}

type LiveView struct {
	StreamURL string
	Scheduled string
	Message   string
}

type TextView struct {
	Body string
}

// RenderLesson строит представление выбранного урока. Ничего не хранит
// между вызовами: при смене урока представление собирается заново.
func RenderLesson(l *Lesson, st *SelectionState, opts RenderOptions) LessonView {
	v := LessonView{
		LessonID: l.ID,
		Title:    l.Title,
		Type:     l.Type(),
	}
	if l.DurationMinutes > 0 {
		v.Duration = fmt.Sprintf("%d мин", l.DurationMinutes)
	}
	if st != nil {
		v.Completed = st.IsCompleted(l.ID)
	}

	switch b := l.Body.(type) {
	case VideoLesson:
		v.Video = renderVideo(b)
	case DocumentLesson:
		v.Document = renderDocument(b)
	case LiveLesson:
		v.Live = renderLive(b, opts)
	case TextLesson:
		v.Text = &TextView{Body: b.Body}
	default:
		v.Type = LessonText
		v.Text = &TextView{}
	}
	return v
}

func renderVideo(b VideoLesson) *VideoView {
	if b.VideoID == "" {
		return &VideoView{Message: msgVideoUnavailable}
	}
	cfg, _ := json.Marshal(defaultPlayerConfig())
	return &VideoView{
		Available:    true,
		VideoID:      b.VideoID,
		EmbedURL:     youtubeEmbedURL(b.VideoID),
		PlayerConfig: string(cfg),
	}
}

func youtubeEmbedURL(id string) string {
	q := url.Values{}
	q.Set("rel", "0")
	q.Set("modestbranding", "1")
	q.Set("showinfo", "0")
	q.Set("iv_load_policy", "3")
	q.Set("enablejsapi", "1")
	return "https://www.youtube-nocookie.com/embed/" + url.PathEscape(id) + "?" + q.Encode()
}

func renderDocument(b DocumentLesson) *DocumentView {
	if b.URL == "" {
		return &DocumentView{Description: b.Description, Message: msgNoMaterial}
	}
	return &DocumentView{
		Description: b.Description,
		DownloadURL: b.URL,
		FileName:    documentFileName(b.URL),
	}
}

func documentFileName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "Скачать материал"
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		return "Скачать материал"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

func renderLive(b LiveLesson, opts RenderOptions) *LiveView {
	if strings.TrimSpace(b.StreamURL) != "" {
		return &LiveView{StreamURL: b.StreamURL}
	}
	return &LiveView{
		Message:   msgLiveScheduled,
		Scheduled: FormatSchedule(b.ScheduledAt, opts),
	}
}
