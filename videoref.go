package main

import (
	"regexp"
	"strings"
)

var (
	// watch?v=, youtu.be/, /embed/, /v/, /shorts/, /live/, youtube-nocookie.com
	youtubeRefRe = regexp.MustCompile(`(?:youtube(?:-nocookie)?\.com/(?:[^/]+/.+/|(?:v|embed|shorts|live)/|.*[?&]v=)|youtu\.be/)([^"&?/ ]{11})`)
	videoIDRe    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// ExtractVideoID возвращает 11-символьный идентификатор ролика.
// Если ссылка не распознана, возвращается она же без пробелов по краям.
func ExtractVideoID(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if m := youtubeRefRe.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	return ref
}

// ResolveVideoID — то же, но сообщает, удалось ли получить настоящий идентификатор.
func ResolveVideoID(ref string) (string, bool) {
	id := ExtractVideoID(ref)
	if !videoIDRe.MatchString(id) {
		return "", false
	}
	return id, true
}
