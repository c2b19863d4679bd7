package models

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

type MediaKind string

const (
	KindImage MediaKind = "image"
	KindGif   MediaKind = "gif"
	KindVideo MediaKind = "video"
)

// MediaItem is the canonical internal shape every upstream response is
// normalised into. Everything past the source packages only ever sees this.
type MediaItem struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Kind         MediaKind `json:"kind"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Nsfw         bool      `json:"nsfw"`
	Source       string    `json:"source"`
}

// Poster returns the best URL for a still frame, falling back to the
// playable URL when no dedicated thumbnail exists.
func (m MediaItem) Poster() string {
	if m.ThumbnailURL != "" {
		return m.ThumbnailURL
	}
	return m.URL
}

// MediaTypes gates which kinds a player session will accept. The zero
// value allows everything, matching sessions that never set a filter.
type MediaTypes struct {
	Image bool `json:"image"`
	Gif   bool `json:"gif"`
	Video bool `json:"video"`
}

func (mt MediaTypes) Allows(kind MediaKind) bool {
	if !mt.Image && !mt.Gif && !mt.Video {
		return true
	}
	switch kind {
	case KindImage:
		return mt.Image
	case KindGif:
		return mt.Gif
	case KindVideo:
		return mt.Video
	}
	return false
}

// PlayerSettings is handed in by the UI when a session starts and is
// immutable for the lifetime of that session.
type PlayerSettings struct {
	Tags          []string   `json:"tags"`
	SlideDuration float64    `json:"slide_duration"`
	MinDuration   float64    `json:"min_duration"`
	MaxDuration   float64    `json:"max_duration"`
	TaskTime      float64    `json:"task_time"`
	SlowestBpm    int        `json:"slowest_bpm"`
	FastestBpm    int        `json:"fastest_bpm"`
	MediaTypes    MediaTypes `json:"media_types"`
	AllowNsfw     bool       `json:"allow_nsfw"`
}

func (s PlayerSettings) Validate() error {
	if s.SlowestBpm < 0 || s.FastestBpm < 0 {
		return fmt.Errorf("bpm bounds must be positive")
	}
	if s.SlowestBpm > s.FastestBpm {
		return fmt.Errorf("slowest bpm %d exceeds fastest bpm %d", s.SlowestBpm, s.FastestBpm)
	}
	return nil
}

// NormalizeTags lowercases, strips whitespace and drops empty or duplicate
// tags while preserving first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// NormalizeURL absolutises protocol-relative URLs and rejects anything
// that isn't plain http(s). An empty return marks the URL as unusable.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}

// KindFromURL sniffs the media kind from the file extension. Upstream type
// metadata wins when present so this is only the fallback classifier.
func KindFromURL(raw string) MediaKind {
	u, err := url.Parse(raw)
	if err != nil {
		return KindImage
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".gif", ".gifv":
		return KindGif
	case ".mp4", ".webm", ".mov", ".m3u8":
		return KindVideo
	default:
		return KindImage
	}
}
