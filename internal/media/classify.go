package media

import (
	"errors"
	"path/filepath"
	"strings"
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("payload too large")
	ErrTooManyFiles         = errors.New("too many files")
)

var kinds = map[string]Kind{
	".jpg":  KindImage,
	".jpeg": KindImage,
	".png":  KindImage,
	".gif":  KindImage,
	".webp": KindImage,
	".mp4":  KindVideo,
	".mov":  KindVideo,
	".avi":  KindVideo,
	".webm": KindVideo,
}

// Classify decides the media kind from the filename extension alone.
func Classify(filename string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if k, ok := kinds[ext]; ok {
		return k, nil
	}
	return "", ErrUnsupportedMediaType
}

// Extensions lists every accepted extension, for error messages.
func Extensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".mp4", ".mov", ".avi", ".webm"}
}
