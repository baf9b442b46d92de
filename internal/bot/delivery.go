package bot

import (
	"strings"

	"github.com/coah80/yoinkgram/internal/config"
)

type MediaKind int

const (
	MediaDocument MediaKind = iota
	MediaPhoto
	MediaVideo
	MediaAudio
)

func (k MediaKind) String() string {
	switch k {
	case MediaPhoto:
		return "photo"
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return "document"
	}
}

// MediaKindFor picks the upload call for a file extension. Unknown
// extensions go out as documents.
func MediaKindFor(ext string) MediaKind {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch {
	case config.Contains(config.ImageExts, ext):
		return MediaPhoto
	case config.Contains(config.VideoExts, ext):
		return MediaVideo
	case config.Contains(config.AudioExts, ext):
		return MediaAudio
	default:
		return MediaDocument
	}
}
