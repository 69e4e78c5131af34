package mimes

import (
	"path"
	"strings"
)

const (
	AudioAIFF       = "audio/aiff"
	AudioFLAC       = "audio/flac"
	AudioMP3        = "audio/mp3"
	AudioMP4        = "audio/mp4"
	AudioOGG        = "audio/ogg"
	AudioWAV        = "audio/wave"
	ApplicationJSON = "application/json"
	ApplicationPDF  = "application/pdf"
	ApplicationZIP  = "application/zip"
	ImageJPEG       = "image/jpeg"
	ImagePNG        = "image/png"
	ImageWEBP       = "image/webp"
	TextHTML        = "text/html; charset=utf-8"
	TextMarkdown    = "text/markdown; charset=utf-8"
	TextPlain       = "text/plain; charset=utf-8"
	VideoMP4        = "video/mp4"

	// Default is used for resources whose type cannot be derived.
	Default = "application/octet-stream"
)

var byExt = map[string]string{
	".aif":  AudioAIFF,
	".aiff": AudioAIFF,
	".flac": AudioFLAC,
	".mp3":  AudioMP3,
	".m4a":  AudioMP4,
	".ogg":  AudioOGG,
	".wav":  AudioWAV,
	".json": ApplicationJSON,
	".pdf":  ApplicationPDF,
	".zip":  ApplicationZIP,
	".jpg":  ImageJPEG,
	".jpeg": ImageJPEG,
	".png":  ImagePNG,
	".webp": ImageWEBP,
	".htm":  TextHTML,
	".html": TextHTML,
	".md":   TextMarkdown,
	".txt":  TextPlain,
	".mp4":  VideoMP4,
}

// FromFilename returns the MIME type for name's extension, or "" when it is
// unknown.
func FromFilename(name string) string {
	return byExt[strings.ToLower(path.Ext(name))]
}

// FromFilenameOrDefault is FromFilename falling back to Default.
func FromFilenameOrDefault(name string) string {
	if m := FromFilename(name); m != "" {
		return m
	}
	return Default
}
