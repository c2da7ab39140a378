package savex

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hengadev/savex/internal/archiverr"
)

// AudioFormat is the container format of an audio file.
type AudioFormat string

const (
	AudioOGG     AudioFormat = "ogg"
	AudioWAV     AudioFormat = "wav"
	AudioMP3     AudioFormat = "mp3"
	AudioAIFF    AudioFormat = "aiff"
	AudioTracker AudioFormat = "tracker"
)

var audioExtensions = map[string]AudioFormat{
	".ogg":  AudioOGG,
	".wav":  AudioWAV,
	".mp3":  AudioMP3,
	".aiff": AudioAIFF,
	".aif":  AudioAIFF,
	".mod":  AudioTracker,
	".it":   AudioTracker,
	".s3m":  AudioTracker,
	".xm":   AudioTracker,
}

// AudioClip is an undecoded audio file.
type AudioClip struct {
	Name   string
	Format AudioFormat
	Data   []byte
}

// LoadAudio reads an audio file from the File location. The extension picks
// the format; formats the platform cannot play fail with ErrFormat before
// the file is read.
func (e *Engine) LoadAudio(ctx context.Context, cfg Config) (*AudioClip, error) {
	if cfg.Location != File {
		return nil, archiverr.NewUnsupportedOperationError("LoadAudio", cfg.Location.String())
	}
	format, err := e.audioFormatOf(cfg.Path)
	if err != nil {
		return nil, err
	}

	data, err := e.LoadRawBytes(ctx, cfg)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(cfg.Path), filepath.Ext(cfg.Path))
	return &AudioClip{Name: name, Format: format, Data: data}, nil
}

func (e *Engine) audioFormatOf(path string) (AudioFormat, error) {
	if e.platform == "js" {
		return "", archiverr.NewFormatError(path, "audio files cannot be loaded on js")
	}

	ext := strings.ToLower(filepath.Ext(path))
	format, ok := audioExtensions[ext]
	if !ok {
		return "", archiverr.NewFormatError(path, fmt.Sprintf("unsupported audio extension %q", ext))
	}

	switch {
	case format == AudioMP3 && (e.platform == "windows" || e.platform == "darwin"):
		return "", archiverr.NewFormatError(path, "mp3 files are not supported on "+e.platform)
	case format == AudioOGG && (e.platform == "ios" || e.platform == "android"):
		return "", archiverr.NewFormatError(path, "ogg files are not supported on "+e.platform)
	}
	return format, nil
}
