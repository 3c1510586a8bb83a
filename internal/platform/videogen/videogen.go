package videogen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrNoVideoContent = errors.New("generated video has neither inline bytes nor a downloadable uri")

// Generator turns a text prompt into encoded video bytes.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// Artifact is one generated video as a provider reports it.
type Artifact struct {
	Inline []byte
	Base64 string
	URI    string
}

type Fetcher func(ctx context.Context, uri string) ([]byte, error)

// Normalize yields the raw bytes of a provider result: inline bytes as is,
// otherwise a single download of the URI.
func Normalize(ctx context.Context, a Artifact, fetch Fetcher) ([]byte, error) {
	if len(a.Inline) > 0 {
		return a.Inline, nil
	}
	if b64 := strings.TrimSpace(a.Base64); b64 != "" {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode inline video: %w", err)
		}
		if len(raw) > 0 {
			return raw, nil
		}
	}
	uri := strings.TrimSpace(a.URI)
	if uri == "" || fetch == nil {
		return nil, ErrNoVideoContent
	}
	raw, err := fetch(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	return raw, nil
}

func SniffMime(b []byte) string {
	if len(b) >= 12 && bytes.Contains(b[:12], []byte("ftyp")) {
		return "video/mp4"
	}
	if len(b) >= 4 && b[0] == 0x1A && b[1] == 0x45 && b[2] == 0xDF && b[3] == 0xA3 {
		return "video/webm"
	}
	return "video/mp4"
}
