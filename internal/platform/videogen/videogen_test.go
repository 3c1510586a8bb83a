package videogen

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	fetched := 0
	fetch := func(ctx context.Context, uri string) ([]byte, error) {
		fetched++
		if uri != "https://cdn.example/v.mp4" {
			t.Errorf("uri: got=%q", uri)
		}
		return []byte("downloaded"), nil
	}

	got, err := Normalize(context.Background(), Artifact{Inline: []byte("inline"), URI: "https://cdn.example/v.mp4"}, fetch)
	if err != nil || string(got) != "inline" {
		t.Fatalf("inline: got=%q err=%v", got, err)
	}
	if fetched != 0 {
		t.Fatalf("inline bytes must not trigger a download")
	}

	got, err = Normalize(context.Background(), Artifact{Base64: base64.StdEncoding.EncodeToString([]byte("b64"))}, fetch)
	if err != nil || string(got) != "b64" {
		t.Fatalf("base64: got=%q err=%v", got, err)
	}

	got, err = Normalize(context.Background(), Artifact{URI: "https://cdn.example/v.mp4"}, fetch)
	if err != nil || string(got) != "downloaded" || fetched != 1 {
		t.Fatalf("uri: got=%q err=%v fetched=%d", got, err, fetched)
	}

	_, err = Normalize(context.Background(), Artifact{}, fetch)
	if !errors.Is(err, ErrNoVideoContent) {
		t.Fatalf("empty: want ErrNoVideoContent got=%v", err)
	}
}

func TestSniffMime(t *testing.T) {
	if got := SniffMime([]byte("\x00\x00\x00\x18ftypmp42")); got != "video/mp4" {
		t.Fatalf("mp4: got=%q", got)
	}
	if got := SniffMime([]byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}); got != "video/webm" {
		t.Fatalf("webm: got=%q", got)
	}
}
