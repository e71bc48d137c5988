package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soundvault/backend/internal/errs"
)

func newLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestLocalSaveStatOpen(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	payload := []byte("0123456789abcdef")

	n, err := l.Save(ctx, "audio/track.mp3", bytes.NewReader(payload), "audio/mpeg")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("saved %d bytes, want %d", n, len(payload))
	}

	size, err := l.Stat(ctx, "audio/track.mp3")
	if err != nil || size != int64(len(payload)) {
		t.Fatalf("Stat = %d, %v", size, err)
	}

	rc, err := l.Open(ctx, "audio/track.mp3", 4, 6)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "456789" {
		t.Errorf("window = %q, want %q", got, "456789")
	}

	if _, err := os.Stat(filepath.Join(l.root, "audio", "track.mp3.part")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestLocalMissingObject(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)

	if _, err := l.Stat(ctx, "audio/nope.mp3"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Stat: expected not found, got %v", err)
	}
	if _, err := l.Open(ctx, "audio/nope.mp3", 0, 1); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Open: expected not found, got %v", err)
	}
	if err := l.Delete(ctx, "audio/nope.mp3"); err != nil {
		t.Errorf("Delete of missing key should succeed, got %v", err)
	}
	ok, err := Exists(ctx, l, "audio/nope.mp3")
	if err != nil || ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	l := newLocal(t)
	for _, key := range []string{"", "../etc/passwd", "/abs", "audio/../../x", "a//b"} {
		if _, err := l.Stat(context.Background(), key); !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("key %q: expected invalid input, got %v", key, err)
		}
	}
}

func TestLocalDelete(t *testing.T) {
	ctx := context.Background()
	l := newLocal(t)
	if _, err := l.Save(ctx, "covers/a.jpg", strings.NewReader("img"), "image/jpeg"); err != nil {
		t.Fatal(err)
	}
	if err := l.Delete(ctx, "covers/a.jpg"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := Exists(ctx, l, "covers/a.jpg"); ok {
		t.Error("object still exists after delete")
	}
}

func TestBuildObjectKey(t *testing.T) {
	key := BuildObjectKey(KindAudio, "My Song.MP3")
	if !strings.HasPrefix(key, "audio/") || !strings.HasSuffix(key, ".mp3") {
		t.Errorf("unexpected key %q", key)
	}
	if err := validKey(key); err != nil {
		t.Errorf("built key should be valid: %v", err)
	}
	if BuildObjectKey(KindAudio, "a.mp3") == BuildObjectKey(KindAudio, "a.mp3") {
		t.Error("keys should be unique")
	}
}
