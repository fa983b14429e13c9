package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestFSStore_UploadAndOverwrite(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "/uploads/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if err := store.Upload(ctx, "avatars/a.png", strings.NewReader("one"), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Upload(ctx, "avatars/a.png", strings.NewReader("two"), false); !errors.Is(err, ErrObjectExists) {
		t.Fatalf("expected ErrObjectExists, got %v", err)
	}
	if err := store.Upload(ctx, "avatars/a.png", strings.NewReader("three"), true); err != nil {
		t.Fatalf("unexpected overwrite error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "avatars", "a.png"))
	if err != nil {
		t.Fatalf("reading object: %v", err)
	}
	if string(data) != "three" {
		t.Fatalf("expected overwritten content, got %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "avatars"))
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, got %d entries", len(entries))
	}
}

func TestFSStore_RejectsBadPaths(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range []string{"", "../escape.png", "avatars/../../x", "/abs.png", "a//b.png"} {
		if err := store.Upload(context.Background(), p, strings.NewReader("x"), true); !errors.Is(err, ErrInvalidObjectPath) {
			t.Errorf("path %q: expected ErrInvalidObjectPath, got %v", p, err)
		}
	}
}

func TestFSStore_CanceledContext(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Upload(ctx, "a.png", strings.NewReader("x"), true); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFSStore_PublicURL(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "https://cdn.example/uploads/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := store.PublicURL("avatars/a.png"); got != "https://cdn.example/uploads/avatars/a.png" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestAvatarObjectPath(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		contentType string
		size        int64
		want        string
		err         error
	}{
		{"image/png", 10, "avatars/" + id.String() + ".png", nil},
		{"IMAGE/JPEG", 10, "avatars/" + id.String() + ".jpg", nil},
		{"image/webp", MaxAvatarSize, "avatars/" + id.String() + ".webp", nil},
		{"image/gif", 1, "avatars/" + id.String() + ".gif", nil},
		{"image/svg+xml", 10, "", ErrUnsupportedAvatar},
		{"image/png", MaxAvatarSize + 1, "", ErrAvatarTooLarge},
	}
	for _, tt := range tests {
		got, err := AvatarObjectPath(id, tt.contentType, tt.size)
		if !errors.Is(err, tt.err) || got != tt.want {
			t.Errorf("AvatarObjectPath(%q, %d) = %q, %v; want %q, %v", tt.contentType, tt.size, got, err, tt.want, tt.err)
		}
	}
}

func TestAvatarService_Upload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir, "/uploads")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	userID := uuid.New()
	var savedURL any
	db := &fakeDB{ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
		savedURL = args[0]
		return fakeCommandTag{rowsAffected: 1}, nil
	}}
	svc := NewAvatarService(store, NewUserService(db))

	url, err := svc.Upload(context.Background(), userID, "image/png", 4, strings.NewReader("\x89PNG"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "/uploads/avatars/" + userID.String() + ".png"
	if url != want || savedURL != want {
		t.Fatalf("expected %q saved, got url=%q saved=%v", want, url, savedURL)
	}
	if _, err := os.Stat(filepath.Join(dir, "avatars", userID.String()+".png")); err != nil {
		t.Fatalf("expected avatar file: %v", err)
	}
}

func TestAvatarService_UploadRejectsType(t *testing.T) {
	store, err := NewFSStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := NewAvatarService(store, NewUserService(&fakeDB{}))

	_, err = svc.Upload(context.Background(), uuid.New(), "text/plain", 4, strings.NewReader("nope"))
	if !errors.Is(err, ErrUnsupportedAvatar) || !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrUnsupportedAvatar, got %v", err)
	}
}
