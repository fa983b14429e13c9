package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const MaxAvatarSize = 2 << 20

var (
	ErrObjectExists      = newError(ErrConflict, "object already exists")
	ErrInvalidObjectPath = newError(ErrInvalid, "invalid object path")
	ErrUnsupportedAvatar = newError(ErrInvalid, "avatar must be a png, jpeg, webp or gif image")
	ErrAvatarTooLarge    = newError(ErrInvalid, "avatar must be 2 MiB or smaller")
)

// ObjectStore keeps public files such as avatars.
type ObjectStore interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, overwrite bool) error
	PublicURL(objectPath string) string
}

// FSStore is an ObjectStore backed by a local directory.
type FSStore struct {
	root      string
	publicURL string
}

func NewFSStore(root, publicURL string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &FSStore{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *FSStore) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" || clean != "/"+objectPath {
		return "", ErrInvalidObjectPath
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Upload writes r to objectPath. Without overwrite an existing object is a conflict.
func (s *FSStore) Upload(ctx context.Context, objectPath string, r io.Reader, overwrite bool) error {
	dest, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(dest); err == nil {
			return ErrObjectExists
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking object: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, readerWithContext(ctx, r)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing object: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting object mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("storing object: %w", err)
	}
	return nil
}

func (s *FSStore) PublicURL(objectPath string) string {
	return s.publicURL + "/" + strings.TrimLeft(objectPath, "/")
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}

var avatarExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// AvatarObjectPath validates an avatar upload and names its object.
func AvatarObjectPath(userID uuid.UUID, contentType string, size int64) (string, error) {
	ext, ok := avatarExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", ErrUnsupportedAvatar
	}
	if size > MaxAvatarSize {
		return "", ErrAvatarTooLarge
	}
	return "avatars/" + userID.String() + ext, nil
}

// AvatarService stores avatar images and records their public URL on the user.
type AvatarService struct {
	store ObjectStore
	users *UserService
}

func NewAvatarService(store ObjectStore, users *UserService) *AvatarService {
	return &AvatarService{store: store, users: users}
}

func (s *AvatarService) Upload(ctx context.Context, userID uuid.UUID, contentType string, size int64, r io.Reader) (string, error) {
	objectPath, err := AvatarObjectPath(userID, contentType, size)
	if err != nil {
		return "", err
	}
	if err := s.store.Upload(ctx, objectPath, io.LimitReader(r, MaxAvatarSize), true); err != nil {
		return "", err
	}
	url := s.store.PublicURL(objectPath)
	if err := s.users.UpdateAvatarURL(ctx, userID, url); err != nil {
		return "", err
	}
	return url, nil
}
