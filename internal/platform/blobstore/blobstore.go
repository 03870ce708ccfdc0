// Package blobstore stores binary attachments referenced by medical notes,
// lab reports and clinical entries. Objects are addressed by a key that is
// persisted on the owning record.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("attachment not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrInvalidKey         = errors.New("invalid attachment key")
)

// MaxFileSize is the maximum accepted attachment size (25 MB).
const MaxFileSize = 25 << 20

// AllowedContentTypes lists the MIME types accepted as attachments.
var AllowedContentTypes = map[string]bool{
	"image/png":                true,
	"image/jpeg":               true,
	"application/pdf":          true,
	"application/dicom":        true,
	"text/plain":               true,
	"application/octet-stream": true,
}

// Object describes a stored attachment.
type Object struct {
	Key         string    `json:"key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is implemented by attachment backends.
type Store interface {
	Put(ctx context.Context, obj Object, content io.Reader) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// NewKey builds "<category>/<yyyy>/<mm>/<uuid>-<sanitised file name>".
func NewKey(category, fileName string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	base = unsafeChars.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "file"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	category = unsafeChars.ReplaceAllString(category, "_")
	if category == "" {
		category = "other"
	}
	return fmt.Sprintf("%s/%04d/%02d/%s-%s", category, now.Year(), int(now.Month()), uuid.NewString(), base)
}

// ValidKey rejects keys that could escape the attachment namespace.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

func checkUpload(obj Object) error {
	if obj.FileName == "" {
		return ErrMissingFileName
	}
	if obj.ContentType != "" && !AllowedContentTypes[obj.ContentType] {
		return ErrInvalidContentType
	}
	return nil
}

func readLimited(content io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading content: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, "", ErrFileTooLarge
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

type storedBlob struct {
	obj     Object
	content []byte
}

// MemoryStore keeps attachments in memory. Used in development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]*storedBlob)}
}

func (s *MemoryStore) Put(_ context.Context, obj Object, content io.Reader) (*Object, error) {
	if err := checkUpload(obj); err != nil {
		return nil, err
	}
	data, hash, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	obj.CreatedAt = time.Now().UTC()
	if obj.Key == "" {
		obj.Key = NewKey(obj.Category, obj.FileName, obj.CreatedAt)
	}
	if !ValidKey(obj.Key) {
		return nil, ErrInvalidKey
	}
	obj.Size = int64(len(data))
	obj.Hash = hash

	s.mu.Lock()
	s.blobs[obj.Key] = &storedBlob{obj: obj, content: data}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	obj := blob.obj
	return io.NopCloser(bytes.NewReader(blob.content)), &obj, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}
