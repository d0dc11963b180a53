/*
Package storage keeps the images uploaded to the LocalMart dev API server (profile
pictures and product photos) and serves them back under /media/.

Uploads are validated against an image allow-list before they are stored.
*/
package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/randx"
)

// MediaPrefix is the URL path under which stored objects are served.
const MediaPrefix = "/media/"

// Object is a stored file.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
	StoredAt    time.Time
}

// Service stores uploaded media.
type Service interface {
	// Put stores the content under folder with a fresh key derived from filename
	// and returns the object's public path.
	Put(ctx context.Context, folder, filename, contentType string, content io.Reader) (string, error)

	// Get returns the object stored under key.
	Get(ctx context.Context, key string) (*Object, error)

	// Delete removes the object stored under key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// MemoryService is an in-process Service.
type MemoryService struct {
	mu      sync.RWMutex
	objects map[string]*Object
}

var _ Service = (*MemoryService)(nil)

// NewMemoryService returns an empty MemoryService.
func NewMemoryService() *MemoryService {
	return &MemoryService{objects: make(map[string]*Object)}
}

// Put validates and stores an image.
func (s *MemoryService) Put(ctx context.Context, folder, filename, contentType string, content io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxImageSize+1))
	if err != nil {
		return "", errs.NewError(errs.ErrFormParseFailed)
	}
	if customErr := ValidateImageSize(int64(len(data))); customErr != nil {
		return "", customErr
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if customErr := ValidateImageType(filename, contentType); customErr != nil {
		return "", customErr
	}

	key := path.Join(folder, randx.TokenID()+strings.ToLower(path.Ext(filename)))

	s.mu.Lock()
	s.objects[key] = &Object{
		Key:         key,
		ContentType: strings.ToLower(contentType),
		Data:        data,
		StoredAt:    time.Now().UTC(),
	}
	s.mu.Unlock()

	return MediaPrefix + key, nil
}

// Get returns a copy of the object stored under key.
func (s *MemoryService) Get(ctx context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[strings.TrimPrefix(key, MediaPrefix)]
	if !ok {
		return nil, errs.NewError(errs.ErrNotFound)
	}
	out := *obj
	out.Data = bytes.Clone(obj.Data)
	return &out, nil
}

// Delete removes the object stored under key.
func (s *MemoryService) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, strings.TrimPrefix(key, MediaPrefix))
	return nil
}
