package api

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"slices"
)

// File is one file part of a multipart body.
type File struct {
	Field    string
	Filename string
	Content  io.Reader
}

// Multipart is a multipart/form-data body. The Content-Type, including the boundary,
// is produced by the encoder.
type Multipart struct {
	Fields map[string]string
	Files  []File
}

// encode buffers the body so it can be sent with a Content-Length.
func (m *Multipart) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, key := range slices.Sorted(maps.Keys(m.Fields)) {
		if err := w.WriteField(key, m.Fields[key]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", key, err)
		}
	}

	for _, f := range m.Files {
		if f.Content == nil {
			return nil, "", fmt.Errorf("form file %s has no content", f.Field)
		}
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", fmt.Errorf("copy form file %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
