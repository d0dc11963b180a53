/*
Package req provides helper functions for HTTP request parsing and data binding.

The dev API server uses it to decode JSON bodies and multipart uploads (product and
profile images) with size limits, reporting failures as *errs.CustomError.
*/
package req

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"localmart/internal/pkg/errs"
)

const (
	// MaxFormMemory is the memory ParseMultipartForm may use before spilling file parts to disk.
	MaxFormMemory int64 = 8 << 20 // 8 MB

	// MaxRequestFileSize caps the whole multipart body, files included.
	MaxRequestFileSize int64 = 10 << 20 // 10 MB

	// MaxJSONBodySize caps a JSON request body.
	MaxJSONBodySize int64 = 1 << 20 // 1 MB
)

// BindJSON decodes the JSON request body into dst.
// Unknown fields are ignored; trailing content after the first value is rejected.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if _, err := decoder.Token(); err != io.EOF {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	return nil
}

// SetupMultipart limits and parses a multipart form request body.
func SetupMultipart(w http.ResponseWriter, r *http.Request) *errs.CustomError {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestFileSize)

	if err := r.ParseMultipartForm(MaxFormMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrFormParseFailed)
	}

	return nil
}

// FormFile returns the uploaded file under field, or nil when the field is absent.
// SetupMultipart must have been called first.
func FormFile(r *http.Request, field string) (*multipart.FileHeader, *errs.CustomError) {
	if r.MultipartForm == nil {
		return nil, errs.NewError(errs.ErrFormParseFailed)
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil, nil
	}
	return files[0], nil
}

// FormValue returns the first value of a multipart text field and whether it was sent.
func FormValue(r *http.Request, field string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	values, ok := r.MultipartForm.Value[field]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
