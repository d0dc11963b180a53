package storage

import (
	"path/filepath"
	"strings"

	"localmart/internal/pkg/errs"
)

const (
	// MaxImageSizeMB is the maximum allowed image size in megabytes.
	MaxImageSizeMB = 5

	// MaxImageSize is the maximum allowed image size in bytes.
	MaxImageSize = MaxImageSizeMB * 1024 * 1024
)

// AllowedMIMETypes defines the set of permitted MIME types for uploaded images.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// ExtToMIME maps file extensions to their corresponding MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ValidateImageSize checks if the provided file size is within acceptable limits.
func ValidateImageSize(size int64) *errs.CustomError {
	if size <= 0 {
		return errs.NewError(errs.ErrValidation, "image: The submitted file is empty.")
	}
	if size > MaxImageSize {
		return errs.NewError(errs.ErrRequestEntityTooLarge)
	}
	return nil
}

// ValidateImageType checks that the file name's extension and the MIME type agree
// and name an allowed image format. MIME parameters such as charset are ignored.
func ValidateImageType(fileName, mimeType string) *errs.CustomError {
	invalid := errs.NewError(errs.ErrValidation, "image: Upload a valid image.")

	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if _, ok := AllowedMIMETypes[mimeType]; !ok {
		return invalid
	}

	expected, ok := ExtToMIME[strings.ToLower(filepath.Ext(fileName))]
	if !ok || expected != mimeType {
		return invalid
	}
	return nil
}
