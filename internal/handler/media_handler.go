package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"
	"localmart/internal/pkg/resp"
)

// storeUpload copies an uploaded file into the media store and returns its public path.
func storeUpload(r *http.Request, deps *AppDeps, folder string, fileHeader *multipart.FileHeader) (string, *errs.CustomError) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", errs.NewError(errs.ErrFormParseFailed)
	}
	defer file.Close()

	path, err := deps.Media.Put(r.Context(), folder, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		if customErr, ok := errs.As(err); ok {
			return "", customErr
		}
		return "", errs.NewError(errs.ErrUnknown, err)
	}
	return path, nil
}

// discardUpload removes a stored file whose owning update failed.
func discardUpload(r *http.Request, deps *AppDeps, path string) {
	if path == "" {
		return
	}
	if err := deps.Media.Delete(r.Context(), path); err != nil {
		logx.Warn("Failed to discard orphaned upload", "path", path, "error", err.Error())
	}
}

// HandleMedia serves a stored upload.
func HandleMedia(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		obj, err := deps.Media.Get(r.Context(), r.URL.Path)
		if err != nil {
			customErr, ok := errs.As(err)
			if !ok {
				customErr = errs.NewError(errs.ErrUnknown, err)
			}
			resp.RespondError(w, r, customErr)
			return
		}

		w.Header().Set("Content-Type", obj.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		w.Write(obj.Data)
	}
}
