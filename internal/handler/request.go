package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"inkwell/internal/model"
	"inkwell/internal/service"
	"inkwell/internal/transport/http/middleware"
)

const (
	maxJSONBody = 1 << 20 // 1MB is plenty for JSON
	// formOverhead is the room left for text fields next to an image.
	formOverhead = 1 << 20
)

// currentUser returns the authenticated user, or nil on optional routes.
func currentUser(r *http.Request) *model.User {
	user, _ := middleware.GetUserFromContext(r.Context())
	return user
}

// pathID parses a numeric URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.ErrInvalidIdentifier
	}
	return id, nil
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return model.ErrInvalidJSONBody
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// upload is a decoded write request: the JSON-style fields plus an optional
// image. Call cleanup once the request is handled.
type upload struct {
	fields map[string]json.RawMessage
	image  *service.ImageFile
	form   *http.Request
}

func (u *upload) cleanup() {
	if u.image != nil {
		_ = u.image.File.Close()
	}
	if u.form != nil && u.form.MultipartForm != nil {
		_ = u.form.MultipartForm.RemoveAll()
	}
}

// decodeInto copies the fields onto a typed request.
func (u *upload) decodeInto(dst any) error {
	raw, err := json.Marshal(u.fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return model.ErrInvalidJSONBody
	}
	return nil
}

// readUpload accepts either a JSON object or a multipart form whose text
// fields become string values and whose fileField part becomes the image.
func readUpload(w http.ResponseWriter, r *http.Request, fileField string) (*upload, error) {
	u := &upload{fields: map[string]json.RawMessage{}}

	if !isMultipart(r) {
		if err := decodeJSON(w, r, &u.fields); err != nil {
			return nil, err
		}
		if u.fields == nil {
			u.fields = map[string]json.RawMessage{}
		}
		return u, nil
	}

	maxFormSize := int64(model.MaxImageSizeBytes) + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.ErrFileTooLarge
		}
		return nil, model.ErrInvalidMultipart
	}
	u.form = r

	for key, values := range r.MultipartForm.Value {
		if len(values) == 0 {
			continue
		}
		raw, err := json.Marshal(values[0])
		if err != nil {
			u.cleanup()
			return nil, model.ErrInvalidMultipart
		}
		u.fields[key] = raw
	}

	file, header, err := r.FormFile(fileField)
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		u.cleanup()
		return nil, model.ErrInvalidMultipart
	default:
		u.image = &service.ImageFile{File: file, Header: header}
		if header.Size > model.MaxImageSizeBytes {
			u.cleanup()
			return nil, model.ErrFileTooLarge
		}
	}
	return u, nil
}
