package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"resumeai.app/resume-ai/internal/apperr"
	"resumeai.app/resume-ai/internal/extract"
)

const maxJSONBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names in validation messages.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
}

type LoginRequest struct {
	// Email also accepts a username with the file identity backend.
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type NavigateRequest struct {
	Target string `json:"target" validate:"required,oneof=home source_select multi_doc_chat notes history"`
}

type SourceURLRequest struct {
	URL string `json:"url" validate:"required"`
}

type MessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type NoteRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// decodeJSON reads and validates a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) *apperr.Error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return apperr.TooLarge(maxBytesErr.Limit)
		}
		return apperr.BadRequest("Invalid request body", err)
	}

	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fe := validationErrors[0]
			return apperr.BadRequest(fmt.Sprintf("Validation failed: field '%s' failed on '%s'", fe.Field(), fe.Tag()), err)
		}
		return apperr.BadRequest("Validation failed", err)
	}
	return nil
}

// parseUpload parses a multipart body capped at limit bytes.
func parseUpload(w http.ResponseWriter, r *http.Request, limit int64) *apperr.Error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return apperr.TooLarge(limit)
		}
		return apperr.BadRequest("Invalid multipart upload", err)
	}
	return nil
}

func readUpload(fh *multipart.FileHeader) (extract.File, error) {
	f, err := fh.Open()
	if err != nil {
		return extract.File{}, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return extract.File{}, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
	}
	return extract.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
