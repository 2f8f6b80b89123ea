// AngelaMos | 2026
// response.go

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Pagination `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response write
	_ = json.NewEncoder(w).Encode(body)
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Response{Success: true, Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Paginated(w http.ResponseWriter, data any, page, pageSize, total int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	JSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// JSONError writes err as an error envelope. Only AppErrors reach the
// client with their own message; anything else is reported generically.
func JSONError(w http.ResponseWriter, err error) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = NewAppError(err, "internal server error", http.StatusInternalServerError, KindInternal)
	}

	status := appErr.StatusCode
	if status == 0 {
		status = appErr.Kind.HTTPStatus()
	}

	message := appErr.Message
	if status >= http.StatusInternalServerError && appErr.Kind != KindTimeout {
		message = "internal server error"
	}

	JSON(w, status, Response{
		Success: false,
		Error: &ErrorBody{
			Code:    string(appErr.Kind),
			Message: message,
			Fields:  appErr.Fields,
		},
	})
}

// HandleError maps any service error onto the HTTP envelope, logging
// causes that the client never sees.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	kind := KindOf(err)
	if kind == KindInternal || kind == KindPersistence || kind == KindTimeout {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", string(kind),
			"error", err,
		)
	}

	if IsAppError(err) {
		JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, ErrNotFound):
		JSONError(w, NotFoundError("resource"))
	case errors.Is(err, ErrDuplicateKey):
		JSONError(w, ConflictError("resource already exists"))
	case errors.Is(err, ErrForbidden):
		JSONError(w, ForbiddenError(""))
	case errors.Is(err, ErrUnauthorized):
		JSONError(w, UnauthorizedError(""))
	default:
		JSONError(w, err)
	}
}

func BadRequest(w http.ResponseWriter, message string) {
	e := newKindError(KindValidation, nil, message)
	JSONError(w, e)
}

func NotFound(w http.ResponseWriter, resource string) {
	JSONError(w, NotFoundError(resource))
}

func Forbidden(w http.ResponseWriter, message string) {
	JSONError(w, ForbiddenError(message))
}

func Unauthorized(w http.ResponseWriter, message string) {
	JSONError(w, UnauthorizedError(message))
}

const maxBodyBytes = 1 << 20

// Bind decodes the JSON body into dst and validates it. On failure it
// writes the error envelope and returns false.
func Bind(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) bool {
	return DecodeJSON(w, r, dst) && Validate(w, v, dst)
}

func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			BadRequest(w, "request body too large")
			return false
		}
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}

func Validate(w http.ResponseWriter, v *validator.Validate, dst any) bool {
	if err := v.Struct(dst); err != nil {
		JSONError(w, ValidationError(ValidationFields(err)...))
		return false
	}
	return true
}

func InternalServerError(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	JSONError(w, NewAppError(err, "internal server error", http.StatusInternalServerError, KindInternal))
}

// FormatValidationError turns validator output into a single readable line.
func FormatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on '%s'", toSnake(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// ValidationFields converts validator output into per-field detail.
func ValidationFields(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "body", Message: "invalid request"}}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := "failed on '" + fe.Tag() + "'"
		if fe.Param() != "" {
			msg += " (" + fe.Param() + ")"
		}
		fields = append(fields, FieldError{Field: toSnake(fe.Field()), Message: msg})
	}
	return fields
}

func toSnake(s string) string {
	var b strings.Builder
	var prev rune
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && (prev < 'A' || prev > 'Z') {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
		prev = r
	}
	return b.String()
}
