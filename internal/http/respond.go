package http

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/robertarktes/trek-bookings/internal/domain"
)

type envelope struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Count   *int         `json:"count,omitempty"`
	Total   *int         `json:"total,omitempty"`
	Message string       `json:"message,omitempty"`
	Errors  []fieldError `json:"errors,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func okList[T any](w http.ResponseWriter, items []T, total int) {
	count := len(items)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: items, Count: &count, Total: &total})
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

// statusFor maps the domain taxonomy onto HTTP. Anything unrecognised is a 500.
func statusFor(err error) (int, string) {
	var input *domain.InputError
	switch {
	case errors.As(err, &input):
		return http.StatusBadRequest, input.Msg
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest, domain.ErrInvalidQuantity.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, domain.ErrInvalidInput.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "not authorized, please log in"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "not authorized to access this resource"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusConflict, domain.ErrCapacityExceeded.Error()
	case errors.Is(err, domain.ErrAlreadyCancelled):
		return http.StatusConflict, domain.ErrAlreadyCancelled.Error()
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, domain.ErrInvalidTransition.Error()
	case errors.Is(err, domain.ErrTrekNotBookable):
		return http.StatusConflict, domain.ErrTrekNotBookable.Error()
	case errors.Is(err, domain.ErrSerializationFailure):
		return http.StatusConflict, "conflict, try again"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "internal server error"
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	log := loggerFrom(r.Context(), h.logger).WithError(err)
	switch {
	case errors.Is(err, domain.ErrInconsistentState):
		log.Error("participant counter inconsistent")
	case status >= 500:
		log.Error("request failed")
	default:
		log.Debug("request rejected")
	}
	fail(w, status, msg)
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and runs struct validation.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		fail(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			fail(w, http.StatusBadRequest, err.Error())
			return false
		}
		details := make([]fieldError, 0, len(verrs))
		for _, e := range verrs {
			details = append(details, fieldError{Field: e.Field(), Message: validationMessage(e)})
		}
		writeJSON(w, http.StatusBadRequest, envelope{Message: "request validation failed", Errors: details})
		return false
	}
	return true
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "invalid email format"
	case "uuid":
		return "invalid id format"
	case "url":
		return "invalid URL format"
	case "oneof":
		return "must be one of: " + e.Param()
	case "min", "gte":
		return "must be at least " + e.Param()
	case "max", "lte":
		if e.Kind() == reflect.String {
			return "must be at most " + e.Param() + " characters"
		}
		return "must be at most " + e.Param()
	case "gtefield":
		return "must not be before " + e.Param()
	default:
		return "invalid value"
	}
}
