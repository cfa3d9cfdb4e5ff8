package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// ValidationHelper wraps a validator.Validate instance shared by every handler.
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper constructs a ValidationHelper.
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{validator: validator.New()}
}

// ValidateStruct validates s against its `validate` struct tags.
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse writes a JSON error body with statusCode.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{Error: message}
	if validationErr != nil {
		if fieldErrs, ok := validationErr.(validator.ValidationErrors); ok {
			resp.Details = make(map[string]string)
			for _, fe := range fieldErrs {
				resp.Details[fe.Field()] = fmt.Sprintf("field validation failed on '%s' tag", fe.Tag())
			}
		}
	}

	json.NewEncoder(w).Encode(resp)
}

// errTrailingData is returned when the request body contains more than one JSON value.
var errTrailingData = errors.New("httpapi: request body must contain a single JSON object")

// decodeJSONBody decodes exactly one JSON object from r.Body into dst,
// rejecting unknown fields and trailing data.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errTrailingData
	}
	return nil
}
