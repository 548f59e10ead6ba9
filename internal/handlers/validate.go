package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxBodySize caps JSON request bodies. Category imports are the largest.
const maxBodySize = 4 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report fields by their JSON names so clients can match them.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// decodeJSON reads the request body into dst and runs validator tags.
// Returns false and writes the error response if either step fails; the
// caller should return immediately without writing another response.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return validateStruct(w, dst)
}

// validateStruct runs validator tags on v and writes a 422 with per-field
// messages on failure.
func validateStruct(w http.ResponseWriter, v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{
		Detail: "invalid input",
		Fields: fieldMessages(verrs),
	})
	return false
}

// fieldMessages turns validator errors into readable per-field messages.
func fieldMessages(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return fields
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "email":
		return "must be a valid email address"
	case "numeric":
		return "must contain only digits"
	}
	return "failed " + fe.Tag() + " validation"
}
