package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/propledger/backend/internal/interfaces/http/dto"
)

// SetupValidator makes validation errors report json or form field names
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
}

// ValidationDetails converts validator errors into field details. Any other
// error, such as malformed JSON, yields one detail without a field.
func ValidationDetails(err error) []dto.ValidationDetail {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []dto.ValidationDetail{{Message: err.Error()}}
	}
	details := make([]dto.ValidationDetail, len(fieldErrs))
	for i, fe := range fieldErrs {
		details[i] = dto.ValidationDetail{Field: fe.Field(), Message: validationMessage(fe)}
	}
	return details
}

// FormatValidationErrors wraps ValidationDetails in an error response
func FormatValidationErrors(err error, requestID string) dto.Response {
	return dto.NewValidationErrorResponse("Request validation failed", requestID, ValidationDetails(err))
}

// HandleValidationError writes a 400 validation response
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, getRequestIDFromContext(c)))
}

var fixedMessages = map[string]string{
	"required": "This field is required",
	"uuid":     "Invalid UUID format",
	"numeric":  "Must be numeric",
}

var boundMessages = map[string]string{
	"oneof": "Must be one of: ",
	"gte":   "Must be greater than or equal to ",
	"lte":   "Must be less than or equal to ",
	"gt":    "Must be greater than ",
	"lt":    "Must be less than ",
}

func validationMessage(fe validator.FieldError) string {
	if msg, ok := fixedMessages[fe.Tag()]; ok {
		return msg
	}
	if prefix, ok := boundMessages[fe.Tag()]; ok {
		return prefix + fe.Param()
	}

	suffix := ""
	if fe.Kind() == reflect.String {
		suffix = " characters"
	}
	switch fe.Tag() {
	case "min":
		return "Must be at least " + fe.Param() + suffix
	case "max":
		return "Must be at most " + fe.Param() + suffix
	case "len":
		return "Must be exactly " + fe.Param() + suffix
	}
	return "Invalid value"
}
