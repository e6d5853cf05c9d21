package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/bizdash/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator makes gin's validator report fields by their wire names
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(wireName)
	}
}

// wireName is the json name of a field, falling back to its form then uri tag
func wireName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form", "uri"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return ""
}

// FormatValidationErrors turns validator failures into a VALIDATION response with one detail per field
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details = make([]dto.ValidationDetail, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}
	return dto.Fail(dto.ErrCodeValidation, "Request validation failed", requestID).WithDetails(details)
}

// HandleValidationError writes a 400 for a binding failure and returns the code used:
// VALIDATION when the validator rejected fields, INVALID_JSON when the body did not decode
func HandleValidationError(c *gin.Context, err error) string {
	requestID := GetRequestID(c)

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		c.JSON(http.StatusBadRequest, FormatValidationErrors(err, requestID))
		return dto.ErrCodeValidation
	}
	c.JSON(http.StatusBadRequest, dto.Fail(dto.ErrCodeInvalidJSON, "Malformed request: "+err.Error(), requestID))
	return dto.ErrCodeInvalidJSON
}

// tagMessages holds a message per validator tag; %s is the tag parameter
var tagMessages = map[string]string{
	"required": "This field is required",
	"len":      "Must be exactly %s characters",
	"uuid":     "Invalid UUID format",
	"oneof":    "Must be one of: %s",
	"gte":      "Must be greater than or equal to %s",
	"lte":      "Must be less than or equal to %s",
	"gt":       "Must be greater than %s",
	"lt":       "Must be less than %s",
	"datetime": "Must match the layout %s",
	"dive":     "Invalid list element",
}

func fieldMessage(fe validator.FieldError) string {
	tag := fe.Tag()
	if tag == "min" || tag == "max" {
		bound := "least"
		if tag == "max" {
			bound = "most"
		}
		msg := fmt.Sprintf("Must be at %s %s", bound, fe.Param())
		if fe.Kind() == reflect.String {
			msg += " characters"
		}
		return msg
	}
	format, ok := tagMessages[tag]
	if !ok {
		return "Invalid value"
	}
	if strings.Contains(format, "%s") {
		return fmt.Sprintf(format, fe.Param())
	}
	return format
}
