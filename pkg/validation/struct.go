package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one failed struct-tag rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// StructError aggregates the field errors of a single struct validation.
type StructError struct {
	Fields []FieldError
}

func (e *StructError) Error() string {
	messages := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		messages = append(messages, f.Message)
	}
	return strings.Join(messages, "; ")
}

// Validator returns the shared validator instance. It is safe for concurrent use.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			return jsonName(field.Tag.Get("json"), field.Name)
		})
	})
	return validate
}

// ValidateStruct validates s against its `validate` tags. It returns nil or a *StructError.
func ValidateStruct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &StructError{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	fields := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, FieldError{
			Field:   trimNamespace(fe.Namespace()),
			Tag:     fe.Tag(),
			Message: translateError(fe),
		})
	}
	return &StructError{Fields: fields}
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
	"min":   "%s must contain at least %s item(s)",
	"max":   "%s must contain at most %s item(s)",
}

func translateError(fe validator.FieldError) string {
	field := trimNamespace(fe.Namespace())
	if fe.Tag() == "required" {
		return fmt.Sprintf("%s is required", field)
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(template, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// trimNamespace drops the top-level struct name from "Request.channels[0].cost".
func trimNamespace(ns string) string {
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func jsonName(tag, fallback string) string {
	name := strings.SplitN(tag, ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fallback
	}
	return name
}
