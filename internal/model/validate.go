package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldError names one rejected input field by its JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError is returned before any storage I/O happens.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

func checkStruct(v any) []FieldError {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	return fieldErrors(err)
}

func checkVar(field string, v any, tag string) []FieldError {
	err := validatorInstance().Var(v, tag)
	if err == nil {
		return nil
	}
	out := fieldErrors(err)
	for i := range out {
		out[i].Field = field
	}
	return out
}

func fieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Rule: "invalid", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Rule: fe.Tag(), Message: ruleMessage(fe)})
	}
	return out
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "url", "uri":
		return "must be a URL"
	default:
		return "failed " + fe.Tag()
	}
}

func checkDate(field string, d EventDate) []FieldError {
	if d.IsZero() {
		return []FieldError{{Field: field, Rule: "required", Message: "is required"}}
	}
	if !d.Valid() {
		return []FieldError{{Field: field, Rule: "datetime", Message: "must be YYYY-MM-DD or YYYY-MM-DDTHH:MM[:SS]"}}
	}
	return nil
}

func checkRecurrence(r *Recurrence) []FieldError {
	if r == nil {
		return nil
	}
	errs := checkStruct(r)
	if r.Until != nil && !r.Until.Valid() {
		errs = append(errs, FieldError{Field: "until", Rule: "datetime", Message: "must be a date"})
	}
	return errs
}

func asError(errs []FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: errs}
}
