package model

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so messages match request bodies.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("fullname", func(fl validator.FieldLevel) bool {
		return len(strings.Fields(fl.Field().String())) >= 2
	})

	v.RegisterStructValidation(postStructLevel, Post{})

	return v
}

// postStructLevel enforces the published-post invariant: drafts may be partial.
func postStructLevel(sl validator.StructLevel) {
	p := sl.Current().Interface().(Post)
	if p.IsDraft {
		return
	}
	if strings.TrimSpace(p.Title) == "" {
		sl.ReportError(p.Title, "title", "Title", "required", "")
	}
	if strings.TrimSpace(p.Content) == "" {
		sl.ReportError(p.Content, "content", "Content", "required", "")
	}
	if strings.TrimSpace(p.Category) == "" {
		sl.ReportError(p.Category, "category", "Category", "required", "")
	}
}

// Validate runs struct-tag and registered struct-level rules against v.
// Failures are returned as validator.ValidationErrors.
func Validate(v any) error {
	return validate.Struct(v)
}
