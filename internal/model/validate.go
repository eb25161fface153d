package model

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// modelValidate is shared by every Validate method. Initialized in init()
// with the custom "notblank" rule.
var modelValidate *validator.Validate

func init() {
	modelValidate = validator.New()
	_ = modelValidate.RegisterValidation("notblank", validateNotBlank)
}

// validateNotBlank rejects strings that are empty after trimming whitespace.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// Validate checks the product is well-formed enough to score.
func (p Product) Validate() error {
	return modelValidate.Struct(p)
}

// Validate checks a stack entry before it is stored
func (s StackItem) Validate() error {
	return modelValidate.Struct(s)
}
