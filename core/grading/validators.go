package grading

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-grading/core"
)

var (
	quarterTag  = "quarter"
	quarterText = "{0} must be one of Q1, Q2, Q3, Q4 (or 1-4)"
)

// InitValidators registers the grading validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(quarterTag, quarterValidation)
	core.RegisterCustomTranslation(validate, translator, quarterTag, quarterText)
}

// Custom Validators

// quarterValidation accepts any spelling of a quarter label NormalizeQuarter understands.
func quarterValidation(fl validator.FieldLevel) bool {
	_, err := NormalizeQuarter(fl.Field().String())
	return err == nil
}
