package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-grading/core/grading"
)

type (
	quarterGradeQuery struct {
		grading.QuarterKey
		Force bool `query:"force"`
	}

	reportCardQuery struct {
		StudentID    int64 `json:"student_id" param:"id" validate:"required,gt=0"`
		SchoolYearID int64 `json:"school_year_id" query:"school_year_id" validate:"required,gt=0"`
	}

	cacheStatusQuery struct {
		StudentID    int64 `json:"student_id" query:"student_id" validate:"gte=0"`
		SchoolYearID int64 `json:"school_year_id" query:"school_year_id" validate:"gte=0"`
	}
)

// bindAndValidate binds path params, query params (GET) and the JSON body into data, then validates it.
func bindAndValidate(ctx echo.Context, validate *validator.Validate, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrapf(err, "binding to %T", data)
	}
	return validate.Struct(data)
}
