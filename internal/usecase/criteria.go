package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pricescout/backend/internal/domain"
)

// CriteriaValidator checks search criteria before a search starts.
// An inverted price band is rejected here rather than left to produce zero matches.
type CriteriaValidator struct {
	validate *validator.Validate
}

// NewCriteriaValidator creates a validator that reports fields by their JSON names
func NewCriteriaValidator() *CriteriaValidator {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// required accepts whitespace-only strings
	_ = validate.RegisterValidation("nonblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &CriteriaValidator{validate: validate}
}

// Validate returns an error wrapping domain.ErrInvalidCriteria when the criteria are unusable
func (v *CriteriaValidator) Validate(criteria domain.SearchCriteria) error {
	err := v.validate.Struct(criteria)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidCriteria, err)
	}

	problems := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		problems = append(problems, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidCriteria, strings.Join(problems, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "nonblank":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be below minPrice", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
