package features

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/kartoza/sales-forecast/internal/models"
)

// maxExactInt is the largest integer a float64 holds without rounding
const maxExactInt = 1 << 53

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func fieldValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		// Registration only fails on an empty tag or nil func.
		_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		})
		_ = v.RegisterValidation("integral", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return f == math.Trunc(f) && math.Abs(f) <= maxExactInt
		})
		validate = v
	})
	return validate
}

// ValidationError lists every rejected field of a request, in feature order
type ValidationError struct {
	Fields []models.FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate checks a request against the per-field constraints and converts
// it into a typed Record. All violations are reported, not just the first.
func Validate(req *models.PredictionRequest) (Record, error) {
	if req == nil {
		req = &models.PredictionRequest{}
	}
	if err := fieldValidator().Struct(req); err != nil {
		return Record{}, toValidationError(err)
	}

	return Record{
		Scaled: ScaledFeatures{
			DayOfWeek:          int(*req.DayOfWeek),
			Month:              int(*req.Month),
			Quarter:            int(*req.Quarter),
			IsWeekend:          int(*req.IsWeekend),
			Promo:              *req.Promo,
			SchoolHoliday:      int(*req.SchoolHoliday),
			SalesLag1:          *req.SalesLag1,
			SalesLag7:          *req.SalesLag7,
			SalesLag14:         *req.SalesLag14,
			SalesLag30:         *req.SalesLag30,
			CustomersLag1:      *req.CustomersLag1,
			CustomersLag7:      *req.CustomersLag7,
			SalesRollingMean7:  *req.SalesRollingMean7,
			SalesRollingMean14: *req.SalesRollingMean14,
			SalesRollingStd7:   *req.SalesRollingStd7,
			SalesRollingStd14:  *req.SalesRollingStd14,
			SalesPerCustomer:   *req.SalesPerCustomer,
		},
		Unscaled: UnscaledFeatures{
			Store:               int(*req.Store),
			Open:                int(*req.Open),
			StoreType:           int(*req.StoreType),
			Assortment:          int(*req.Assortment),
			CompetitionDistance: *req.CompetitionDistance,
		},
	}, nil
}

func checkRecord(r Record) error {
	if err := fieldValidator().Struct(r); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]models.FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, models.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "finite":
		return "must be a finite number"
	case "integral":
		return "must be an integer"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	default:
		return fmt.Sprintf("failed %s check", fe.Tag())
	}
}
