package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists every field problem found on one value.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string { return strings.Join(e.Problems, "; ") }

type enum interface{ Valid() bool }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
			e, ok := fl.Field().Interface().(enum)
			return ok && e.Valid()
		})
		v.RegisterStructValidation(waveDates, Wave{}, WaveInput{})
		v.RegisterStructValidation(workOrderTimes, WorkOrder{}, WorkOrderInput{}, WorkOrderStatusUpdate{})
		validate = v
	})
	return validate
}

// Validate checks v against its struct tags and the cross-field rules of
// waves (start_date <= end_date) and work orders (end_time >= start_time).
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Problems = append(out.Problems, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field %q: required", fe.Field())
	case "enum":
		return fmt.Sprintf("field %q: invalid value %q", fe.Field(), fmt.Sprint(fe.Value()))
	case "datetime":
		return fmt.Sprintf("field %q: %q is not a YYYY-MM-DD date", fe.Field(), fmt.Sprint(fe.Value()))
	case "daterange":
		return fmt.Sprintf("field %q: must not be before start_date", fe.Field())
	case "timerange":
		return fmt.Sprintf("field %q: must not be before start_time", fe.Field())
	default:
		return fmt.Sprintf("field %q: failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
}

func waveDates(sl validator.StructLevel) {
	var start, end string
	switch w := sl.Current().Interface().(type) {
	case Wave:
		start, end = w.StartDate, w.EndDate
	case WaveInput:
		start, end = w.StartDate, w.EndDate
	}
	// YYYY-MM-DD compares chronologically as a string.
	if start != "" && end != "" && end < start {
		sl.ReportError(end, "end_date", "EndDate", "daterange", "")
	}
}

func workOrderTimes(sl validator.StructLevel) {
	var ok bool
	switch w := sl.Current().Interface().(type) {
	case WorkOrder:
		ok = timesOrdered(w.StartTime, w.EndTime)
	case WorkOrderInput:
		ok = timesOrdered(w.StartTime, w.EndTime)
	case WorkOrderStatusUpdate:
		ok = timesOrdered(w.StartTime, w.EndTime)
	}
	if !ok {
		sl.ReportError(nil, "end_time", "EndTime", "timerange", "")
	}
}

func timesOrdered(start, end *time.Time) bool {
	if start == nil || end == nil {
		return true
	}
	return !end.Before(*start)
}
