// Package validate checks request payloads with go-playground/validator and
// renders failures as human-readable messages.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"gatherly/internal/domain"
)

// Errors is a list of failure messages. It renders as one space-joined line.
type Errors []string

func (e Errors) Error() string { return strings.Join(e, " ") }

// Err returns nil for an empty list so callers can return it as an error.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Messages overrides the default text per "<json field>.<tag>" key.
type Messages map[string]string

type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// New builds a validator whose "future" rule compares against now.
func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: validator.New(validator.WithRequiredStructEnabled()), now: now}
	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			name = strings.SplitN(f.Tag.Get("query"), ",", 2)[0]
		}
		if name == "-" {
			return ""
		}
		return name
	})
	must(v.validate.RegisterValidation("date", isDate))
	must(v.validate.RegisterValidation("future", v.isFuture))
	must(v.validate.RegisterValidation("accepted", isAccepted))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func isDate(fl validator.FieldLevel) bool {
	_, err := domain.ParseTime(fl.Field().String())
	return err == nil
}

// isFuture holds for dates strictly after the validator clock.
func (v *Validator) isFuture(fl validator.FieldLevel) bool {
	t, err := domain.ParseTime(fl.Field().String())
	if err != nil {
		return false
	}
	return t.After(v.now())
}

func isAccepted(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Bool:
		return f.Bool()
	case reflect.String:
		switch strings.ToLower(f.String()) {
		case "yes", "on", "1", "true":
			return true
		}
	}
	return false
}

// Check validates s and returns every failure in field order. A nil result
// means s is valid.
func (v *Validator) Check(s any, msgs Messages) Errors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Errors{err.Error()}
	}
	out := make(Errors, 0, len(fieldErrs))
	seen := map[string]bool{}
	for _, fe := range fieldErrs {
		msg := message(fe, msgs)
		if seen[msg] {
			continue
		}
		seen[msg] = true
		out = append(out, msg)
	}
	return out
}

func message(fe validator.FieldError, msgs Messages) string {
	if m, ok := msgs[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", field, fe.Param())
	case "min":
		return fmt.Sprintf("The %s field must be at least %s characters.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", field)
	case "date":
		return fmt.Sprintf("The %s field must be a valid date.", field)
	case "future":
		return fmt.Sprintf("The %s field must be a date after today.", field)
	case "accepted":
		return fmt.Sprintf("The %s field must be accepted.", field)
	case "eqfield":
		return fmt.Sprintf("The %s field confirmation does not match.", field)
	case "url":
		return fmt.Sprintf("The %s field must be a valid URL.", field)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}
