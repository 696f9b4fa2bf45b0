package service

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// checkStruct runs the validator and turns the first failure into a
// validation *Error with a readable message.
func checkStruct(v *validator.Validate, input interface{}) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return validationError("invalid input")
	}

	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return validationError("%s is required", field)
	case "min":
		return validationError("%s must be at least %s characters", field, fe.Param())
	case "max":
		return validationError("%s must be at most %s characters", field, fe.Param())
	case "email":
		return validationError("%s must be a valid email address", field)
	case "oneof":
		return validationError("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return validationError("%s is invalid", field)
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// SplitTags splits a comma separated list, trimming entries and dropping
// empty ones.
func SplitTags(raw string) []string {
	tags := []string{}
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func cleanTags(in []string) []string {
	tags := []string{}
	for _, tag := range in {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
