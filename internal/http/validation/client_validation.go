package validation

import (
	"context"
	"errors"
	"nuvelon-admin/internal/model"
	"nuvelon-admin/internal/model/sqlquery"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var phonePattern = regexp.MustCompile(`^[+]?[1-9]\d{0,15}$`)

// New returns a validator that reports fields by their JSON names.
func New() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		fullJson := field.Tag.Get("json")
		if fullJson == "-" {
			return ""
		}
		jsonName := strings.SplitN(fullJson, ",", 2)[0]
		if jsonName != "" {
			return jsonName
		}
		return field.Name
	})
	return validate
}

func RegisterClientValidation(validate *validator.Validate, storage model.ClientStorage) error {
	err := validate.RegisterValidationCtx("planExists", func(ctx context.Context, fl validator.FieldLevel) bool {
		timeoutCtx, cancel := context.WithTimeout(ctx, sqlquery.DatabaseOperationTimeout)
		defer cancel()
		_, err := storage.GetPlan(timeoutCtx, model.PlanId(fl.Field().String()))
		return err == nil || !errors.Is(err, model.ErrorNotFound)
	})
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("clientStatus", func(fl validator.FieldLevel) bool {
		return model.ClientStatus(fl.Field().String()).Valid()
	})
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("crontabString", func(fl validator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
	if err != nil {
		return err
	}
	return nil
}
