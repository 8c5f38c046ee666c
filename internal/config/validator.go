package config

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aleister1102/webmirror/internal/errorwrapper"
)

// ValidateConfig performs struct-tag validation on the GlobalConfig.
func ValidateConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return errorwrapper.NewError("config is nil")
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var fields []string
			for _, fieldErr := range validationErrors {
				fields = append(fields, fieldErr.Namespace()+" ("+fieldErr.Tag()+")")
			}
			return errorwrapper.NewError("config validation failed: %s", strings.Join(fields, ", "))
		}
		return errorwrapper.WrapError(err, "config validation failed")
	}

	return nil
}
