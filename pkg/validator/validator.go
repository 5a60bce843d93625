package validator

import (
	"fmt"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var clockRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Clock reports whether s is a wall-clock time in HH:MM form
func Clock(s string) bool {
	return clockRe.MatchString(s)
}

// RegisterCustom installs the domain validations on gin's binding engine.
// Call once at startup, before the router handles requests.
func RegisterCustom() error {
	engine, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}
	return engine.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return Clock(fl.Field().String())
	})
}
