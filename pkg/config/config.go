package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/flowshot-io/zipdir/pkg/archiver"
)

const (
	defaultDanglingSymlinks = "fail"
	defaultLogLevel         = "warn"
)

// Config holds everything one archiving run needs.
type Config struct {
	Source           string `flag:"src" validate:"required"`
	Output           string `flag:"out" validate:"required"`
	DanglingSymlinks string `flag:"dangling-symlinks" validate:"oneof=fail skip"`
	LogLevel         string `flag:"log-level" validate:"oneof=trace debug info warn error"`
	PrettyLogs       bool   `flag:"pretty"`
}

func Default() Config {
	return Config{
		DanglingSymlinks: defaultDanglingSymlinks,
		LogLevel:         defaultLogLevel,
	}
}

// Validate checks the config and reports every invalid field at once.
func (c *Config) Validate() error {
	validate := validator.New()
	// Report fields under their command-line names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("flag"); name != "" {
			return name
		}
		return fld.Name
	})

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}

	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// SymlinkPolicy maps the dangling symlink setting onto the archiver's policy.
func (c *Config) SymlinkPolicy() archiver.SymlinkPolicy {
	if c.DanglingSymlinks == "skip" {
		return archiver.SkipDangling
	}
	return archiver.FailOnDangling
}

func describe(fe validator.FieldError) string {
	field := "--" + fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
