package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validation range constants.
const (
	minConnectTimeout = 1 * time.Second
	minDataTimeout    = 5 * time.Second
)

// validate checks the struct tags on Config. Field names are reported by
// their TOML key so errors point at the config file.
var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}

		return name
	})

	return v
}()

// Validate checks all configuration values and returns all errors found,
// so users can fix every issue in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateTags(cfg)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

// validateTags runs the struct-tag rules and converts each failure into a
// "section.key: ..." error.
func validateTags(cfg *Config) []error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{fmt.Errorf("validating config: %w", err)}
	}

	errs := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, fieldError(fe))
	}

	return errs
}

func fieldError(fe validator.FieldError) error {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")

	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s: must not be empty", key)
	case "oneof":
		return fmt.Errorf("%s: must be one of %s; got %q", key, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "min", "max":
		return fmt.Errorf("%s: must be %s %s, got %v", key, boundWord(fe.Tag()), fe.Param(), fe.Value())
	case "url":
		return fmt.Errorf("%s: must be an absolute URL, got %q", key, fe.Value())
	case "fqdn":
		return fmt.Errorf("%s: must be a domain name such as centerdevice.de, got %q", key, fe.Value())
	default:
		return fmt.Errorf("%s: failed %q check (value %v)", key, fe.Tag(), fe.Value())
	}
}

func boundWord(tag string) string {
	if tag == "min" {
		return ">="
	}

	return "<="
}

// validateAuth checks what struct tags cannot express.
func validateAuth(a *AuthConfig) []error {
	var errs []error

	for _, field := range []struct {
		key   string
		value string
	}{
		{"auth.auth_endpoint", a.AuthEndpoint},
		{"auth.api_endpoint", a.APIEndpoint},
	} {
		if field.value == "" {
			continue
		}

		u, err := url.Parse(field.value)
		if err == nil && u.Scheme != "https" && u.Scheme != "http" {
			errs = append(errs, fmt.Errorf("%s: scheme must be http or https, got %q", field.key, u.Scheme))
		}
	}

	if (a.AuthEndpoint == "") != (a.APIEndpoint == "") {
		errs = append(errs, errors.New("auth: auth_endpoint and api_endpoint must be set together"))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("network.connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("network.data_timeout", n.DataTimeout, minDataTimeout)...)

	return errs
}

// validateDuration checks that a duration string is valid and meets a minimum.
func validateDuration(field, value string, minimum time.Duration) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}
