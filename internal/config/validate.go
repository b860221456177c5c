package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/echomate/echomate/internal/core"
)

// validate is the shared validator instance for struct-tag rules.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// Report YAML key names rather than Go field names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// requiredEngines are the namespaces a turn cannot run without. Exactly one
// module must be configured in each. The audio namespace is optional and
// falls back to the in-process normalizer.
var requiredEngines = []string{"stt", "provider", "tts"}

// Validate checks a loaded Config. Every problem found is reported, joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateEngines(cfg)...)
	errs = append(errs, validateFields(cfg)...)
	errs = append(errs, validateSchedules(cfg)...)

	return errors.Join(errs...)
}

func validateEngines(cfg *Config) []error {
	count := make(map[string][]string)
	for id := range cfg.Modules {
		ns := core.ModuleID(id).Namespace()
		count[ns] = append(count[ns], id)
	}

	var errs []error
	for _, ns := range requiredEngines {
		switch n := len(count[ns]); {
		case n == 0:
			errs = append(errs, fmt.Errorf("config: no %s module configured", ns))
		case n > 1:
			errs = append(errs, fmt.Errorf("config: only one %s module may be configured, got %d", ns, n))
		}
	}
	if n := len(count["audio"]); n > 1 {
		errs = append(errs, fmt.Errorf("config: only one audio module may be configured, got %d", n))
	}
	return errs
}

func validateFields(cfg *Config) []error {
	sections := []struct {
		name string
		v    any
	}{
		{"pipeline", &cfg.Pipeline},
		{"intent", &cfg.Intent},
		{"session", &cfg.Session},
		{"artifacts", &cfg.Artifacts},
		{"telemetry", &cfg.Telemetry},
	}

	var errs []error
	for _, s := range sections {
		err := validate.Struct(s.v)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			errs = append(errs, fmt.Errorf("config: %s: %w", s.name, err))
			continue
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("config: %s: %s fails %q (value %v)",
				s.name, fieldPath(fe), ruleText(fe), fe.Value()))
		}
	}
	return errs
}

// fieldPath turns "PipelineConfig.timeouts.complete" into "timeouts.complete".
func fieldPath(fe validator.FieldError) string {
	_, rest, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return rest
}

func ruleText(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func validateSchedules(cfg *Config) []error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	var errs []error
	for name, expr := range map[string]string{
		"session.prune_schedule":   cfg.Session.PruneSchedule,
		"artifacts.sweep_schedule": cfg.Artifacts.SweepSchedule,
	} {
		if expr == "" {
			continue
		}
		if _, err := parser.Parse(expr); err != nil {
			errs = append(errs, fmt.Errorf("config: %s: invalid cron expression %q: %w", name, expr, err))
		}
	}
	return errs
}
