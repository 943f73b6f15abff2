package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jbrant/mcc-go/pkg/errors"
)

// ValidationError represents a single configuration validation failure.
type ValidationError struct {
	Field   string
	Tag     string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "min", "gte", "gt":
		return fmt.Sprintf("%s is below its minimum", e.Field)
	case "max", "lte", "lt":
		return fmt.Sprintf("%s is above its maximum", e.Field)
	case "oneof":
		return fmt.Sprintf("%s has an unsupported value", e.Field)
	default:
		return fmt.Sprintf("%s failed validation", e.Field)
	}
}

// ValidationErrors aggregates all failures from one Validate call.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

var validate = validator.New()

// Validate checks struct tags plus the cross-field rules the tags cannot
// express. A failure is a ConfigurationInvalid error raised before any
// worker starts.
func (c *Config) Validate() error {
	var verrs ValidationErrors

	if err := validate.Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, e := range errs {
				verrs = append(verrs, ValidationError{
					Field: e.Namespace(),
					Tag:   e.Tag(),
					Value: e.Value(),
				})
			}
		} else {
			verrs = append(verrs, ValidationError{Message: err.Error()})
		}
	}

	verrs = append(verrs, c.customRules()...)

	if len(verrs) > 0 {
		return errors.Wrap(verrs, errors.ConfigurationInvalid, "invalid experiment config")
	}
	return nil
}

// customRules covers relationships between fields.
func (c *Config) customRules() ValidationErrors {
	var out ValidationErrors

	if c.Engine.BatchSize > c.Engine.PopulationSize {
		out = append(out, ValidationError{
			Field:   "Engine.BatchSize",
			Message: "engine.batch_size cannot exceed engine.population_size",
		})
	}
	if c.Engine.SpeciesCount > c.Engine.PopulationSize {
		out = append(out, ValidationError{
			Field:   "Engine.SpeciesCount",
			Message: "engine.species_count cannot exceed engine.population_size",
		})
	}
	if c.Speciation.MinSpecies > c.Engine.SpeciesCount {
		out = append(out, ValidationError{
			Field:   "Speciation.MinSpecies",
			Message: "speciation.min_species cannot exceed engine.species_count",
		})
	}
	if c.MCC.Bootstrap.ViableCount > c.MCC.Bootstrap.PopulationSize {
		out = append(out, ValidationError{
			Field:   "MCC.Bootstrap.ViableCount",
			Message: "mcc.bootstrap.viable_count cannot exceed mcc.bootstrap.population_size",
		})
	}
	if c.Archive.MinThreshold > c.Archive.InitialThreshold {
		out = append(out, ValidationError{
			Field:   "Archive.MinThreshold",
			Message: "novelty_archive.min_threshold cannot exceed its initial_threshold",
		})
	}
	return out
}
