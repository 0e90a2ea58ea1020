package model

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// MaxLabelLength bounds node labels.
const MaxLabelLength = 200

// ValidateNode checks a node's label, type and typed configuration.
// It returns a *ValidationError if any rules fail, or nil if the node is valid.
func ValidateNode(label string, t NodeType, cfg NodeConfig) error {
	var ve ValidationError
	if fe, ok := checkLabel(label); !ok {
		ve.Errors = append(ve.Errors, fe)
	}

	if !t.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{Field: "type", Message: fmt.Sprintf("invalid value %q", t)})
	} else if cfg == nil || cfg.NodeType() != t {
		ve.Errors = append(ve.Errors, FieldError{Field: "config", Message: fmt.Sprintf("does not match node type %q", t)})
	} else if err := cfg.Validate(); err != nil {
		var cve *ValidationError
		if errors.As(err, &cve) {
			ve.Errors = append(ve.Errors, cve.Errors...)
		} else {
			ve.Errors = append(ve.Errors, FieldError{Field: "config", Message: err.Error()})
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateLabel checks only a node label: required and bounded.
func ValidateLabel(label string) error {
	if fe, ok := checkLabel(label); !ok {
		return &ValidationError{Errors: []FieldError{fe}}
	}
	return nil
}

func checkLabel(label string) (FieldError, bool) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return FieldError{Field: "label", Message: "is required"}, false
	}
	if len([]rune(trimmed)) > MaxLabelLength {
		return FieldError{
			Field:   "label",
			Message: fmt.Sprintf("must be %d characters or fewer", MaxLabelLength),
		}, false
	}
	return FieldError{}, true
}
