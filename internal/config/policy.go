package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/compliance/internal/core/compliance"
	"github.com/example/compliance/internal/core/escalation"
)

// PolicyFile is the YAML shape of the escalation policy:
//
//	default_threshold: 80
//	requirement_sets:
//	  RS-SAFETY: 90
//	escalation_days: {l1: 7, l2: 14, l3: 21}
//	deescalation_days: 7
//
// Omitted keys keep their defaults.
type PolicyFile struct {
	DefaultThreshold *float64          `yaml:"default_threshold" validate:"omitempty,gt=0,lte=100"`
	RequirementSets  map[string]float64 `yaml:"requirement_sets" validate:"dive,keys,required,endkeys,gt=0,lte=100"`
	EscalationDays   struct {
		L1 int `yaml:"l1" validate:"gte=0"`
		L2 int `yaml:"l2" validate:"gte=0"`
		L3 int `yaml:"l3" validate:"gte=0"`
	} `yaml:"escalation_days"`
	DeescalationDays int `yaml:"deescalation_days" validate:"gte=0"`
}

// Policies bundles the evaluator and state machine settings.
type Policies struct {
	Thresholds compliance.Policy
	Escalation escalation.Policy
}

// DefaultPolicies returns the built-in thresholds and day counts.
func DefaultPolicies() Policies {
	return Policies{
		Thresholds: compliance.DefaultPolicy(),
		Escalation: escalation.DefaultPolicy(),
	}
}

// LoadPolicy reads the policy file at path. An empty path yields the defaults.
func LoadPolicy(path string) (Policies, error) {
	if path == "" {
		return DefaultPolicies(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policies{}, &ConfigurationError{Field: EnvPolicyFile, Reason: err.Error()}
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a policy document. Unknown keys are rejected.
func ParsePolicy(data []byte) (Policies, error) {
	var file PolicyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Policies{}, &ConfigurationError{Field: "policy", Reason: fmt.Sprintf("failed to parse: %v", err)}
	}

	if err := firstViolation(validate.Struct(&file), policyFieldNames); err != nil {
		return Policies{}, err
	}

	p := DefaultPolicies()
	if file.DefaultThreshold != nil {
		p.Thresholds.DefaultThreshold = *file.DefaultThreshold
	}
	if len(file.RequirementSets) > 0 {
		p.Thresholds.Overrides = file.RequirementSets
	}
	if file.EscalationDays.L1 > 0 {
		p.Escalation.L1Days = file.EscalationDays.L1
	}
	if file.EscalationDays.L2 > 0 {
		p.Escalation.L2Days = file.EscalationDays.L2
	}
	if file.EscalationDays.L3 > 0 {
		p.Escalation.L3Days = file.EscalationDays.L3
	}
	if file.DeescalationDays > 0 {
		p.Escalation.DeescalationDays = file.DeescalationDays
	}

	if err := p.Escalation.Validate(); err != nil {
		return Policies{}, &ConfigurationError{Field: "escalation_days", Reason: err.Error()}
	}
	return p, nil
}

var policyFieldNames = map[string]string{
	"DefaultThreshold": "default_threshold",
	"RequirementSets":  "requirement_sets",
	"L1":               "escalation_days.l1",
	"L2":               "escalation_days.l2",
	"L3":               "escalation_days.l3",
	"DeescalationDays": "deescalation_days",
}
