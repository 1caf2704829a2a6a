package config

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// RateStage mirrors executor.RateStage's YAML shape for declarative plan
// files: a target count of starts per ratePer window, held for a duration.
type RateStage struct {
	Target   int           `yaml:"target"`
	Duration time.Duration `yaml:"duration"`
}

// Stage mirrors executor.Stage's YAML shape: a target user count the pool
// steps up to (it never shrinks) for a duration.
type Stage struct {
	Target   int           `yaml:"target"`
	Duration time.Duration `yaml:"duration"`
}

// PlanSpec is the declarative, file-based description of a single
// scenario.Plan, the YAML counterpart to building one with executor.New*
// constructors in code.
type PlanSpec struct {
	Label      string        `yaml:"label"`
	Discipline string        `yaml:"discipline"`
	StartAfter time.Duration `yaml:"startAfter"`

	Users       int `yaml:"users,omitempty"`
	Iterations  int `yaml:"iterations,omitempty"`
	PreAllocate int `yaml:"preAllocate,omitempty"`
	MaxUsers    int `yaml:"maxUsers,omitempty"`

	Duration time.Duration `yaml:"duration,omitempty"`
	Rate     int           `yaml:"rate,omitempty"`
	RatePer  time.Duration `yaml:"ratePer,omitempty"`

	Stages     []Stage     `yaml:"stages,omitempty"`
	RateStages []RateStage `yaml:"rateStages,omitempty"`
}

// ScenarioSpec is the declarative description of one scenario.Scenario:
// a label plus an ordered list of plans.
type ScenarioSpec struct {
	Label string     `yaml:"label"`
	Plans []PlanSpec `yaml:"plans"`
}

// File is the root of a YAML plan file: an ordered list of scenarios to
// run, matching spec.md §4.4's "sequence of scenarios" contract.
type File struct {
	Scenarios []ScenarioSpec `yaml:"scenarios"`
}

// LoadPlanFile reads and parses a YAML plan file from fs, the way the
// donor reads its own filesystem-backed inputs through an afero.Fs
// indirection rather than the os package directly, so tests can swap in
// afero.NewMemMapFs().
func LoadPlanFile(fs afero.Fs, path string) (File, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return File{}, fmt.Errorf("config: read plan file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config: parse plan file %s: %w", path, err)
	}
	return f, nil
}
