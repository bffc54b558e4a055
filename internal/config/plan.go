/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/friendsincode/carbonshift/internal/scheduler"
	"github.com/friendsincode/carbonshift/internal/workload"
)

// OracleModel is the model label used as the baseline for overhead columns.
const OracleModel = "Oracle"

// Plan describes a sweep: every location is combined with every scenario,
// model and scheduler.
type Plan struct {
	PowerKW      float64 `yaml:"power_kw"`
	SlotSec      float64 `yaml:"slot_sec"`
	UseLifecycle *bool   `yaml:"use_lifecycle"`
	QueryLimit   int     `yaml:"query_limit"`
	Concurrency  int     `yaml:"concurrency"`
	Window       struct {
		Start string `yaml:"start"`
		End   string `yaml:"end"`
	} `yaml:"window"`

	Locations  []LocationPlan  `yaml:"locations"`
	Scenarios  []ScenarioPlan  `yaml:"scenarios"`
	Models     []ModelPlan     `yaml:"models"`
	Schedulers []SchedulerPlan `yaml:"schedulers"`
}

// LocationPlan names one carbon-intensity source.
type LocationPlan struct {
	Name   string `yaml:"name"`
	Carbon string `yaml:"carbon"` // path or s3://bucket/key
}

// ScenarioPlan scales predicted runtimes.
type ScenarioPlan struct {
	Name        string  `yaml:"name"`
	AddVariance float64 `yaml:"add_variance"`
}

// ModelPlan names one runtime source. Oracle models use actual runtimes as predictions.
type ModelPlan struct {
	Label    string `yaml:"label"`
	Runtimes string `yaml:"runtimes"`
	Oracle   bool   `yaml:"oracle"`
}

// SchedulerPlan configures one policy of the sweep.
type SchedulerPlan struct {
	Kind               string  `yaml:"kind"`
	Name               string  `yaml:"name"`
	OrderPolicy        string  `yaml:"order_policy"`
	SearchHours        float64 `yaml:"search_hours"`
	CandidateStepSlots int     `yaml:"candidate_step_slots"`
	LocalSearch        bool    `yaml:"local_search"`
}

// LoadPlan reads a YAML plan file and fills unset values from cfg.
func LoadPlan(path string, cfg *Config) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return ParsePlan(data, cfg)
}

// ParsePlan decodes a YAML plan, applies defaults from cfg and validates it.
func ParsePlan(data []byte, cfg *Config) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	plan.applyDefaults(cfg)
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (p *Plan) applyDefaults(cfg *Config) {
	if cfg == nil {
		cfg = &Config{PowerKW: 0.150, SlotSec: 1, SearchHours: 12, AddVariance: 1, UseLifecycle: true, Concurrency: 1}
	}
	if p.PowerKW == 0 {
		p.PowerKW = cfg.PowerKW
	}
	if p.SlotSec == 0 {
		p.SlotSec = cfg.SlotSec
	}
	if p.UseLifecycle == nil {
		v := cfg.UseLifecycle
		p.UseLifecycle = &v
	}
	if p.QueryLimit == 0 {
		p.QueryLimit = cfg.QueryLimit
	}
	if p.Concurrency == 0 {
		p.Concurrency = cfg.Concurrency
	}
	if p.Window.Start == "" {
		p.Window.Start = cfg.WindowStart
	}
	if p.Window.End == "" {
		p.Window.End = cfg.WindowEnd
	}
	if len(p.Scenarios) == 0 {
		p.Scenarios = []ScenarioPlan{{Name: "Baseline", AddVariance: cfg.AddVariance}}
	}
	for i := range p.Scenarios {
		if p.Scenarios[i].AddVariance == 0 {
			p.Scenarios[i].AddVariance = 1
		}
	}
	for i := range p.Schedulers {
		s := &p.Schedulers[i]
		if s.OrderPolicy == "" {
			s.OrderPolicy = string(cfg.OrderPolicy)
		}
		if s.SearchHours == 0 {
			s.SearchHours = cfg.SearchHours
		}
		if s.CandidateStepSlots == 0 {
			s.CandidateStepSlots = cfg.CandidateStepSlots
		}
		if s.CandidateStepSlots == 0 {
			s.CandidateStepSlots = DefaultCandidateStep(p.SlotSec)
		}
	}
}

// Validate reports every problem with the plan at once.
func (p *Plan) Validate() error {
	var errs []error
	if !(p.PowerKW > 0) {
		errs = append(errs, fmt.Errorf("power_kw must be positive"))
	}
	if !(p.SlotSec > 0) {
		errs = append(errs, fmt.Errorf("slot_sec must be positive"))
	}
	if p.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 1"))
	}
	if _, _, err := ParseWindow(p.Window.Start, p.Window.End); err != nil {
		errs = append(errs, err)
	}
	if len(p.Locations) == 0 {
		errs = append(errs, errors.New("plan has no locations"))
	}
	if len(p.Models) == 0 {
		errs = append(errs, errors.New("plan has no models"))
	}
	if len(p.Schedulers) == 0 {
		errs = append(errs, errors.New("plan has no schedulers"))
	}

	seen := map[string]bool{}
	for i, loc := range p.Locations {
		if strings.TrimSpace(loc.Name) == "" || loc.Carbon == "" {
			errs = append(errs, fmt.Errorf("location %d: name and carbon are required", i))
		}
		if seen["loc/"+loc.Name] {
			errs = append(errs, fmt.Errorf("duplicate location %q", loc.Name))
		}
		seen["loc/"+loc.Name] = true
	}
	for i, sc := range p.Scenarios {
		if strings.TrimSpace(sc.Name) == "" {
			errs = append(errs, fmt.Errorf("scenario %d: name is required", i))
		}
		if !(sc.AddVariance > 0) {
			errs = append(errs, fmt.Errorf("scenario %q: add_variance must be positive", sc.Name))
		}
	}
	for i, m := range p.Models {
		if strings.TrimSpace(m.Label) == "" || m.Runtimes == "" {
			errs = append(errs, fmt.Errorf("model %d: label and runtimes are required", i))
		}
		if seen["model/"+m.Label] {
			errs = append(errs, fmt.Errorf("duplicate model %q", m.Label))
		}
		seen["model/"+m.Label] = true
	}
	for i, s := range p.Schedulers {
		if _, err := scheduler.ParseKind(s.Kind); err != nil {
			errs = append(errs, fmt.Errorf("scheduler %d: %w", i, err))
		}
		if _, err := workload.ParseOrderPolicy(s.OrderPolicy); err != nil {
			errs = append(errs, fmt.Errorf("scheduler %d: %w", i, err))
		}
		if s.SearchHours < 0 {
			errs = append(errs, fmt.Errorf("scheduler %d: search_hours must not be negative", i))
		}
		if s.CandidateStepSlots < 1 {
			errs = append(errs, fmt.Errorf("scheduler %d: candidate_step_slots must be >= 1", i))
		}
		// Results are grouped by display name, so unnamed policies of one kind collide.
		if policy, err := scheduler.New(s.SchedulerConfig(p.PowerKW)); err == nil {
			if seen["scheduler/"+policy.Name()] {
				errs = append(errs, fmt.Errorf("scheduler %d: duplicate scheduler name %q", i, policy.Name()))
			}
			seen["scheduler/"+policy.Name()] = true
		}
	}
	return errors.Join(errs...)
}

// Lifecycle reports whether life-cycle intensities are used.
func (p *Plan) Lifecycle() bool {
	return p.UseLifecycle == nil || *p.UseLifecycle
}

// SchedulerConfig converts a plan entry into a policy configuration.
func (s SchedulerPlan) SchedulerConfig(powerKW float64) scheduler.Config {
	return scheduler.Config{
		Kind:               scheduler.Kind(s.Kind),
		Name:               s.Name,
		Order:              workload.OrderPolicy(s.OrderPolicy),
		SearchHours:        s.SearchHours,
		CandidateStepSlots: s.CandidateStepSlots,
		PowerKW:            powerKW,
	}
}
