// Package config loads pipeline descriptions: which elements to create,
// how to link them and how to tune the scheduler that runs them.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/AnatoleLucet/cosched"
	"gopkg.in/yaml.v3"
)

// SchedulerConfig tunes the scheduler running the pipeline.
type SchedulerConfig struct {
	Name         string `yaml:"name"`
	Iterations   int    `yaml:"iterations,omitempty"`
	MaxRecursion int    `yaml:"max_recursion,omitempty"`
	MaxCothreads int    `yaml:"max_cothreads,omitempty"`
	LogLevel     string `yaml:"log_level,omitempty"`
}

// ElementConfig declares one element. Kind selects the behavior, params are
// passed to it untouched.
type ElementConfig struct {
	Name      string         `yaml:"name"`
	Kind      string         `yaml:"kind"`
	Decoupled bool           `yaml:"decoupled,omitempty"`
	Params    map[string]any `yaml:"params,omitempty"`
}

// LinkConfig connects two ports, written as "element.port".
type LinkConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Pipeline models a pipeline description file.
type Pipeline struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Elements  []ElementConfig `yaml:"elements"`
	Links     []LinkConfig    `yaml:"links"`
}

// Load reads and validates the pipeline description at path.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return p, nil
}

// Parse decodes and validates a pipeline description.
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	p.normalize()
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &p, nil
}

func (p *Pipeline) normalize() {
	p.Scheduler.Name = strings.TrimSpace(p.Scheduler.Name)
	p.Scheduler.LogLevel = strings.ToLower(strings.TrimSpace(p.Scheduler.LogLevel))

	for i := range p.Elements {
		p.Elements[i].Name = strings.TrimSpace(p.Elements[i].Name)
		p.Elements[i].Kind = strings.ToLower(strings.TrimSpace(p.Elements[i].Kind))
	}
	for i := range p.Links {
		p.Links[i].From = strings.TrimSpace(p.Links[i].From)
		p.Links[i].To = strings.TrimSpace(p.Links[i].To)
	}
}

func (p *Pipeline) validate() error {
	if p.Scheduler.MaxRecursion < 0 {
		return errors.New("scheduler.max_recursion must be >= 0")
	}
	if p.Scheduler.MaxCothreads < 0 {
		return errors.New("scheduler.max_cothreads must be >= 0")
	}
	if _, err := p.Scheduler.level(); err != nil {
		return fmt.Errorf("scheduler.log_level: %w", err)
	}

	names := make(map[string]struct{}, len(p.Elements))
	for i, e := range p.Elements {
		if e.Name == "" {
			return fmt.Errorf("elements[%d]: name is required", i)
		}
		if strings.Contains(e.Name, ".") {
			return fmt.Errorf("elements[%d]: name %q must not contain dots", i, e.Name)
		}
		if e.Kind == "" {
			return fmt.Errorf("elements[%d]: kind is required", i)
		}
		if _, ok := names[e.Name]; ok {
			return fmt.Errorf("elements[%d]: duplicate name %q", i, e.Name)
		}
		names[e.Name] = struct{}{}
	}

	for i, l := range p.Links {
		for _, endpoint := range []string{l.From, l.To} {
			elem, _, err := SplitEndpoint(endpoint)
			if err != nil {
				return fmt.Errorf("links[%d]: %w", i, err)
			}
			if _, ok := names[elem]; !ok {
				return fmt.Errorf("links[%d]: unknown element %q", i, elem)
			}
		}
	}

	return nil
}

// SplitEndpoint splits "element.port" into its two parts.
func SplitEndpoint(endpoint string) (string, string, error) {
	elem, port, ok := strings.Cut(endpoint, ".")
	if !ok || elem == "" || port == "" {
		return "", "", fmt.Errorf("endpoint %q must be written element.port", endpoint)
	}
	return elem, port, nil
}

func (sc SchedulerConfig) level() (slog.Level, error) {
	switch sc.LogLevel {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", sc.LogLevel)
	}
}

// Level returns the configured log level, info by default.
func (sc SchedulerConfig) Level() slog.Level {
	level, _ := sc.level()
	return level
}

// Options turns the scheduler section into scheduler options. Unset values
// keep the scheduler defaults.
func (sc SchedulerConfig) Options(handler slog.Handler) []cosched.Option {
	opts := []cosched.Option{}

	if sc.Name != "" {
		opts = append(opts, cosched.WithName(sc.Name))
	}
	if handler != nil {
		opts = append(opts, cosched.WithLog(handler))
	}
	if sc.Iterations != 0 {
		opts = append(opts, cosched.WithIterations(sc.Iterations))
	}
	if sc.MaxRecursion != 0 {
		opts = append(opts, cosched.WithMaxRecursion(sc.MaxRecursion))
	}
	if sc.MaxCothreads != 0 {
		opts = append(opts, cosched.WithMaxCothreads(sc.MaxCothreads))
	}

	return opts
}

// Int reads an integer parameter, falling back to def.
func (ec ElementConfig) Int(key string, def int) (int, error) {
	v, ok := ec.Params[key]
	if !ok {
		return def, nil
	}

	n, ok := v.(int)
	if !ok {
		return 0, fmt.Errorf("config: %s.params.%s must be an integer", ec.Name, key)
	}
	return n, nil
}
