package model

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ActionRunsUsing is the type of runner for the action
type ActionRunsUsing string

func (a *ActionRunsUsing) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var using string
	if err := unmarshal(&using); err != nil {
		return err
	}

	// Force input to lowercase for case insensitive comparison
	format := ActionRunsUsing(strings.ToLower(using))
	switch format {
	case ActionRunsUsingNode20, ActionRunsUsingNode16, ActionRunsUsingNode12, ActionRunsUsingDocker, ActionRunsUsingComposite:
		*a = format
	default:
		return fmt.Errorf("the runs.using key in action.yml must be one of: %v, got %s", []string{
			string(ActionRunsUsingComposite),
			string(ActionRunsUsingDocker),
			string(ActionRunsUsingNode12),
			string(ActionRunsUsingNode16),
			string(ActionRunsUsingNode20),
		}, format)
	}
	return nil
}

const (
	// ActionRunsUsingNode12 for running with node12
	ActionRunsUsingNode12 = "node12"

	// ActionRunsUsingNode16 for running with node16
	ActionRunsUsingNode16 = "node16"

	// ActionRunsUsingNode20 for running with node20
	ActionRunsUsingNode20 = "node20"

	// ActionRunsUsingDocker for running with docker
	ActionRunsUsingDocker = "docker"

	// ActionRunsUsingComposite for running composite steps
	ActionRunsUsingComposite = "composite"
)

// ActionRuns are a field in Action
type ActionRuns struct {
	Using      ActionRunsUsing   `yaml:"using"`
	Env        map[string]string `yaml:"env"`
	Main       string            `yaml:"main"`
	Pre        string            `yaml:"pre"`
	PreIf      string            `yaml:"pre-if"`
	Post       string            `yaml:"post"`
	PostIf     string            `yaml:"post-if"`
	Image      string            `yaml:"image"`
	Entrypoint string            `yaml:"entrypoint"`
	Args       []string          `yaml:"args"`
	Steps      []*Step           `yaml:"steps"`
}

// Action describes a metadata file for GitHub actions. The metadata
// filename must be either action.yml or action.yaml.
type Action struct {
	Name        string            `yaml:"name"`
	Author      string            `yaml:"author"`
	Description string            `yaml:"description"`
	Inputs      map[string]Input  `yaml:"inputs"`
	Outputs     map[string]Output `yaml:"outputs"`
	Runs        ActionRuns        `yaml:"runs"`
}

// Input parameters allow you to specify data that the action expects to
// use during runtime
type Input struct {
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
}

// Output parameters allow you to declare data that an action sets
type Output struct {
	Description string `yaml:"description"`
	Value       string `yaml:"value"`
}

// ReadAction reads an action from a reader
func ReadAction(in io.Reader) (*Action, error) {
	a := new(Action)
	if err := yaml.NewDecoder(in).Decode(a); err != nil {
		return nil, err
	}
	return a, nil
}
