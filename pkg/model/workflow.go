package model

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Workflow is the structure of the files in .github/workflows
type Workflow struct {
	File     string            `yaml:"-"`
	Name     string            `yaml:"name"`
	RawOn    yaml.Node         `yaml:"on"`
	Env      map[string]string `yaml:"env"`
	Jobs     map[string]*Job   `yaml:"jobs"`
	Defaults Defaults          `yaml:"defaults"`
}

// On events for the workflow
func (w *Workflow) On() []string {
	switch w.RawOn.Kind {
	case yaml.ScalarNode:
		var val string
		if err := w.RawOn.Decode(&val); err != nil {
			log.Fatal(err)
		}
		return []string{val}
	case yaml.SequenceNode:
		var val []string
		if err := w.RawOn.Decode(&val); err != nil {
			log.Fatal(err)
		}
		return val
	case yaml.MappingNode:
		var val map[string]interface{}
		if err := w.RawOn.Decode(&val); err != nil {
			log.Fatal(err)
		}
		var keys []string
		for k := range val {
			keys = append(keys, k)
		}
		return keys
	}
	return nil
}

// WorkflowDispatchInput is one declared input of a workflow_dispatch trigger
type WorkflowDispatchInput struct {
	Description string   `yaml:"description"`
	Required    bool     `yaml:"required"`
	Default     string   `yaml:"default"`
	Type        string   `yaml:"type"`
	Options     []string `yaml:"options"`
}

// WorkflowDispatchInputs reads `on.workflow_dispatch.inputs`. The rest
// of the trigger tree is opaque to the runner.
func (w *Workflow) WorkflowDispatchInputs() map[string]WorkflowDispatchInput {
	if w.RawOn.Kind != yaml.MappingNode {
		return nil
	}
	var val map[string]struct {
		Inputs map[string]WorkflowDispatchInput `yaml:"inputs"`
	}
	if err := w.RawOn.Decode(&val); err != nil {
		return nil
	}
	if dispatch, ok := val["workflow_dispatch"]; ok {
		return dispatch.Inputs
	}
	return nil
}

// Job is the structure of one job in a workflow
type Job struct {
	Name         string                    `yaml:"name"`
	RawNeeds     yaml.Node                 `yaml:"needs"`
	RawRunsOn    yaml.Node                 `yaml:"runs-on"`
	Env          yaml.Node                 `yaml:"env"`
	If           yaml.Node                 `yaml:"if"`
	Uses         string                    `yaml:"uses"`
	With         map[string]string         `yaml:"with"`
	Steps        []*Step                   `yaml:"steps"`
	Services     map[string]*ContainerSpec `yaml:"services"`
	Strategy     *Strategy                 `yaml:"strategy"`
	RawContainer yaml.Node                 `yaml:"container"`
	Defaults     Defaults                  `yaml:"defaults"`
	Outputs      map[string]string         `yaml:"outputs"`

	// Result is set by the runner: success, failure, skipped or cancelled
	Result string `yaml:"-"`
}

// JobType describes the kind of job
type JobType int

const (
	// JobTypeDefault is a job with a steps list
	JobTypeDefault JobType = iota

	// JobTypeReusableWorkflow is a job calling another workflow via `uses`
	JobTypeReusableWorkflow

	// JobTypeInvalid is a job with both or neither of steps and uses
	JobTypeInvalid
)

// Type returns the type of the job
func (j *Job) Type() JobType {
	if j.Uses != "" {
		if len(j.Steps) > 0 {
			return JobTypeInvalid
		}
		return JobTypeReusableWorkflow
	}
	if len(j.Steps) == 0 {
		return JobTypeInvalid
	}
	return JobTypeDefault
}

// Strategy for the job
type Strategy struct {
	FailFast          bool
	MaxParallel       int
	FailFastString    string    `yaml:"fail-fast"`
	MaxParallelString string    `yaml:"max-parallel"`
	RawMatrix         yaml.Node `yaml:"matrix"`
}

// Defaults settings that will apply to all steps in the job or workflow
type Defaults struct {
	Run RunDefaults `yaml:"run"`
}

// RunDefaults for all run steps in the job or workflow
type RunDefaults struct {
	Shell            string `yaml:"shell"`
	WorkingDirectory string `yaml:"working-directory"`
}

// GetMaxParallel sets default and returns value for `max-parallel`
func (s Strategy) GetMaxParallel() int {
	maxParallel := 4
	if s.MaxParallelString != "" {
		var err error
		if maxParallel, err = strconv.Atoi(s.MaxParallelString); err != nil {
			log.Errorf("Failed to parse 'max-parallel' option: %v", err)
		}
	}
	return maxParallel
}

// GetFailFast sets default and returns value for `fail-fast`
func (s Strategy) GetFailFast() bool {
	// fail-fast defaults to true per the workflow syntax
	failFast := true
	if s.FailFastString != "" {
		var err error
		if failFast, err = strconv.ParseBool(s.FailFastString); err != nil {
			log.Errorf("Failed to parse 'fail-fast' option: %v", err)
		}
	}
	return failFast
}

// Container details for the job
func (j *Job) Container() *ContainerSpec {
	var val *ContainerSpec
	switch j.RawContainer.Kind {
	case yaml.ScalarNode:
		val = new(ContainerSpec)
		if err := j.RawContainer.Decode(&val.Image); err != nil {
			log.Fatal(err)
		}
	case yaml.MappingNode:
		val = new(ContainerSpec)
		if err := j.RawContainer.Decode(val); err != nil {
			log.Fatal(err)
		}
	}
	return val
}

// Needs list for Job
func (j *Job) Needs() []string {
	switch j.RawNeeds.Kind {
	case yaml.ScalarNode:
		var val string
		if err := j.RawNeeds.Decode(&val); err != nil {
			log.Fatal(err)
		}
		return []string{val}
	case yaml.SequenceNode:
		var val []string
		if err := j.RawNeeds.Decode(&val); err != nil {
			log.Fatal(err)
		}
		return val
	}
	return nil
}

// RunsOn list for Job
func (j *Job) RunsOn() []string {
	switch j.RawRunsOn.Kind {
	case yaml.ScalarNode:
		var val string
		if err := j.RawRunsOn.Decode(&val); err != nil {
			log.Fatal(err)
		}
		return []string{val}
	case yaml.SequenceNode:
		var val []string
		if err := j.RawRunsOn.Decode(&val); err != nil {
			log.Fatal(err)
		}
		return val
	}
	return nil
}

func environment(yml yaml.Node) map[string]string {
	env := make(map[string]string)
	if yml.Kind == yaml.MappingNode {
		if err := yml.Decode(&env); err != nil {
			log.Fatal(err)
		}
	}
	return env
}

// Environment returns string-based key=value map for a job
func (j *Job) Environment() map[string]string {
	return environment(j.Env)
}

// ContainerSpec is the specification of the container to use for the job
type ContainerSpec struct {
	Image      string            `yaml:"image"`
	Env        map[string]string `yaml:"env"`
	Ports      []string          `yaml:"ports"`
	Volumes    []string          `yaml:"volumes"`
	Options    string            `yaml:"options"`
	Entrypoint string
	Args       string
	Name       string
}

// Step is the structure of one step in a job
type Step struct {
	ID                 string            `yaml:"id"`
	If                 yaml.Node         `yaml:"if"`
	Name               string            `yaml:"name"`
	Uses               string            `yaml:"uses"`
	Run                string            `yaml:"run"`
	WorkingDirectory   string            `yaml:"working-directory"`
	Shell              string            `yaml:"shell"`
	Env                yaml.Node         `yaml:"env"`
	With               map[string]string `yaml:"with"`
	RawContinueOnError string            `yaml:"continue-on-error"`
}

// String gets the name of step
func (s *Step) String() string {
	if s.Name != "" {
		return s.Name
	} else if s.Uses != "" {
		return s.Uses
	} else if s.Run != "" {
		return s.Run
	}
	return s.ID
}

// Environment returns string-based key=value map for a step
func (s *Step) Environment() map[string]string {
	return environment(s.Env)
}

// GetEnv gets the env for a step, with `with:` inputs exposed as
// INPUT_ variables the way the runner contract mangles them.
func (s *Step) GetEnv() map[string]string {
	env := s.Environment()

	for k, v := range s.With {
		env[inputEnvKey(k)] = v
	}
	return env
}

func inputEnvKey(name string) string {
	key := regexp.MustCompile("[^A-Z0-9_]").ReplaceAllString(strings.ToUpper(name), "_")
	return fmt.Sprintf("INPUT_%s", key)
}

// ShellCommand returns the command template for the shell, `{0}`
// standing for the script path.
func (s *Step) ShellCommand() string {
	shellCommand := ""

	switch s.Shell {
	case "", "bash":
		shellCommand = "bash --noprofile --norc -e -o pipefail {0}"
	case "pwsh":
		shellCommand = "pwsh -command . '{0}'"
	case "python":
		shellCommand = "python {0}"
	case "sh":
		shellCommand = "sh -e {0}"
	case "cmd":
		shellCommand = "%ComSpec% /D /E:ON /V:OFF /S /C \"CALL \"{0}\"\""
	case "powershell":
		shellCommand = "powershell -command . '{0}'"
	default:
		shellCommand = s.Shell
	}
	return shellCommand
}

// StepType describes what type of step we are about to run
type StepType int

const (
	// StepTypeRun is all steps that have a `run` attribute
	StepTypeRun StepType = iota

	// StepTypeUsesDockerURL is all steps that have a `uses` that is of the form `docker://...`
	StepTypeUsesDockerURL

	// StepTypeUsesActionLocal is all steps that have a `uses` that is a local action in a subdirectory
	StepTypeUsesActionLocal

	// StepTypeUsesActionRemote is all steps that have a `uses` that is a reference to a github repo
	StepTypeUsesActionRemote

	// StepTypeInvalid is for steps that have invalid step action
	StepTypeInvalid
)

func (s StepType) String() string {
	switch s {
	case StepTypeRun:
		return "run"
	case StepTypeUsesDockerURL:
		return "docker"
	case StepTypeUsesActionLocal:
		return "local-action"
	case StepTypeUsesActionRemote:
		return "remote-action"
	}
	return "invalid"
}

// Type returns the type of the step
func (s *Step) Type() StepType {
	if s.Run != "" {
		if s.Uses != "" {
			return StepTypeInvalid
		}
		return StepTypeRun
	} else if s.Uses == "" {
		return StepTypeInvalid
	} else if strings.HasPrefix(s.Uses, "docker://") {
		return StepTypeUsesDockerURL
	} else if strings.HasPrefix(s.Uses, "./") {
		return StepTypeUsesActionLocal
	}
	return StepTypeUsesActionRemote
}

// ReadWorkflow returns a workflow for a given reader
func ReadWorkflow(in io.Reader) (*Workflow, error) {
	w := new(Workflow)
	err := yaml.NewDecoder(in).Decode(w)
	return w, err
}

// GetJob will get a job by name in the workflow
func (w *Workflow) GetJob(jobID string) *Job {
	for id, j := range w.Jobs {
		if jobID == id {
			if j.Name == "" {
				j.Name = id
			}
			return j
		}
	}
	return nil
}

// GetJobIDs will get all the job names in the workflow
func (w *Workflow) GetJobIDs() []string {
	ids := make([]string, 0)
	for id := range w.Jobs {
		ids = append(ids, id)
	}
	return ids
}
