package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWorkflow_StringEvent(t *testing.T) {
	yaml := `
name: local-action-docker-url
on: push

jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - uses: ./actions/docker-url
`

	workflow, err := ReadWorkflow(strings.NewReader(yaml))
	require.NoError(t, err, "read workflow should succeed")

	assert.Len(t, workflow.On(), 1)
	assert.Contains(t, workflow.On(), "push")
}

func TestReadWorkflow_ListEvent(t *testing.T) {
	yaml := `
name: local-action-docker-url
on: [push, pull_request]

jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - uses: ./actions/docker-url
`

	workflow, err := ReadWorkflow(strings.NewReader(yaml))
	require.NoError(t, err, "read workflow should succeed")

	assert.Len(t, workflow.On(), 2)
	assert.Contains(t, workflow.On(), "push")
	assert.Contains(t, workflow.On(), "pull_request")
}

func TestReadWorkflow_MapEvent(t *testing.T) {
	yaml := `
name: dispatchable
on:
  workflow_dispatch:
    inputs:
      deploy-env:
        description: target environment
        required: true
        default: staging

jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - run: echo
`

	workflow, err := ReadWorkflow(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Contains(t, workflow.On(), "workflow_dispatch")

	inputs := workflow.WorkflowDispatchInputs()
	require.Contains(t, inputs, "deploy-env")
	assert.Equal(t, "staging", inputs["deploy-env"].Default)
	assert.True(t, inputs["deploy-env"].Required)
}

func TestReadWorkflow_JobsAndSteps(t *testing.T) {
	yaml := `
name: multi
on: push
env:
  GLOBAL: one

jobs:
  build:
    name: Build it
    runs-on: ubuntu-latest
    env:
      LOCAL: two
    steps:
    - id: s1
      run: echo ok
    - id: s2
      uses: ./local
      with:
        some-input: value
  release:
    runs-on: ubuntu-latest
    needs: build
    steps:
    - uses: docker://alpine:3.19
`

	workflow, err := ReadWorkflow(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Len(t, workflow.Jobs, 2)

	build := workflow.GetJob("build")
	require.NotNil(t, build)
	assert.Equal(t, "Build it", build.Name)
	assert.Equal(t, []string{"ubuntu-latest"}, build.RunsOn())
	assert.Equal(t, map[string]string{"LOCAL": "two"}, build.Environment())
	assert.Equal(t, JobTypeDefault, build.Type())

	release := workflow.GetJob("release")
	require.NotNil(t, release)
	assert.Equal(t, []string{"build"}, release.Needs())
	// a job without an explicit name falls back to its id
	assert.Equal(t, "release", release.Name)

	assert.Equal(t, StepTypeRun, build.Steps[0].Type())
	assert.Equal(t, StepTypeUsesActionLocal, build.Steps[1].Type())
	assert.Equal(t, StepTypeUsesDockerURL, release.Steps[0].Type())

	env := build.Steps[1].GetEnv()
	assert.Equal(t, "value", env["INPUT_SOME_INPUT"])
}

func TestStepType(t *testing.T) {
	tables := []struct {
		step Step
		want StepType
	}{
		{Step{Run: "echo ok"}, StepTypeRun},
		{Step{Uses: "docker://alpine"}, StepTypeUsesDockerURL},
		{Step{Uses: "./local/action"}, StepTypeUsesActionLocal},
		{Step{Uses: "actions/checkout@v4"}, StepTypeUsesActionRemote},
		{Step{Run: "echo", Uses: "./x"}, StepTypeInvalid},
		{Step{}, StepTypeInvalid},
	}
	for _, table := range tables {
		assert.Equal(t, table.want, table.step.Type(), "%+v", table.step)
	}
}

func TestShellCommand(t *testing.T) {
	assert.Equal(t, "bash --noprofile --norc -e -o pipefail {0}", (&Step{}).ShellCommand())
	assert.Equal(t, "bash --noprofile --norc -e -o pipefail {0}", (&Step{Shell: "bash"}).ShellCommand())
	assert.Equal(t, "sh -e {0}", (&Step{Shell: "sh"}).ShellCommand())
	assert.Equal(t, "python {0}", (&Step{Shell: "python"}).ShellCommand())
	assert.Equal(t, "my custom shell {0}", (&Step{Shell: "my custom shell {0}"}).ShellCommand())
}

func TestJobType(t *testing.T) {
	assert.Equal(t, JobTypeReusableWorkflow, (&Job{Uses: "./.github/workflows/ci.yml"}).Type())
	assert.Equal(t, JobTypeInvalid, (&Job{}).Type())
	assert.Equal(t, JobTypeInvalid, (&Job{Uses: "./x", Steps: []*Step{{Run: "echo"}}}).Type())
}

func TestStrategyDefaults(t *testing.T) {
	s := Strategy{}
	assert.True(t, s.GetFailFast())
	assert.Equal(t, 4, s.GetMaxParallel())

	s = Strategy{FailFastString: "false", MaxParallelString: "2"}
	assert.False(t, s.GetFailFast())
	assert.Equal(t, 2, s.GetMaxParallel())
}
