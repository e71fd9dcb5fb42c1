package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planFromYaml(t *testing.T, yaml string, jobIDs ...string) (*Plan, error) {
	t.Helper()
	workflow, err := ReadWorkflow(strings.NewReader(yaml))
	require.NoError(t, err)
	return workflow.NewPlan(jobIDs...)
}

func stageIDs(plan *Plan) [][]string {
	ids := make([][]string, 0, len(plan.Stages))
	for _, stage := range plan.Stages {
		ids = append(ids, stage.GetJobIDs())
	}
	return ids
}

func TestNewPlan_LinearChain(t *testing.T) {
	plan, err := planFromYaml(t, `
name: chain
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: echo a}]
  b:
    runs-on: ubuntu-latest
    needs: a
    steps: [{run: echo b}]
  c:
    runs-on: ubuntu-latest
    needs: b
    steps: [{run: echo c}]
`)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, stageIDs(plan))
}

func TestNewPlan_Diamond(t *testing.T) {
	plan, err := planFromYaml(t, `
name: diamond
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: echo a}]
  b:
    runs-on: ubuntu-latest
    needs: a
    steps: [{run: echo b}]
  c:
    runs-on: ubuntu-latest
    needs: a
    steps: [{run: echo c}]
  d:
    runs-on: ubuntu-latest
    needs: [b, c]
    steps: [{run: echo d}]
`)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, stageIDs(plan))
}

func TestNewPlan_Cycle(t *testing.T) {
	_, err := planFromYaml(t, `
name: cyclic
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    needs: c
    steps: [{run: echo a}]
  b:
    runs-on: ubuntu-latest
    needs: a
    steps: [{run: echo b}]
  c:
    runs-on: ubuntu-latest
    needs: b
    steps: [{run: echo c}]
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to build dependency graph")
}

func TestNewPlan_SingleJobPullsDependencies(t *testing.T) {
	plan, err := planFromYaml(t, `
name: partial
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: echo a}]
  b:
    runs-on: ubuntu-latest
    needs: a
    steps: [{run: echo b}]
  unrelated:
    runs-on: ubuntu-latest
    steps: [{run: echo nope}]
`, "b")
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a"}, {"b"}}, stageIDs(plan))
}

func TestNewPlan_UnknownJob(t *testing.T) {
	_, err := planFromYaml(t, `
name: partial
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: echo a}]
`, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'nope' not found")
}
