package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bahdotsh/wrkflw/pkg/model"
)

func TestNewRemoteAction(t *testing.T) {
	tables := []struct {
		in   string
		want *remoteAction
	}{
		{"actions/checkout@v4", &remoteAction{URL: "github.com", Org: "actions", Repo: "checkout", Path: "", Ref: "v4"}},
		{"actions/cache/restore@v3", &remoteAction{URL: "github.com", Org: "actions", Repo: "cache", Path: "restore", Ref: "v3"}},
		{"octo/mono/deep/sub/path@main", &remoteAction{URL: "github.com", Org: "octo", Repo: "mono", Path: "deep/sub/path", Ref: "main"}},
		{"no-ref/missing", nil},
		{"@v1", nil},
		{"justone@v1", nil},
	}

	for _, table := range tables {
		table := table
		t.Run(table.in, func(t *testing.T) {
			assert.Equal(t, table.want, newRemoteAction(table.in))
		})
	}
}

func TestRemoteActionIsCheckout(t *testing.T) {
	assert.True(t, newRemoteAction("actions/checkout@v4").IsCheckout())
	assert.False(t, newRemoteAction("actions/cache@v3").IsCheckout())
	assert.False(t, newRemoteAction("someone/checkout@v4").IsCheckout())
}

func TestRemoteActionCloneURL(t *testing.T) {
	ra := newRemoteAction("actions/checkout@v4")
	assert.Equal(t, "https://github.com/actions/checkout", ra.CloneURL())
}

func TestReadActionManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := `
name: test-action
inputs:
  who:
    description: who to greet
    required: true
  color:
    default: green
outputs:
  greeting:
    description: the greeting
runs:
  using: node20
  main: index.js
  post: cleanup.js
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "action.yml"), []byte(manifest), 0o644))

	action, err := readActionManifest("./test", dir)
	require.NoError(t, err)
	assert.Equal(t, "test-action", action.Name)
	assert.Equal(t, model.ActionRunsUsing("node20"), action.Runs.Using)
	assert.Equal(t, "index.js", action.Runs.Main)
	assert.Equal(t, "cleanup.js", action.Runs.Post)
	assert.True(t, action.Inputs["who"].Required)
	assert.Equal(t, "green", action.Inputs["color"].Default)
	assert.Contains(t, action.Outputs, "greeting")
}

func TestReadActionManifestYamlExtension(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "action.yaml"), []byte("name: alt\nruns:\n  using: composite\n  steps: []\n"), 0o644))

	action, err := readActionManifest("./alt", dir)
	require.NoError(t, err)
	assert.Equal(t, "alt", action.Name)
}

func TestReadActionManifestMissing(t *testing.T) {
	_, err := readActionManifest("./nope", t.TempDir())
	require.Error(t, err)
	var resErr *ActionResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, ErrKindNotFound, resErr.Kind)
}

func TestReadActionManifestInvalidUsing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "action.yml"), []byte("name: bad\nruns:\n  using: rust\n"), 0o644))

	_, err := readActionManifest("./bad", dir)
	require.Error(t, err)
	var resErr *ActionResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, ErrKindUnreadableActionManifest, resErr.Kind)
}

func TestActionKindSupported(t *testing.T) {
	hostRC := &RunContext{Config: &Config{HostMode: true}}
	containerRC := &RunContext{Config: &Config{}}

	err := actionKindSupported(hostRC, "./docker-action", model.ActionRunsUsingDocker)
	var resErr *ActionResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, ErrKindUnsupportedKindInRuntime, resErr.Kind)

	assert.NoError(t, actionKindSupported(hostRC, "./js-action", model.ActionRunsUsingNode20))
	assert.NoError(t, actionKindSupported(containerRC, "./docker-action", model.ActionRunsUsingDocker))
}

func TestNodeImageFor(t *testing.T) {
	assert.Equal(t, "node:16-bullseye-slim", nodeImageFor(model.ActionRunsUsingNode16))
	assert.Equal(t, "node:20-bookworm-slim", nodeImageFor(model.ActionRunsUsingNode20))
}

func TestAggregateResults(t *testing.T) {
	assert.Equal(t, resultSuccess, aggregateResults([]string{resultSuccess, resultSuccess}))
	assert.Equal(t, resultFailure, aggregateResults([]string{resultSuccess, resultFailure, resultCancelled}))
	assert.Equal(t, resultCancelled, aggregateResults([]string{resultSuccess, resultCancelled}))
	assert.Equal(t, resultSkipped, aggregateResults([]string{resultSkipped, resultSkipped}))
	assert.Equal(t, resultSuccess, aggregateResults([]string{resultSkipped, resultSuccess}))
}
