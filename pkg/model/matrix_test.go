package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobFromYaml(t *testing.T, yaml string) *Job {
	t.Helper()
	workflow, err := ReadWorkflow(strings.NewReader(yaml))
	require.NoError(t, err)
	job := workflow.GetJob("test")
	require.NotNil(t, job)
	return job
}

func TestGetMatrixes_CrossProductWithExclude(t *testing.T) {
	job := jobFromYaml(t, `
name: matrix
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        os: [X, Y, Z]
        ver: [1, 2]
        exclude:
          - os: Y
            ver: 2
    steps:
    - run: echo ok
`)

	matrixes, err := job.GetMatrixes()
	require.NoError(t, err)

	// cross product in declaration order, minus the excluded row
	assert.Equal(t, []map[string]interface{}{
		{"os": "X", "ver": 1},
		{"os": "X", "ver": 2},
		{"os": "Y", "ver": 1},
		{"os": "Z", "ver": 1},
		{"os": "Z", "ver": 2},
	}, matrixes)
}

func TestGetMatrixes_Deterministic(t *testing.T) {
	yaml := `
name: matrix
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        b: [1, 2]
        a: [x, y]
    steps:
    - run: echo ok
`
	first, err := jobFromYaml(t, yaml).GetMatrixes()
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := jobFromYaml(t, yaml).GetMatrixes()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// declaration order: b is the outer axis
	assert.Equal(t, []map[string]interface{}{
		{"b": 1, "a": "x"},
		{"b": 1, "a": "y"},
		{"b": 2, "a": "x"},
		{"b": 2, "a": "y"},
	}, first)
}

func TestGetMatrixes_IncludeMergesMatchingRow(t *testing.T) {
	job := jobFromYaml(t, `
name: matrix
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        os: [linux, mac]
        include:
          - os: linux
            experimental: true
    steps:
    - run: echo ok
`)

	matrixes, err := job.GetMatrixes()
	require.NoError(t, err)

	assert.Equal(t, []map[string]interface{}{
		{"os": "linux", "experimental": true},
		{"os": "mac"},
	}, matrixes)
}

func TestGetMatrixes_IncludeAppendsNewRow(t *testing.T) {
	job := jobFromYaml(t, `
name: matrix
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        os: [linux]
        include:
          - os: windows
    steps:
    - run: echo ok
`)

	matrixes, err := job.GetMatrixes()
	require.NoError(t, err)

	assert.Equal(t, []map[string]interface{}{
		{"os": "linux"},
		{"os": "windows"},
	}, matrixes)
}

func TestGetMatrixes_ExcludeUnknownKeyFails(t *testing.T) {
	job := jobFromYaml(t, `
name: matrix
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    strategy:
      matrix:
        os: [linux]
        exclude:
          - arch: arm64
    steps:
    - run: echo ok
`)

	_, err := job.GetMatrixes()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exclude key")
}

func TestGetMatrixes_NoStrategy(t *testing.T) {
	job := jobFromYaml(t, `
name: matrix
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - run: echo ok
`)

	matrixes, err := job.GetMatrixes()
	require.NoError(t, err)
	assert.Equal(t, []map[string]interface{}{{}}, matrixes)
}

func TestMatrixSuffix(t *testing.T) {
	assert.Equal(t, "", MatrixSuffix(nil))
	assert.Equal(t, "(os=linux, ver=2)", MatrixSuffix(map[string]interface{}{"ver": 2, "os": "linux"}))
}
