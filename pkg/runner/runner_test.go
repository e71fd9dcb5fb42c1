package runner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bahdotsh/wrkflw/pkg/common"
	"github.com/bahdotsh/wrkflw/pkg/model"
)

// eventRecorder collects the event stream of a run for assertions
type eventRecorder struct {
	mu     sync.Mutex
	events []common.Event
}

func (r *eventRecorder) Send(event common.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) Close() {}

func (r *eventRecorder) logLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, 0)
	for _, ev := range r.events {
		if ev.LogLine != nil {
			lines = append(lines, ev.LogLine.Text)
		}
	}
	return lines
}

func (r *eventRecorder) jobStates(jobID string) []common.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := make([]common.RunState, 0)
	for _, ev := range r.events {
		if ev.JobStateChanged != nil && ev.JobStateChanged.JobID == jobID {
			states = append(states, ev.JobStateChanged.State)
		}
	}
	return states
}

func runWorkflowYaml(t *testing.T, ctx context.Context, yaml string) (*model.Workflow, *eventRecorder, *common.CleanupRegistry, error) {
	t.Helper()

	workflow, err := model.ReadWorkflow(strings.NewReader(yaml))
	require.NoError(t, err)
	workflow.File = "test.yml"
	if workflow.Name == "" {
		workflow.Name = "test"
	}

	problems := model.Validate(workflow, nil)
	require.False(t, model.HasErrors(problems), "workflow should validate: %v", problems)

	plan, err := workflow.NewPlan()
	require.NoError(t, err)

	registry := common.NewCleanupRegistry()
	config := &Config{
		Workdir:     t.TempDir(),
		BindWorkdir: true,
		EventName:   "workflow_dispatch",
		HostMode:    true,
		LogOutput:   true,
		Cleanup:     registry,
	}

	r, err := New(config)
	require.NoError(t, err)

	recorder := &eventRecorder{}
	runErr := r.NewPlanExecutor(plan)(common.WithEventSink(ctx, recorder))
	return workflow, recorder, registry, runErr
}

func TestRunLinearChain(t *testing.T) {
	workflow, recorder, registry, err := runWorkflowYaml(t, context.Background(), `
name: chain
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: echo ok-a}]
  b:
    runs-on: ubuntu-latest
    needs: a
    steps: [{run: echo ok-b}]
  c:
    runs-on: ubuntu-latest
    needs: b
    steps: [{run: echo ok-c}]
`)
	assert.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, "success", workflow.GetJob(id).Result, "job %s", id)
	}

	lines := recorder.logLines()
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "ok-a")
	assert.Contains(t, joined, "ok-b")
	assert.Contains(t, joined, "ok-c")
	// no overlap: a's output comes before b's, b's before c's
	assert.Less(t, strings.Index(joined, "ok-a"), strings.Index(joined, "ok-b"))
	assert.Less(t, strings.Index(joined, "ok-b"), strings.Index(joined, "ok-c"))

	assert.Equal(t, 0, registry.Len(), "cleanup registry must be empty after the run")
}

func TestRunDiamond(t *testing.T) {
	workflow, _, registry, err := runWorkflowYaml(t, context.Background(), `
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
	assert.NoError(t, err)
	for _, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, "success", workflow.GetJob(id).Result, "job %s", id)
	}
	assert.Equal(t, 0, registry.Len())
}

func TestRunOutputPassing(t *testing.T) {
	_, recorder, _, err := runWorkflowYaml(t, context.Background(), `
name: outputs
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - id: s1
      run: echo "result=42" >> "$GITHUB_OUTPUT"
    - run: echo "got ${{ steps.s1.outputs.result }}"
`)
	assert.NoError(t, err)
	assert.Contains(t, recorder.logLines(), "got 42")
}

func TestRunEnvFilePropagation(t *testing.T) {
	_, recorder, _, err := runWorkflowYaml(t, context.Background(), `
name: envs
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - run: echo "FROM_STEP_ONE=hello" >> "$GITHUB_ENV"
    - run: echo "saw $FROM_STEP_ONE"
`)
	assert.NoError(t, err)
	assert.Contains(t, recorder.logLines(), "saw hello")
}

func TestRunPathPrepend(t *testing.T) {
	_, recorder, _, err := runWorkflowYaml(t, context.Background(), `
name: paths
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - run: echo "/first/dir" >> "$GITHUB_PATH"
    - run: echo "PATH=$PATH"
`)
	assert.NoError(t, err)

	var pathLine string
	for _, line := range recorder.logLines() {
		if strings.HasPrefix(line, "PATH=") {
			pathLine = line
		}
	}
	require.NotEmpty(t, pathLine)
	assert.True(t, strings.HasPrefix(pathLine, "PATH=/first/dir:"), "additions are prepended: %s", pathLine)
}

func TestRunFailurePropagatesSkip(t *testing.T) {
	workflow, _, registry, err := runWorkflowYaml(t, context.Background(), `
name: skip-propagation
on: push
jobs:
  a:
    runs-on: ubuntu-latest
    steps: [{run: exit 1}]
  b:
    runs-on: ubuntu-latest
    needs: a
    steps: [{run: echo should-not-run}]
  c:
    runs-on: ubuntu-latest
    needs: b
    steps: [{run: echo nor-this}]
`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")

	assert.Equal(t, "failure", workflow.GetJob("a").Result)
	assert.Equal(t, "skipped", workflow.GetJob("b").Result)
	assert.Equal(t, "skipped", workflow.GetJob("c").Result)
	assert.Equal(t, 0, registry.Len())
}

func TestRunContinueOnError(t *testing.T) {
	workflow, recorder, _, err := runWorkflowYaml(t, context.Background(), `
name: continue
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - run: exit 1
      continue-on-error: true
    - run: echo still-here
`)
	assert.NoError(t, err)
	assert.Equal(t, "success", workflow.GetJob("test").Result)
	assert.Contains(t, recorder.logLines(), "still-here")
}

func TestRunFailureSkipsLaterSteps(t *testing.T) {
	workflow, recorder, _, err := runWorkflowYaml(t, context.Background(), `
name: step-skip
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    steps:
    - run: exit 1
    - run: echo not-reached
    - if: failure()
      run: echo on-failure
`)
	require.Error(t, err)
	assert.Equal(t, "failure", workflow.GetJob("test").Result)

	lines := strings.Join(recorder.logLines(), "\n")
	assert.NotContains(t, lines, "not-reached")
	assert.Contains(t, lines, "on-failure")
}

func TestRunMatrixExpansion(t *testing.T) {
	workflow, recorder, _, err := runWorkflowYaml(t, context.Background(), `
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
    - run: echo "ran ${{ matrix.os }}-${{ matrix.ver }}"
`)
	assert.NoError(t, err)
	assert.Equal(t, "success", workflow.GetJob("test").Result)

	lines := strings.Join(recorder.logLines(), "\n")
	for _, want := range []string{"ran X-1", "ran X-2", "ran Y-1", "ran Z-1", "ran Z-2"} {
		assert.Contains(t, lines, want)
	}
	assert.NotContains(t, lines, "ran Y-2")
}

func TestRunMatrixFailFast(t *testing.T) {
	workflow, recorder, _, err := runWorkflowYaml(t, context.Background(), `
name: fail-fast
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    strategy:
      fail-fast: true
      max-parallel: 1
      matrix:
        code: [1, 0, 0, 0]
    steps:
    - run: echo "ran ${{ matrix.code }}"; exit ${{ matrix.code }}
  unrelated:
    runs-on: ubuntu-latest
    steps: [{run: echo unrelated-ran}]
`)
	require.Error(t, err)
	assert.Equal(t, "failure", workflow.GetJob("test").Result)

	lines := strings.Join(recorder.logLines(), "\n")
	// with max-parallel 1 the failing first row aborts the siblings
	assert.Contains(t, lines, "ran 1")
	assert.NotContains(t, lines, "ran 0")
	// fail-fast aborts only sibling expansions, not unrelated jobs
	assert.Contains(t, lines, "unrelated-ran")
	assert.Equal(t, "success", workflow.GetJob("unrelated").Result)
}

func TestRunMatrixEnvIsolation(t *testing.T) {
	_, recorder, _, err := runWorkflowYaml(t, context.Background(), `
name: isolation
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    strategy:
      max-parallel: 1
      matrix:
        id: [one, two]
    steps:
    - run: echo "MARKER_${{ matrix.id }}=yes" >> "$GITHUB_ENV"
    - run: echo "${{ matrix.id }} sees one=$MARKER_one two=$MARKER_two"
`)
	assert.NoError(t, err)

	lines := recorder.logLines()
	assert.Contains(t, lines, "one sees one=yes two=")
	assert.Contains(t, lines, "two sees one= two=yes")
}

func TestRunSkippedJobGuard(t *testing.T) {
	workflow, recorder, _, err := runWorkflowYaml(t, context.Background(), `
name: guard
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    if: ${{ 1 == 2 }}
    steps: [{run: echo guarded}]
`)
	assert.NoError(t, err)
	assert.Equal(t, "skipped", workflow.GetJob("test").Result)
	assert.NotContains(t, strings.Join(recorder.logLines(), "\n"), "guarded")
	assert.Contains(t, recorder.jobStates("test"), common.StateSkipped)
}

func TestRunInterrupt(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	workflow, _, registry, err := runWorkflowYaml(t, ctx, `
name: interrupt
on: push
jobs:
  test:
    runs-on: ubuntu-latest
    steps: [{run: sleep 30}]
`)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Less(t, elapsed, 10*time.Second, "the in-flight process must be killed promptly")
	assert.Equal(t, "cancelled", workflow.GetJob("test").Result)

	registry.Drain(context.Background())
	assert.Equal(t, 0, registry.Len())
}
