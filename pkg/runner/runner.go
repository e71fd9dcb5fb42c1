package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bahdotsh/wrkflw/pkg/common"
	"github.com/bahdotsh/wrkflw/pkg/model"
)

// Runner provides capabilities to run GitHub actions
type Runner interface {
	NewPlanExecutor(plan *model.Plan) common.Executor
}

// Config contains the config for a new runner
type Config struct {
	Actor                 string            // the user that triggered the event
	Workdir               string            // path to working directory
	BindWorkdir           bool              // bind the workdir into the job container instead of copying it
	EventName             string            // name of event to run
	EventPath             string            // path to JSON file to use for event.json in containers
	DefaultBranch         string            // name of the main branch for this repository
	ForcePull             bool              // force pulling of the image, even if already present
	LogOutput             bool              // log the output from docker run
	JSONLogger            bool              // use json or text logger
	Env                   map[string]string // env for containers
	Inputs                map[string]string // manually passed action inputs
	Secrets               map[string]string // list of secrets
	Token                 string            // GitHub token
	Platforms             map[string]string // list of platforms
	UseGitIgnore          bool              // controls if paths in .gitignore should not be copied into container, default true
	GitHubInstance        string            // GitHub instance to use, default "github.com"
	ContainerArchitecture string            // desired OS/architecture platform for running containers
	ContainerDaemonSocket string            // path to Docker daemon socket
	ActionCacheDir        string            // path used for caching remote actions
	HostMode              bool              // run steps on the host instead of in containers
	Parallelism           int               // max jobs running at once; 0 derives from CPU count
	ContainerNamePrefix   string            // the prefix of container name

	EventJSON string // the content of JSON file to use for event.json in containers, overrides EventPath

	Cleanup *common.CleanupRegistry // registry for live resources, shared with the signal handler
}

// GetToken returns the GitHub token configured for action fetches
func (c Config) GetToken() string {
	if c.Token != "" {
		return c.Token
	}
	return c.Secrets["GITHUB_TOKEN"]
}

func (c *Config) parallelism() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	ncpu := runtime.NumCPU()
	if ncpu < 1 {
		ncpu = 1
	}
	return ncpu
}

type runnerImpl struct {
	config    *Config
	eventJSON string

	mu        sync.Mutex
	jobStates map[string]string // jobID -> result
}

// New Creates a new Runner
func New(runnerConfig *Config) (Runner, error) {
	runner := &runnerImpl{
		config:    runnerConfig,
		jobStates: make(map[string]string),
	}
	if runnerConfig.Cleanup == nil {
		runnerConfig.Cleanup = common.NewCleanupRegistry()
	}

	return runner.configure()
}

func (runner *runnerImpl) configure() (Runner, error) {
	runner.eventJSON = "{}"
	if runner.config.EventJSON != "" {
		runner.eventJSON = runner.config.EventJSON
	} else if runner.config.EventPath != "" {
		log.Debugf("Reading event.json from %s", runner.config.EventPath)
		eventJSONBytes, err := os.ReadFile(runner.config.EventPath)
		if err != nil {
			return nil, err
		}
		runner.eventJSON = string(eventJSONBytes)
	} else if len(runner.config.Inputs) != 0 {
		eventMap := map[string]map[string]string{
			"inputs": runner.config.Inputs,
		}
		eventJSON, err := json.Marshal(eventMap)
		if err != nil {
			return nil, err
		}
		runner.eventJSON = string(eventJSON)
	}
	return runner, nil
}

// NewPlanExecutor runs the plan stage by stage. Jobs inside a stage
// are independent and fan out up to the configured parallelism; a
// stage never starts before every job of the previous stages
// terminated.
func (runner *runnerImpl) NewPlanExecutor(plan *model.Plan) common.Executor {
	maxJobNameLen := plan.MaxRunNameLen()

	return func(ctx context.Context) error {
		for _, stage := range plan.Stages {
			if err := runner.executeStage(ctx, stage, maxJobNameLen); err != nil {
				return err
			}
		}
		return runner.handleFailure(plan)(ctx)
	}
}

func (runner *runnerImpl) executeStage(ctx context.Context, stage *model.Stage, maxJobNameLen int) error {
	var g errgroup.Group
	g.SetLimit(runner.config.parallelism())

	for _, run := range stage.Runs {
		run := run
		g.Go(func() error {
			runner.executeRun(ctx, run, maxJobNameLen)
			return nil
		})
	}
	return g.Wait()
}

// executeRun expands one planned job into its matrix rows and runs
// them as peers, honoring max-parallel and fail-fast.
func (runner *runnerImpl) executeRun(ctx context.Context, run *model.Run, maxJobNameLen int) {
	job := run.Job()
	sink := common.EventSinkFromContext(ctx)

	if ctx.Err() != nil {
		runner.setJobResult(run.JobID, job, resultCancelled)
		sink.Send(common.Event{JobStateChanged: &common.JobStateChangedEvent{JobID: run.JobID, State: common.StateCancelled}})
		return
	}

	if skipped, reason := runner.shouldSkip(ctx, run); skipped {
		common.Logger(ctx).Debugf("Skipping job '%s': %s", run.String(), reason)
		runner.setJobResult(run.JobID, job, resultSkipped)
		sink.Send(common.Event{JobStateChanged: &common.JobStateChangedEvent{JobID: run.JobID, State: common.StateSkipped}})
		return
	}

	matrixes, err := job.GetMatrixes()
	if err != nil {
		common.Logger(ctx).Errorf("Error while getting job's matrix: %v", err)
		runner.setJobResult(run.JobID, job, resultFailure)
		sink.Send(common.Event{JobStateChanged: &common.JobStateChangedEvent{JobID: run.JobID, State: common.StateFailure}})
		return
	}

	maxParallel := len(matrixes)
	failFast := true
	if job.Strategy != nil {
		if job.Strategy.MaxParallel > 0 && job.Strategy.MaxParallel < maxParallel {
			maxParallel = job.Strategy.MaxParallel
		}
		failFast = job.Strategy.FailFast
	}
	if maxParallel < 1 {
		maxParallel = 1
	}

	group := &matrixGroup{failFast: failFast}
	results := make([]string, len(matrixes))
	expansions := make([]common.Executor, 0, len(matrixes))
	for i, matrix := range matrixes {
		i, matrix := i, matrix
		expansions = append(expansions, func(_ context.Context) error {
			rc := runner.newRunContext(ctx, run, matrix)
			if len(matrixes) > 1 {
				rc.Name = fmt.Sprintf("%s %s", rc.Name, model.MatrixSuffix(matrix))
			}
			if group.aborted() || ctx.Err() != nil {
				results[i] = resultCancelled
				rc.emitJobState(ctx, common.StateCancelled)
				return nil
			}

			jobName := fmt.Sprintf("%-*s", maxJobNameLen, rc.Name)
			jobCtx := WithJobLogger(ctx, run.JobID, jobName, runner.config, matrix)
			err := rc.Executor()(jobCtx)
			switch {
			case err != nil && ctx.Err() != nil:
				results[i] = resultCancelled
			case err != nil:
				results[i] = resultFailure
				if group.failFast {
					group.abort()
				}
			default:
				results[i] = rc.Result()
			}
			return nil
		})
	}
	// expansions are peers; workers pick them up in declaration order
	_ = common.NewParallelExecutor(maxParallel, expansions...)(context.WithoutCancel(ctx))

	runner.setJobResult(run.JobID, job, aggregateResults(results))
	sink.Send(common.Event{JobStateChanged: &common.JobStateChangedEvent{JobID: run.JobID, State: resultToState(job.Result)}})
}

const (
	resultSuccess   = "success"
	resultFailure   = "failure"
	resultSkipped   = "skipped"
	resultCancelled = "cancelled"
)

func resultToState(result string) common.RunState {
	switch result {
	case resultSuccess:
		return common.StateSuccess
	case resultFailure:
		return common.StateFailure
	case resultSkipped:
		return common.StateSkipped
	case resultCancelled:
		return common.StateCancelled
	}
	return common.StatePending
}

func aggregateResults(results []string) string {
	agg := resultSuccess
	skipped := len(results) > 0
	for _, r := range results {
		if r != resultSkipped {
			skipped = false
		}
		switch r {
		case resultFailure:
			return resultFailure
		case resultCancelled:
			agg = resultCancelled
		}
	}
	if skipped {
		return resultSkipped
	}
	return agg
}

// matrixGroup shares the fail-fast flag between sibling expansions
type matrixGroup struct {
	mu       sync.Mutex
	failFast bool
	failed   bool
}

func (g *matrixGroup) abort() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failed = true
}

func (g *matrixGroup) aborted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failed
}

// shouldSkip reports whether a job must not run because a transitive
// dependency did not succeed.
func (runner *runnerImpl) shouldSkip(ctx context.Context, run *model.Run) (bool, string) {
	for _, need := range run.Job().Needs() {
		result := runner.jobResult(need)
		if result != resultSuccess && result != "" {
			return true, fmt.Sprintf("dependency %q finished with result %q", need, result)
		}
	}
	return false, ""
}

func (runner *runnerImpl) setJobResult(jobID string, job *model.Job, result string) {
	runner.mu.Lock()
	defer runner.mu.Unlock()
	runner.jobStates[jobID] = result
	job.Result = result
}

func (runner *runnerImpl) jobResult(jobID string) string {
	runner.mu.Lock()
	defer runner.mu.Unlock()
	return runner.jobStates[jobID]
}

func (runner *runnerImpl) handleFailure(plan *model.Plan) common.Executor {
	return func(ctx context.Context) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, stage := range plan.Stages {
			for _, run := range stage.Runs {
				if run.Job().Result == resultFailure {
					return fmt.Errorf("Job '%s' failed", run.String())
				}
			}
		}
		return nil
	}
}

func (runner *runnerImpl) newRunContext(ctx context.Context, run *model.Run, matrix map[string]interface{}) *RunContext {
	rc := &RunContext{
		Config:      runner.config,
		Run:         run,
		EventJSON:   runner.eventJSON,
		StepResults: make(map[string]*model.StepResult),
		Matrix:      matrix,
	}
	rc.ExprEval = rc.NewExpressionEvaluator(ctx)
	name, err := rc.ExprEval.Interpolate(run.String())
	if err != nil {
		name = run.String()
	}
	rc.Name = name

	return rc
}
