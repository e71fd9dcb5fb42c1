package runner

import (
	"context"
	"fmt"

	"github.com/bahdotsh/wrkflw/pkg/common"
	"github.com/bahdotsh/wrkflw/pkg/model"
)

type stepFactory interface {
	newStep(stepModel *model.Step, rc *RunContext, index int) (step, error)
}

type stepFactoryImpl struct{}

func (sf *stepFactoryImpl) newStep(stepModel *model.Step, rc *RunContext, index int) (step, error) {
	switch stepModel.Type() {
	case model.StepTypeRun:
		return &stepRun{Step: stepModel, RunContext: rc, index: index}, nil
	case model.StepTypeUsesDockerURL:
		return &stepDocker{Step: stepModel, RunContext: rc, index: index}, nil
	case model.StepTypeUsesActionLocal:
		return &stepActionLocal{Step: stepModel, RunContext: rc, index: index}, nil
	case model.StepTypeUsesActionRemote:
		return &stepActionRemote{Step: stepModel, RunContext: rc, index: index}, nil
	}
	return nil, fmt.Errorf("step %s has an invalid combination of 'run' and 'uses'", stepModel)
}

// newJobExecutor runs the job's steps strictly in sequence: every pre
// stage first, then the main stages in order, then the post stages in
// reverse. A failed step records the failure but later steps still get
// their guard evaluated, so always() and failure() conditions work.
func newJobExecutor(rc *RunContext, sf stepFactory) common.Executor {
	return func(ctx context.Context) error {
		logger := common.Logger(ctx)
		job := rc.Run.Job()

		steps := make([]step, 0, len(job.Steps))
		for i, stepModel := range job.Steps {
			if stepModel == nil {
				return fmt.Errorf("invalid Step %v: missing run or uses key", i)
			}
			s, err := sf.newStep(stepModel, rc, i)
			if err != nil {
				return err
			}
			steps = append(steps, s)
		}

		if err := common.NewPipelineExecutor(
			common.NewInfoExecutor("\U0001F3C3  Running job '%s'", rc.Name),
			rc.createHostToolDir(),
			rc.startContainer(),
		)(ctx); err != nil {
			rc.jobResult = resultFailure
			logger.Errorf("failed to start job runtime: %v", err)
			_ = rc.stopContainer()(ctx)
			return err
		}

		// best-effort kill of in-flight work when the run is cancelled
		stopKillWatch := context.AfterFunc(ctx, func() {
			_ = rc.KillRuntime(context.Background())
		})
		defer stopKillWatch()

		var jobErr error
		cancelled := false

		record := func(err error) {
			if err == nil {
				return
			}
			if ctx.Err() != nil {
				cancelled = true
			}
			if jobErr == nil {
				jobErr = err
			}
		}

		for _, s := range steps {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			if hasLifecycleHooks(s) {
				record(runStepExecutor(s, stepStagePre, s.pre())(ctx))
			}
		}

		for _, s := range steps {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			record(runStepExecutor(s, stepStageMain, s.main())(ctx))
		}

		for i := len(steps) - 1; i >= 0; i-- {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			if hasLifecycleHooks(steps[i]) {
				record(runStepExecutor(steps[i], stepStagePost, steps[i].post())(ctx))
			}
		}

		if err := rc.interpolateOutputs()(ctx); err != nil && jobErr == nil {
			jobErr = err
		}

		stopErr := rc.stopContainer()(ctx)

		switch {
		case cancelled:
			rc.jobResult = resultCancelled
		case jobErr != nil:
			rc.jobResult = resultFailure
		default:
			rc.jobResult = resultSuccess
		}
		setJobResultOnModel(job, rc.jobResult)

		if jobErr != nil {
			return jobErr
		}
		return stopErr
	}
}

// hasLifecycleHooks reports whether a step participates in the pre and
// post stages. Only action steps can declare those entry points.
func hasLifecycleHooks(s step) bool {
	switch s.(type) {
	case *stepActionRemote, *stepActionLocal:
		return true
	}
	return false
}

func setJobResultOnModel(job *model.Job, result string) {
	job.Result = result
}

// interpolateOutputs evaluates declared job outputs after the steps
// finished, so they can reference steps.<id>.outputs.
func (rc *RunContext) interpolateOutputs() common.Executor {
	return func(ctx context.Context) error {
		ee := rc.NewExpressionEvaluator(ctx)
		for k, v := range rc.Run.Job().Outputs {
			interpolated, err := ee.Interpolate(v)
			if err != nil {
				return err
			}
			if v != interpolated {
				rc.Run.Job().Outputs[k] = interpolated
			}
		}
		return nil
	}
}
