package runner

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bahdotsh/wrkflw/pkg/common"
	"github.com/bahdotsh/wrkflw/pkg/model"
)

type step interface {
	pre() common.Executor
	main() common.Executor
	post() common.Executor

	getRunContext() *RunContext
	getStepModel() *model.Step
	getEnv() *map[string]string
	getIfExpression(ctx context.Context, stage stepStage) string
	getIndex() int
}

type stepStage int

const (
	stepStagePre stepStage = iota
	stepStageMain
	stepStagePost
)

func (s stepStage) String() string {
	switch s {
	case stepStagePre:
		return "Pre"
	case stepStageMain:
		return "Main"
	case stepStagePost:
		return "Post"
	}
	return "Unknown"
}

const (
	outputFileCommand  = "workflow/outputcmd.txt"
	stateFileCommand   = "workflow/statecmd.txt"
	pathFileCommand    = "workflow/pathcmd.txt"
	envFileCommand     = "workflow/envs.txt"
	summaryFileCommand = "workflow/SUMMARY.md"
)

func runStepExecutor(step step, stage stepStage, executor common.Executor) common.Executor {
	return func(ctx context.Context) error {
		logger := common.Logger(ctx)
		rc := step.getRunContext()
		stepModel := step.getStepModel()
		sink := common.EventSinkFromContext(ctx)

		ifExpression := step.getIfExpression(ctx, stage)
		rc.CurrentStep = stepID(step)
		rc.CurrentStepIndex = step.getIndex()

		// only the main stage is part of the reported step lifecycle
		if stage != stepStageMain {
			sink = common.NewDiscardSink()
		}

		stepResult := &model.StepResult{
			Outcome:    model.StepStatusSuccess,
			Conclusion: model.StepStatusSuccess,
			Outputs:    make(map[string]string),
		}
		if stage == stepStageMain {
			rc.StepResults[rc.CurrentStep] = stepResult
		}

		if err := setupEnv(ctx, step); err != nil {
			return err
		}

		runStep, err := isStepEnabled(ctx, ifExpression, step, stage)
		if err != nil {
			stepResult.Conclusion = model.StepStatusFailure
			stepResult.Outcome = model.StepStatusFailure
			return err
		}

		if !runStep {
			stepResult.Conclusion = model.StepStatusSkipped
			stepResult.Outcome = model.StepStatusSkipped
			logger.WithField("stepResult", stepResult.Outcome).Debugf("Skipping step '%s' due to '%s'", stepModel, ifExpression)
			emitStepState(sink, rc, step, common.StateSkipped)
			return nil
		}

		stepString, err := rc.NewStepExpressionEvaluator(ctx, step).Interpolate(stepModel.String())
		if err != nil || stepString == "" {
			stepString = stepModel.String()
		}
		logger.Infof("⭐ Run %s %s", stage, stepString)
		emitStepState(sink, rc, step, common.StateRunning)

		if err := prepareEnvFileCommands(ctx, rc, step); err != nil {
			return err
		}

		err = executor(ctx)

		if err == nil {
			logger.WithField("stepResult", stepResult.Outcome).Infof("  ✅  Success - %s %s", stage, stepString)
			emitStepState(sink, rc, step, common.StateSuccess)
		} else {
			stepResult.Outcome = model.StepStatusFailure

			continueOnError, parseErr := isContinueOnError(ctx, stepModel.RawContinueOnError, step, stage)
			if parseErr != nil {
				stepResult.Conclusion = model.StepStatusFailure
				return parseErr
			}

			if continueOnError {
				logger.Infof("Failed but continue next step")
				err = nil
				stepResult.Conclusion = model.StepStatusSuccess
			} else {
				stepResult.Conclusion = model.StepStatusFailure
			}

			logger.WithField("stepResult", stepResult.Outcome).Errorf("  ❌  Failure - %s %s (exit %d)", stage, stepString, rc.JobContainer.GetLastExitCode())
			emitStepState(sink, rc, step, common.StateFailure)
		}

		// process the environment files the step may have written
		orgerr := err
		if err := processEnvFileCommands(ctx, rc, step, stepResult); err != nil {
			return err
		}
		if orgerr != nil {
			return orgerr
		}
		return ctx.Err()
	}
}

func stepID(step step) string {
	sm := step.getStepModel()
	if sm.ID != "" {
		return sm.ID
	}
	return fmt.Sprintf("__step-%d", step.getIndex())
}

func emitStepState(sink common.EventSink, rc *RunContext, step step, state common.RunState) {
	sink.Send(common.Event{StepStateChanged: &common.StepStateChangedEvent{
		JobID: rc.Run.JobID,
		Index: step.getIndex(),
		State: state,
	}})
}

// prepareEnvFileCommands points the step at freshly truncated
// environment files and exposes their paths through the canonical
// variables.
func prepareEnvFileCommands(ctx context.Context, rc *RunContext, step step) error {
	toolDir := rc.JobContainer.GetToolDir()

	(*step.getEnv())["GITHUB_OUTPUT"] = path.Join(toolDir, outputFileCommand)
	(*step.getEnv())["GITHUB_STATE"] = path.Join(toolDir, stateFileCommand)
	(*step.getEnv())["GITHUB_PATH"] = path.Join(toolDir, pathFileCommand)
	(*step.getEnv())["GITHUB_ENV"] = path.Join(toolDir, envFileCommand)
	(*step.getEnv())["GITHUB_STEP_SUMMARY"] = path.Join(toolDir, summaryFileCommand)

	for _, name := range []string{outputFileCommand, stateFileCommand, pathFileCommand, envFileCommand, summaryFileCommand} {
		hostFile := filepath.Join(rc.hostToolDir, name)
		if err := os.MkdirAll(filepath.Dir(hostFile), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(hostFile, nil, 0o666); err != nil {
			return err
		}
	}
	return nil
}

// processEnvFileCommands reads the environment files back after the
// step ran.
func processEnvFileCommands(ctx context.Context, rc *RunContext, step step, stepResult *model.StepResult) error {
	// GITHUB_ENV merges into the job env for subsequent steps only
	envOut := map[string]string{}
	if err := rc.JobContainer.UpdateFromEnv(path.Join(rc.JobContainer.GetToolDir(), envFileCommand), &envOut)(ctx); err != nil {
		return err
	}
	for k, v := range envOut {
		rc.GetEnv()[k] = v
	}

	// GITHUB_OUTPUT publishes step outputs
	outputs := map[string]string{}
	if err := rc.JobContainer.UpdateFromEnv(path.Join(rc.JobContainer.GetToolDir(), outputFileCommand), &outputs)(ctx); err != nil {
		return err
	}
	for k, v := range outputs {
		stepResult.Outputs[k] = v
	}

	// GITHUB_STATE feeds the action's own post step
	state := map[string]string{}
	if err := rc.JobContainer.UpdateFromEnv(path.Join(rc.JobContainer.GetToolDir(), stateFileCommand), &state)(ctx); err != nil {
		return err
	}
	if len(state) > 0 {
		if rc.IntraActionState == nil {
			rc.IntraActionState = map[string]map[string]string{}
		}
		saved := rc.IntraActionState[rc.CurrentStep]
		if saved == nil {
			saved = map[string]string{}
			rc.IntraActionState[rc.CurrentStep] = saved
		}
		for k, v := range state {
			saved[k] = v
		}
	}

	// GITHUB_PATH prepends, in encountered order
	if err := rc.UpdateExtraPath(ctx, filepath.Join(rc.hostToolDir, pathFileCommand)); err != nil {
		return err
	}

	// GITHUB_STEP_SUMMARY is captured for reporting
	if summary, err := os.ReadFile(filepath.Join(rc.hostToolDir, summaryFileCommand)); err == nil && len(summary) > 0 {
		stepResult.Summary = string(summary)
	}

	return nil
}

func setupEnv(ctx context.Context, step step) error {
	rc := step.getRunContext()

	mergeEnv(ctx, step)
	// merge step env last, since it should not be overwritten
	mergeIntoMap(step.getEnv(), step.getStepModel().GetEnv())

	exprEval := rc.NewExpressionEvaluator(ctx)
	for k, v := range *step.getEnv() {
		if !strings.HasPrefix(k, "INPUT_") {
			interpolated, err := exprEval.Interpolate(v)
			if err != nil {
				return err
			}
			(*step.getEnv())[k] = interpolated
		}
	}
	// after the step env is evaluated, INPUT_ values may reference it
	exprEval = rc.NewStepExpressionEvaluator(ctx, step)
	for k, v := range *step.getEnv() {
		if strings.HasPrefix(k, "INPUT_") {
			interpolated, err := exprEval.Interpolate(v)
			if err != nil {
				return err
			}
			(*step.getEnv())[k] = interpolated
		}
	}

	common.Logger(ctx).Debugf("setupEnv => %v", *step.getEnv())

	return nil
}

func mergeEnv(ctx context.Context, step step) {
	env := step.getEnv()
	rc := step.getRunContext()
	job := rc.Run.Job()

	c := job.Container()
	if c != nil {
		mergeIntoMap(env, rc.GetEnv(), c.Env)
	} else {
		mergeIntoMap(env, rc.GetEnv())
	}

	rc.withGithubEnv(ctx, *env)
	rc.ApplyExtraPath(ctx, env)
}

func isStepEnabled(ctx context.Context, expr string, step step, stage stepStage) (bool, error) {
	rc := step.getRunContext()

	var dsc defaultStatusCheck
	if stage == stepStagePost {
		dsc = defaultStatusCheckAlways
	} else {
		dsc = defaultStatusCheckSuccess
	}

	runStep, err := EvalBool(rc.NewStepExpressionEvaluator(ctx, step), expr, dsc)
	if err != nil {
		return false, fmt.Errorf("  ❌  Error in if-expression: \"if: %s\" (%s)", expr, err)
	}

	return runStep, nil
}

func isContinueOnError(ctx context.Context, expr string, step step, stage stepStage) (bool, error) {
	if len(strings.TrimSpace(expr)) == 0 {
		return false, nil
	}

	rc := step.getRunContext()

	continueOnError, err := EvalBool(rc.NewStepExpressionEvaluator(ctx, step), expr, defaultStatusCheckNone)
	if err != nil {
		return false, fmt.Errorf("  ❌  Error in continue-on-error-expression: \"continue-on-error: %s\" (%s)", expr, err)
	}

	return continueOnError, nil
}

func mergeIntoMap(target *map[string]string, maps ...map[string]string) {
	for _, m := range maps {
		for k, v := range m {
			(*target)[k] = v
		}
	}
}
