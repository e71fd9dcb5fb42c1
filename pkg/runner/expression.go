package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/bahdotsh/wrkflw/pkg/exprparser"
	"github.com/bahdotsh/wrkflw/pkg/model"
)

// ExpressionEvaluator evaluates `${{ … }}` expressions against the
// contexts accumulated by a run context.
type ExpressionEvaluator struct {
	interpreter *exprparser.Interpreter
}

type defaultStatusCheck int

const (
	defaultStatusCheckNone defaultStatusCheck = iota
	defaultStatusCheckSuccess
	defaultStatusCheckAlways
)

// NewExpressionEvaluator creates an evaluator scoped to the job
func (rc *RunContext) NewExpressionEvaluator(ctx context.Context) *ExpressionEvaluator {
	return rc.newEvaluatorWithEnv(ctx, rc.GetEnv())
}

// NewStepExpressionEvaluator creates an evaluator that additionally
// sees the step's own env.
func (rc *RunContext) NewStepExpressionEvaluator(ctx context.Context, step step) *ExpressionEvaluator {
	return rc.newEvaluatorWithEnv(ctx, *step.getEnv())
}

func (rc *RunContext) newEvaluatorWithEnv(ctx context.Context, env map[string]string) *ExpressionEvaluator {
	inputs := map[string]interface{}{}
	if rc.CompositeInputs != nil {
		for k, v := range rc.CompositeInputs {
			inputs[k] = v
		}
	} else {
		for k, v := range rc.Config.Inputs {
			inputs[k] = v
		}
	}

	var runnerCtx map[string]interface{}
	if rc.JobContainer != nil {
		runnerCtx = rc.JobContainer.GetRunnerContext(ctx)
	} else {
		runnerCtx = map[string]interface{}{
			"os":   "Linux",
			"arch": "X64",
		}
	}

	evalEnv := &exprparser.EvaluationEnv{
		Github:   rc.getGithubContext(ctx),
		Runner:   runnerCtx,
		Job:      rc.getJobContext(),
		Matrix:   rc.Matrix,
		Strategy: rc.getStrategyContext(),
		Steps:    rc.getStepsContext(),
		Needs:    rc.getNeedsContext(),
		Env:      env,
		Inputs:   inputs,
	}
	return &ExpressionEvaluator{
		interpreter: exprparser.NewInterpreter(evalEnv, rc.currentRunStatus(ctx)),
	}
}

// currentRunStatus is what success()/failure()/cancelled() consult
func (rc *RunContext) currentRunStatus(ctx context.Context) exprparser.RunStatus {
	if ctx.Err() != nil {
		return exprparser.RunStatusCancelled
	}
	for _, result := range rc.StepResults {
		if result.Conclusion == model.StepStatusFailure {
			return exprparser.RunStatusFailure
		}
	}
	return exprparser.RunStatusSuccess
}

// Evaluate one bare expression
func (ee *ExpressionEvaluator) Evaluate(in string) (interface{}, error) {
	return ee.interpreter.Evaluate(in)
}

// Interpolate substitutes every `${{ … }}` in the input
func (ee *ExpressionEvaluator) Interpolate(in string) (string, error) {
	return ee.interpreter.Interpolate(in)
}

// EvalBool evaluates a guard expression with GitHub truthiness. A
// guard without a status function gets the stage's implicit one
// prepended; an empty guard is just the implicit check.
func EvalBool(ee *ExpressionEvaluator, expr string, dsc defaultStatusCheck) (bool, error) {
	expr = strings.TrimSpace(expr)
	// an if: may be written with or without the expression wrapper
	if strings.HasPrefix(expr, "${{") && strings.HasSuffix(expr, "}}") {
		expr = strings.TrimSpace(expr[3 : len(expr)-2])
	}

	if expr == "" {
		switch dsc {
		case defaultStatusCheckSuccess:
			expr = "success()"
		case defaultStatusCheckAlways:
			expr = "always()"
		default:
			return true, nil
		}
	} else if dsc != defaultStatusCheckNone && !exprparser.ContainsStatusFunction(expr) {
		statusFn := "success()"
		if dsc == defaultStatusCheckAlways {
			statusFn = "always()"
		}
		expr = fmt.Sprintf("%s && (%s)", statusFn, expr)
	}

	val, err := ee.Evaluate(expr)
	if err != nil {
		return false, err
	}
	return exprparser.IsTruthy(val), nil
}
