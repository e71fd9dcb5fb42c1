package runner

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/bahdotsh/wrkflw/pkg/common"
	"github.com/bahdotsh/wrkflw/pkg/container"
	"github.com/bahdotsh/wrkflw/pkg/model"
)

type stepRun struct {
	Step       *model.Step
	RunContext *RunContext
	index      int

	env        map[string]string
	cmd        []string
	workingDir string
}

func (sr *stepRun) pre() common.Executor {
	return func(ctx context.Context) error {
		return nil
	}
}

func (sr *stepRun) main() common.Executor {
	sr.env = map[string]string{}
	return common.NewPipelineExecutor(
		sr.setupShellCommandExecutor(),
		func(ctx context.Context) error {
			return sr.RunContext.JobContainer.Exec(sr.cmd, sr.env, sr.workingDir)(ctx)
		},
	)
}

func (sr *stepRun) post() common.Executor {
	return func(ctx context.Context) error {
		return nil
	}
}

func (sr *stepRun) getRunContext() *RunContext {
	return sr.RunContext
}

func (sr *stepRun) getStepModel() *model.Step {
	return sr.Step
}

func (sr *stepRun) getEnv() *map[string]string {
	if sr.env == nil {
		sr.env = map[string]string{}
	}
	return &sr.env
}

func (sr *stepRun) getIfExpression(ctx context.Context, stage stepStage) string {
	return sr.Step.If.Value
}

func (sr *stepRun) getIndex() int {
	return sr.index
}

func (sr *stepRun) setupShellCommandExecutor() common.Executor {
	return func(ctx context.Context) error {
		scriptName, script, err := sr.setupShellCommand(ctx)
		if err != nil {
			return err
		}

		rc := sr.RunContext
		return rc.JobContainer.Copy(rc.JobContainer.GetToolDir(), &container.FileEntry{
			Name: scriptName,
			Mode: 0o755,
			Body: script,
		})(ctx)
	}
}

func (sr *stepRun) setupShellCommand(ctx context.Context) (name, script string, err error) {
	ee := sr.RunContext.NewStepExpressionEvaluator(ctx, sr)
	sr.setupShell(ee)
	sr.setupWorkingDirectory(ee)

	step := sr.Step

	script, err = ee.Interpolate(step.Run)
	if err != nil {
		return "", "", err
	}

	scCmd := step.ShellCommand()

	name = fmt.Sprintf("workflow/%s", stepID(sr))

	runPrepend := ""
	runAppend := ""
	switch step.Shell {
	case "bash", "sh", "":
		name += ".sh"
	case "pwsh", "powershell":
		name += ".ps1"
		runPrepend = "$ErrorActionPreference = 'stop'"
		runAppend = "if ((Test-Path -LiteralPath variable:/LASTEXITCODE)) { exit $LASTEXITCODE }"
	case "cmd":
		name += ".cmd"
		runPrepend = "@echo off"
	case "python":
		name += ".py"
	}

	script = fmt.Sprintf("%s\n%s\n%s", runPrepend, script, runAppend)

	common.Logger(ctx).Debugf("Wrote command \n%s\n to '%s'", script, name)

	scriptPath := path.Join(sr.RunContext.JobContainer.GetToolDir(), name)
	sr.cmd, err = shellquote.Split(strings.Replace(scCmd, `{0}`, scriptPath, 1))

	return name, script, err
}

func (sr *stepRun) setupShell(ee *ExpressionEvaluator) {
	rc := sr.RunContext
	step := sr.Step

	if step.Shell == "" {
		step.Shell = rc.Run.Job().Defaults.Run.Shell
	}

	step.Shell, _ = ee.Interpolate(step.Shell)

	if step.Shell == "" {
		step.Shell = rc.Run.Workflow.Defaults.Run.Shell
	}
}

func (sr *stepRun) setupWorkingDirectory(ee *ExpressionEvaluator) {
	rc := sr.RunContext
	step := sr.Step

	workingDirectory := step.WorkingDirectory
	if workingDirectory == "" {
		workingDirectory = rc.Run.Job().Defaults.Run.WorkingDirectory
	}

	// jobs can receive context values, so we interpolate
	workingDirectory, _ = ee.Interpolate(workingDirectory)

	if workingDirectory == "" {
		workingDirectory = rc.Run.Workflow.Defaults.Run.WorkingDirectory
	}
	sr.workingDir = workingDirectory
}
