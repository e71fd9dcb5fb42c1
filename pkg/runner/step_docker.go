package runner

import (
	"context"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/bahdotsh/wrkflw/pkg/common"
	"github.com/bahdotsh/wrkflw/pkg/container"
	"github.com/bahdotsh/wrkflw/pkg/model"
)

// stepDocker runs a `uses: docker://image:tag` step: the pre-built
// image is the action.
type stepDocker struct {
	Step       *model.Step
	RunContext *RunContext
	index      int

	env map[string]string
}

func (sd *stepDocker) pre() common.Executor {
	return func(ctx context.Context) error {
		return nil
	}
}

func (sd *stepDocker) main() common.Executor {
	return func(ctx context.Context) error {
		rc := sd.RunContext
		if rc.Config.HostMode {
			return container.ErrDockerActionsUnsupported
		}

		ee := rc.NewStepExpressionEvaluator(ctx, sd)
		image := strings.TrimPrefix(sd.Step.Uses, "docker://")
		image, err := ee.Interpolate(image)
		if err != nil {
			return err
		}

		var entrypoint []string
		if e, ok := sd.Step.With["entrypoint"]; ok && e != "" {
			entrypoint = []string{e}
		}
		var cmd []string
		if args, ok := sd.Step.With["args"]; ok && args != "" {
			interpolated, err := ee.Interpolate(args)
			if err != nil {
				return err
			}
			if cmd, err = shellquote.Split(interpolated); err != nil {
				return err
			}
		}

		return rc.newStepContainerExec(image, entrypoint, cmd, sd.env, sd.Step.WorkingDirectory)(ctx)
	}
}

func (sd *stepDocker) post() common.Executor {
	return func(ctx context.Context) error {
		return nil
	}
}

func (sd *stepDocker) getRunContext() *RunContext {
	return sd.RunContext
}

func (sd *stepDocker) getStepModel() *model.Step {
	return sd.Step
}

func (sd *stepDocker) getEnv() *map[string]string {
	if sd.env == nil {
		sd.env = map[string]string{}
	}
	return &sd.env
}

func (sd *stepDocker) getIfExpression(ctx context.Context, stage stepStage) string {
	return sd.Step.If.Value
}

func (sd *stepDocker) getIndex() int {
	return sd.index
}
