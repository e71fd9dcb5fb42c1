package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bahdotsh/wrkflw/pkg/common"
	"github.com/bahdotsh/wrkflw/pkg/model"
)

// newReusableWorkflowExecutor runs a job that calls another workflow
// via `uses`. Only local references are executed; remote reusable
// workflows would need their own checkout.
func newReusableWorkflowExecutor(rc *RunContext) common.Executor {
	return func(ctx context.Context) error {
		uses := rc.Run.Job().Uses
		if !strings.HasPrefix(uses, "./") {
			return fmt.Errorf("reusable workflow %q: only local workflow references (./…) can be executed", uses)
		}

		target := filepath.Join(rc.Config.Workdir, filepath.FromSlash(strings.TrimPrefix(uses, "./")))
		f, err := os.Open(target)
		if err != nil {
			return fmt.Errorf("reusable workflow %q: %w", uses, err)
		}
		defer f.Close()

		workflow, err := model.ReadWorkflow(f)
		if err != nil {
			return fmt.Errorf("reusable workflow %q: %w", uses, err)
		}
		if workflow.Name == "" {
			workflow.Name = filepath.Base(target)
		}
		workflow.File = target

		if problems := model.Validate(workflow, nil); model.HasErrors(problems) {
			for _, p := range problems {
				common.Logger(ctx).Errorf("%s", p)
			}
			return fmt.Errorf("reusable workflow %q failed validation", uses)
		}

		plan, err := workflow.NewPlan()
		if err != nil {
			return err
		}

		// inputs of the call become the inputs context of the callee
		calleeConfig := *rc.Config
		calleeConfig.Inputs = rc.Run.Job().With

		callee, err := New(&calleeConfig)
		if err != nil {
			return err
		}
		return callee.NewPlanExecutor(plan)(ctx)
	}
}
