package runner

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bahdotsh/wrkflw/pkg/common"
	"github.com/bahdotsh/wrkflw/pkg/container"
	"github.com/bahdotsh/wrkflw/pkg/model"
)

// resolvedAction is a `uses:` reference materialized on the host
type resolvedAction struct {
	action  *model.Action
	hostDir string
	key     string // cycle-detection key: source plus subpath
}

// stepActionLocal runs a `uses: ./path` step
type stepActionLocal struct {
	Step       *model.Step
	RunContext *RunContext
	index      int

	env      map[string]string
	resolved *resolvedAction
}

func (sal *stepActionLocal) resolve(ctx context.Context) (*resolvedAction, error) {
	if sal.resolved != nil {
		return sal.resolved, nil
	}
	dir := filepath.Join(sal.RunContext.Config.Workdir, filepath.FromSlash(sal.Step.Uses))
	if _, err := os.Stat(dir); err != nil {
		return nil, newActionResolutionError(ErrKindNotFound, sal.Step.Uses, "local action directory does not exist: %v", err)
	}
	action, err := readActionManifest(sal.Step.Uses, dir)
	if err != nil {
		return nil, err
	}
	sal.resolved = &resolvedAction{
		action:  action,
		hostDir: dir,
		key:     "local:" + sal.Step.Uses,
	}
	return sal.resolved, nil
}

func (sal *stepActionLocal) pre() common.Executor {
	return func(ctx context.Context) error {
		return nil
	}
}

func (sal *stepActionLocal) main() common.Executor {
	return func(ctx context.Context) error {
		ra, err := sal.resolve(ctx)
		if err != nil {
			return err
		}
		return runResolvedAction(ctx, sal, ra, []string{ra.key})
	}
}

func (sal *stepActionLocal) post() common.Executor {
	return func(ctx context.Context) error {
		if sal.resolved == nil || sal.resolved.action.Runs.Post == "" {
			return nil
		}
		return runActionEntry(ctx, sal, sal.resolved, sal.resolved.action.Runs.Post)
	}
}

func (sal *stepActionLocal) getRunContext() *RunContext { return sal.RunContext }
func (sal *stepActionLocal) getStepModel() *model.Step  { return sal.Step }
func (sal *stepActionLocal) getIndex() int              { return sal.index }

func (sal *stepActionLocal) getEnv() *map[string]string {
	if sal.env == nil {
		sal.env = map[string]string{}
	}
	return &sal.env
}

func (sal *stepActionLocal) getIfExpression(ctx context.Context, stage stepStage) string {
	switch stage {
	case stepStagePost:
		if sal.resolved != nil {
			return sal.resolved.action.Runs.PostIf
		}
	case stepStagePre:
		if sal.resolved != nil {
			return sal.resolved.action.Runs.PreIf
		}
	}
	return sal.Step.If.Value
}

// stepActionRemote runs a `uses: owner/repo[/path]@ref` step,
// including the native checkout builtin.
type stepActionRemote struct {
	Step       *model.Step
	RunContext *RunContext
	index      int

	env          map[string]string
	remoteAction *remoteAction
	resolved     *resolvedAction
}

func (sar *stepActionRemote) resolve(ctx context.Context) (*resolvedAction, error) {
	if sar.resolved != nil {
		return sar.resolved, nil
	}
	rc := sar.RunContext

	sar.remoteAction = newRemoteAction(sar.Step.Uses)
	if sar.remoteAction == nil {
		return nil, newActionResolutionError(ErrKindNotFound, sar.Step.Uses, "expected format {org}/{repo}[/path]@ref")
	}
	if sar.remoteAction.IsCheckout() {
		return nil, nil
	}

	cachePath := rc.Config.ActionCacheDir
	if cachePath == "" {
		cachePath = DefaultActionCacheDir()
	}
	dir, err := fetchActionToDir(ctx, cachePath, sar.remoteAction, rc.Config.GetToken())
	if err != nil {
		return nil, newActionResolutionError(ErrKindNotFound, sar.Step.Uses, "fetch failed: %v", err)
	}
	action, err := readActionManifest(sar.Step.Uses, dir)
	if err != nil {
		return nil, err
	}
	sar.resolved = &resolvedAction{
		action:  action,
		hostDir: dir,
		key:     fmt.Sprintf("%s/%s/%s@%s", sar.remoteAction.Org, sar.remoteAction.Repo, sar.remoteAction.Path, sar.remoteAction.Ref),
	}
	rc.ActionRepository = fmt.Sprintf("%s/%s", sar.remoteAction.Org, sar.remoteAction.Repo)
	rc.ActionRef = sar.remoteAction.Ref
	return sar.resolved, nil
}

func (sar *stepActionRemote) pre() common.Executor {
	return func(ctx context.Context) error {
		ra, err := sar.resolve(ctx)
		if err != nil {
			return err
		}
		if ra == nil || ra.action.Runs.Pre == "" {
			return nil
		}
		return runActionEntry(ctx, sar, ra, ra.action.Runs.Pre)
	}
}

func (sar *stepActionRemote) main() common.Executor {
	return func(ctx context.Context) error {
		ra, err := sar.resolve(ctx)
		if err != nil {
			return err
		}
		if sar.remoteAction.IsCheckout() {
			return sar.nativeCheckout(ctx)
		}
		return runResolvedAction(ctx, sar, ra, []string{ra.key})
	}
}

func (sar *stepActionRemote) post() common.Executor {
	return func(ctx context.Context) error {
		if sar.resolved == nil || sar.resolved.action.Runs.Post == "" {
			return nil
		}
		return runActionEntry(ctx, sar, sar.resolved, sar.resolved.action.Runs.Post)
	}
}

// nativeCheckout copies the current working tree into the step's
// workspace. The workspace is bound to the working tree, so without a
// `path:` input there is nothing to do.
func (sar *stepActionRemote) nativeCheckout(ctx context.Context) error {
	rc := sar.RunContext
	logger := common.Logger(ctx)

	dest := sar.Step.With["path"]
	if dest == "" {
		logger.Debugf("Skipping local checkout, workspace is the working tree")
		return nil
	}

	tmp, err := os.MkdirTemp("", "wrkflw-checkout-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)
	if err := container.CopyDirOnHost(tmp, rc.Config.Workdir, rc.Config.UseGitIgnore); err != nil {
		return err
	}
	target := filepath.Join(rc.Config.Workdir, filepath.FromSlash(dest))
	if err := os.RemoveAll(target); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return container.CopyDirOnHost(target, tmp, false)
}

func (sar *stepActionRemote) getRunContext() *RunContext { return sar.RunContext }
func (sar *stepActionRemote) getStepModel() *model.Step  { return sar.Step }
func (sar *stepActionRemote) getIndex() int              { return sar.index }

func (sar *stepActionRemote) getEnv() *map[string]string {
	if sar.env == nil {
		sar.env = map[string]string{}
	}
	return &sar.env
}

func (sar *stepActionRemote) getIfExpression(ctx context.Context, stage stepStage) string {
	switch stage {
	case stepStagePre:
		if sar.resolved != nil {
			return sar.resolved.action.Runs.PreIf
		}
	case stepStagePost:
		if sar.resolved != nil {
			return sar.resolved.action.Runs.PostIf
		}
	}
	return sar.Step.If.Value
}

// runResolvedAction dispatches a resolved action by kind. chain is the
// list of (source, subpath) keys visited, used for composite cycle
// detection.
func runResolvedAction(ctx context.Context, s step, ra *resolvedAction, chain []string) error {
	rc := s.getRunContext()

	if err := actionKindSupported(rc, s.getStepModel().Uses, ra.action.Runs.Using); err != nil {
		return err
	}
	if err := setupActionInputs(ctx, rc, s, ra.action); err != nil {
		return err
	}

	switch ra.action.Runs.Using {
	case model.ActionRunsUsingNode12, model.ActionRunsUsingNode16, model.ActionRunsUsingNode20:
		return runActionEntry(ctx, s, ra, ra.action.Runs.Main)
	case model.ActionRunsUsingDocker:
		return runDockerAction(ctx, s, ra)
	case model.ActionRunsUsingComposite:
		return runCompositeAction(ctx, s, ra, chain)
	}
	return newActionResolutionError(ErrKindUnsupportedKindInRuntime, s.getStepModel().Uses, "unsupported runs.using %q", ra.action.Runs.Using)
}

// actionDirInRuntime makes the action tree reachable by the runtime
// and returns the path a command should use.
func actionDirInRuntime(ctx context.Context, rc *RunContext, ra *resolvedAction) (string, error) {
	if rc.Config.HostMode {
		return ra.hostDir, nil
	}
	key := safeFilename(ra.key)
	hostCopy := filepath.Join(rc.hostToolDir, "actions", key)
	if _, err := os.Stat(hostCopy); err != nil {
		if err := container.CopyDirOnHost(hostCopy, ra.hostDir, false); err != nil {
			return "", err
		}
	}
	return path.Join(container.ToolDirPath, "actions", key), nil
}

// runActionEntry executes one JavaScript entry point (main, pre or
// post) of a node action.
func runActionEntry(ctx context.Context, s step, ra *resolvedAction, entry string) error {
	rc := s.getRunContext()

	actionDir, err := actionDirInRuntime(ctx, rc, ra)
	if err != nil {
		return err
	}

	env := *s.getEnv()
	env["GITHUB_ACTION_PATH"] = actionDir
	rc.ActionPath = actionDir
	for k, v := range rc.IntraActionState[stepID(s)] {
		env[fmt.Sprintf("STATE_%s", k)] = v
	}

	script := path.Join(actionDir, path.Clean(entry))
	if rc.Config.HostMode {
		return rc.JobContainer.Exec([]string{"node", script}, env, "")(ctx)
	}
	return rc.newStepContainerExec(nodeImageFor(ra.action.Runs.Using), nil, []string{"node", script}, env, "")(ctx)
}

// runDockerAction runs a docker-kind action: a pre-built image with
// entrypoint and args from the manifest.
func runDockerAction(ctx context.Context, s step, ra *resolvedAction) error {
	rc := s.getRunContext()
	runs := ra.action.Runs

	image := runs.Image
	switch {
	case strings.HasPrefix(image, "docker://"):
		image = strings.TrimPrefix(image, "docker://")
	case strings.EqualFold(image, "Dockerfile") || strings.HasSuffix(image, "Dockerfile"):
		return newActionResolutionError(ErrKindUnsupportedKindInRuntime, s.getStepModel().Uses, "building Dockerfile actions is not supported, use a pre-built image")
	}

	env := *s.getEnv()
	ee := rc.NewStepExpressionEvaluator(ctx, s)

	var entrypoint []string
	if runs.Entrypoint != "" {
		entrypoint = []string{runs.Entrypoint}
	}
	cmd := make([]string, 0, len(runs.Args))
	for _, arg := range runs.Args {
		interpolated, err := ee.Interpolate(arg)
		if err != nil {
			return err
		}
		cmd = append(cmd, interpolated)
	}

	return rc.newStepContainerExec(image, entrypoint, cmd, env, "")(ctx)
}

// runCompositeAction executes the steps of a composite action with an
// explicit frame list. The chain accumulator carries every composite
// visited; revisiting one is a cycle. Cancellation is checked between
// frames.
func runCompositeAction(ctx context.Context, s step, ra *resolvedAction, chain []string) error {
	rc := s.getRunContext()
	stepModel := s.getStepModel()

	// inputs.* inside the composite resolve to the caller's with:
	inputs := map[string]interface{}{}
	for name, input := range ra.action.Inputs {
		envKey := fmt.Sprintf("INPUT_%s", strings.ReplaceAll(strings.ToUpper(name), "-", "_"))
		if v, ok := (*s.getEnv())[envKey]; ok {
			inputs[name] = v
		} else {
			inputs[name] = input.Default
		}
	}

	// composite steps publish into their own scope
	savedResults := rc.StepResults
	savedCurrent := rc.CurrentStep
	savedInputs := rc.CompositeInputs
	rc.StepResults = map[string]*model.StepResult{}
	rc.CompositeInputs = inputs
	defer func() {
		compositeResults := rc.StepResults
		rc.StepResults = savedResults
		rc.CurrentStep = savedCurrent
		rc.CompositeInputs = savedInputs

		// declared outputs become the caller step's outputs
		outerResult := rc.StepResults[savedCurrent]
		if outerResult == nil {
			return
		}
		ee := rc.compositeOutputEvaluator(ctx, inputs, compositeResults)
		for name, out := range ra.action.Outputs {
			value, err := ee.Interpolate(out.Value)
			if err != nil {
				continue
			}
			outerResult.Outputs[name] = value
		}
	}()

	sf := &stepFactoryImpl{}
	for i, sub := range ra.action.Runs.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame := *sub
		if frame.Uses != "" {
			key := compositeKey(ra, frame.Uses)
			for _, visited := range chain {
				if visited == key {
					return newActionResolutionError(ErrKindCompositeCycle, stepModel.Uses, "composite action cycle through %q", key)
				}
			}
			if strings.HasPrefix(frame.Uses, "./") {
				// relative to the action tree, not the workspace
				rel, err := filepath.Rel(rc.Config.Workdir, filepath.Join(ra.hostDir, filepath.FromSlash(frame.Uses)))
				if err != nil {
					return err
				}
				frame.Uses = "./" + filepath.ToSlash(rel)
			}
		}
		child, err := sf.newStep(&frame, rc, s.getIndex())
		if err != nil {
			return err
		}
		if err := runStepExecutor(child, stepStageMain, compositeChildExecutor(child, ra, chain))(ctx); err != nil {
			return fmt.Errorf("composite step %d of %s: %w", i+1, stepModel.Uses, err)
		}
	}
	return nil
}

func compositeKey(ra *resolvedAction, uses string) string {
	if strings.HasPrefix(uses, "./") {
		return "local:" + path.Join(ra.key, uses)
	}
	return uses
}

// compositeChildExecutor keeps the chain flowing into nested composite
// actions so cycles are caught at any depth.
func compositeChildExecutor(child step, ra *resolvedAction, chain []string) common.Executor {
	return func(ctx context.Context) error {
		switch c := child.(type) {
		case *stepActionLocal:
			nested, err := c.resolve(ctx)
			if err != nil {
				return err
			}
			return runResolvedAction(ctx, c, nested, append(chain, nested.key))
		case *stepActionRemote:
			nested, err := c.resolve(ctx)
			if err != nil {
				return err
			}
			if c.remoteAction.IsCheckout() {
				return c.nativeCheckout(ctx)
			}
			return runResolvedAction(ctx, c, nested, append(chain, nested.key))
		default:
			return child.main()(ctx)
		}
	}
}

// compositeOutputEvaluator sees the composite's own steps and inputs
func (rc *RunContext) compositeOutputEvaluator(ctx context.Context, inputs map[string]interface{}, results map[string]*model.StepResult) *ExpressionEvaluator {
	saved := rc.StepResults
	savedInputs := rc.CompositeInputs
	rc.StepResults = results
	rc.CompositeInputs = inputs
	defer func() {
		rc.StepResults = saved
		rc.CompositeInputs = savedInputs
	}()
	return rc.NewExpressionEvaluator(ctx)
}
