package runner

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/opencontainers/selinux/go-selinux"

	"github.com/bahdotsh/wrkflw/pkg/common"
	"github.com/bahdotsh/wrkflw/pkg/container"
	"github.com/bahdotsh/wrkflw/pkg/model"
)

// RunContext contains info about one job run, or one expansion of a
// matrix job.
type RunContext struct {
	Name              string
	Config            *Config
	Matrix            map[string]interface{}
	Run               *model.Run
	EventJSON         string
	Env               map[string]string
	ExtraPath         []string
	CurrentStep       string
	CurrentStepIndex  int
	StepResults       map[string]*model.StepResult
	IntraActionState  map[string]map[string]string
	ExprEval          *ExpressionEvaluator
	JobContainer      container.ExecutionsEnvironment
	ServiceContainers []container.ExecutionsEnvironment
	ActionPath        string
	ActionRepository  string
	ActionRef         string
	CompositeInputs   map[string]interface{}

	hostToolDir         string
	networkName         string
	cleanupJobContainer common.Executor
	cleanupHandles      []*common.CleanupHandle
	jobResult           string
}

func (rc *RunContext) String() string {
	return fmt.Sprintf("%s/%s", rc.Run.Workflow.Name, rc.Name)
}

// GetEnv returns the merged env for the job: workflow env, job env and
// config env, rightmost wins. The map is owned by this run context and
// never shared across jobs.
func (rc *RunContext) GetEnv() map[string]string {
	if rc.Env == nil {
		rc.Env = map[string]string{}
		if rc.Run != nil && rc.Run.Workflow != nil && rc.Config != nil {
			job := rc.Run.Job()
			if job != nil {
				rc.Env = mergeMaps(rc.Run.Workflow.Env, job.Environment(), rc.Config.Env)
			}
		}
	}
	rc.Env["WRKFLW"] = "true"
	return rc.Env
}

func (rc *RunContext) jobContainerName() string {
	return createSimpleContainerName(rc.Config.ContainerNamePrefix, "WORKFLOW-"+rc.Run.Workflow.Name, "JOB-"+rc.Name)
}

// networkNameForRun is the per-run bridge network shared by the job
// container and its services.
func (rc *RunContext) networkNameForRun() string {
	return fmt.Sprintf("%s-network", rc.jobContainerName())
}

// GetBindsAndMounts returns the binds and mounts for the container.
// The host workspace is bound at the fixed container workspace path;
// the tool cache lives on a named per-run volume.
func (rc *RunContext) GetBindsAndMounts() ([]string, map[string]string) {
	bindModifiers := ""
	if selinux.GetEnabled() {
		bindModifiers = ":z"
	}

	binds := []string{
		fmt.Sprintf("%s:%s%s", rc.Config.Workdir, "/github/workspace", bindModifiers),
		fmt.Sprintf("%s:%s%s", rc.hostToolDir, container.ToolDirPath, bindModifiers),
	}

	// mount the daemon socket so steps can drive docker, unless the
	// user opted out with "-"
	if rc.Config.ContainerDaemonSocket != "-" {
		if socketHost, err := container.GetSocketAndHost(rc.Config.ContainerDaemonSocket); err == nil {
			daemonPath := container.DaemonSocketMountPath(socketHost.Socket)
			binds = append(binds, fmt.Sprintf("%s:%s", daemonPath, "/var/run/docker.sock"))
		}
	}

	mounts := map[string]string{
		rc.jobContainerName() + "-toolcache": "/opt/hostedtoolcache",
	}

	if job := rc.Run.Job(); job != nil {
		if spec := job.Container(); spec != nil {
			for _, v := range spec.Volumes {
				if !strings.Contains(v, ":") || filepath.IsAbs(v) {
					// bind anonymous volume or host file
					binds = append(binds, v)
				} else {
					// mount existing volume
					paths := strings.SplitN(v, ":", 2)
					mounts[paths[0]] = paths[1]
				}
			}
		}
	}

	return binds, mounts
}

// createHostToolDir creates the per-run host directory that backs
// scripts and environment files. It registers a cleanup handle before
// first use.
func (rc *RunContext) createHostToolDir() common.Executor {
	return func(ctx context.Context) error {
		randBytes := make([]byte, 8)
		_, _ = rand.Read(randBytes)
		dir := filepath.Join(os.TempDir(), "wrkflw-"+hex.EncodeToString(randBytes))
		if rc.Config.Cleanup != nil {
			h := rc.Config.Cleanup.Register(common.ResourceTempDir, dir, func(ctx context.Context) error {
				return os.RemoveAll(dir)
			})
			rc.cleanupHandles = append(rc.cleanupHandles, h)
		}
		if err := os.MkdirAll(filepath.Join(dir, "workflow"), 0o755); err != nil {
			return err
		}
		rc.hostToolDir = dir
		return nil
	}
}

func (rc *RunContext) startHostEnvironment() common.Executor {
	return func(ctx context.Context) error {
		logWriter := rc.maskedLogWriter(ctx, "stdout")
		errWriter := rc.maskedLogWriter(ctx, "stderr")
		tmpDir := filepath.Join(rc.hostToolDir, "tmp")

		workdir := rc.Config.Workdir
		if !rc.Config.BindWorkdir {
			// per-run temporary workspace seeded from the working tree
			workdir = filepath.Join(rc.hostToolDir, "workspace")
			if err := container.CopyDirOnHost(workdir, rc.Config.Workdir, rc.Config.UseGitIgnore); err != nil {
				return err
			}
		}

		env := container.NewHostEnvironment(workdir, rc.hostToolDir, tmpDir, logWriter, errWriter)
		rc.JobContainer = env
		rc.cleanupJobContainer = env.Remove()

		for k, v := range env.GetRunnerContext(ctx) {
			if v, ok := v.(string); ok {
				rc.GetEnv()[fmt.Sprintf("RUNNER_%s", strings.ToUpper(k))] = v
			}
		}
		for _, envVar := range os.Environ() {
			if k, v, ok := strings.Cut(envVar, "="); ok {
				// don't override workflow values with ambient ones
				if _, ok := rc.Env[k]; !ok {
					rc.Env[k] = v
				}
			}
		}

		return common.NewPipelineExecutor(
			env.Create(),
			env.Copy(env.GetToolDir(), &container.FileEntry{
				Name: "workflow/event.json",
				Mode: 0o644,
				Body: rc.EventJSON,
			}),
		)(ctx)
	}
}

func (rc *RunContext) startJobContainer() common.Executor {
	return func(ctx context.Context) error {
		logger := common.Logger(ctx)
		image := rc.platformImage(ctx)
		logWriter := rc.maskedLogWriter(ctx, "stdout")
		errWriter := rc.maskedLogWriter(ctx, "stderr")

		logger.Infof("\U0001f680  Start image=%s", image)
		name := rc.jobContainerName()
		rc.networkName = rc.networkNameForRun()

		envList := []string{
			fmt.Sprintf("%s=%s", "RUNNER_TOOL_CACHE", "/opt/hostedtoolcache"),
			fmt.Sprintf("%s=%s", "RUNNER_OS", "Linux"),
			fmt.Sprintf("%s=%s", "RUNNER_ARCH", container.RunnerArch()),
			fmt.Sprintf("%s=%s", "RUNNER_TEMP", "/tmp"),
			fmt.Sprintf("%s=%s", "LANG", "C.UTF-8"),
		}

		binds, mounts := rc.GetBindsAndMounts()

		// service containers are started on the shared network before
		// the job container so aliases resolve from step one
		for serviceID, spec := range rc.Run.Job().Services {
			interpolatedEnvs := make(map[string]string, len(spec.Env))
			for k, v := range spec.Env {
				interpolatedEnvs[k], _ = rc.ExprEval.Interpolate(v)
			}
			envs := make([]string, 0, len(interpolatedEnvs))
			for k, v := range interpolatedEnvs {
				envs = append(envs, fmt.Sprintf("%s=%s", k, v))
			}
			serviceImage, _ := rc.ExprEval.Interpolate(spec.Image)
			c := container.NewContainer(&container.NewContainerInput{
				Name:           createSimpleContainerName(name, serviceID),
				WorkingDir:     "/github/workspace",
				Image:          serviceImage,
				Env:            envs,
				Ports:          spec.Ports,
				Stdout:         logWriter,
				Stderr:         errWriter,
				Platform:       rc.Config.ContainerArchitecture,
				NetworkMode:    rc.networkName,
				NetworkAliases: []string{serviceID},
			})
			rc.ServiceContainers = append(rc.ServiceContainers, c)
		}

		rc.cleanupJobContainer = func(ctx context.Context) error {
			if rc.JobContainer == nil {
				return nil
			}
			return rc.JobContainer.Remove().
				Then(container.NewDockerVolumeRemoveExecutor(name+"-toolcache", false)).
				Then(rc.stopServiceContainers()).
				Then(container.NewDockerNetworkRemoveExecutor(rc.networkName))(ctx)
		}

		jc := container.NewContainer(&container.NewContainerInput{
			Cmd:            nil,
			Entrypoint:     []string{"tail", "-f", "/dev/null"},
			WorkingDir:     "/github/workspace",
			Image:          image,
			Name:           name,
			Env:            envList,
			Binds:          binds,
			Mounts:         mounts,
			NetworkMode:    rc.networkName,
			NetworkAliases: []string{rc.Name},
			Stdout:         logWriter,
			Stderr:         errWriter,
			Platform:       rc.Config.ContainerArchitecture,
		})
		jc.SetHostToolDir(rc.hostToolDir)
		rc.JobContainer = jc

		return common.NewPipelineExecutor(
			container.CheckDaemonVersion(),
			rc.JobContainer.Pull(rc.Config.ForcePull),
			rc.createNetwork(rc.networkName),
			rc.createToolcacheVolume(name+"-toolcache"),
			rc.pullServicesImages(rc.Config.ForcePull),
			rc.startServiceContainers(),
			rc.registerContainerCleanup(rc.JobContainer),
			rc.JobContainer.Create(),
			rc.JobContainer.Start(),
			rc.JobContainer.Copy(rc.JobContainer.GetToolDir(), &container.FileEntry{
				Name: "workflow/event.json",
				Mode: 0o644,
				Body: rc.EventJSON,
			}),
		)(ctx)
	}
}

func (rc *RunContext) maskedLogWriter(ctx context.Context, stream string) io.Writer {
	logger := common.Logger(ctx)
	rawLogger := logger.WithField("raw_output", true)
	sink := common.EventSinkFromContext(ctx)
	jobID := rc.Run.JobID

	return common.NewLineWriter(func(s string) bool {
		line := strings.TrimSuffix(s, "\n")
		sink.Send(common.Event{LogLine: &common.LogLineEvent{
			JobID:  jobID,
			Index:  rc.CurrentStepIndex,
			Stream: stream,
			Text:   line,
		}})
		if rc.Config.LogOutput {
			rawLogger.Infof("%s", line)
		} else {
			rawLogger.Debugf("%s", line)
		}
		return true
	})
}

func (rc *RunContext) createNetwork(name string) common.Executor {
	return func(ctx context.Context) error {
		if rc.Config.Cleanup != nil {
			h := rc.Config.Cleanup.Register(common.ResourceNetwork, name, container.NewDockerNetworkRemoveExecutor(name))
			rc.cleanupHandles = append(rc.cleanupHandles, h)
		}
		return container.NewDockerNetworkCreateExecutor(name)(ctx)
	}
}

func (rc *RunContext) createToolcacheVolume(name string) common.Executor {
	return func(ctx context.Context) error {
		if rc.Config.Cleanup != nil {
			h := rc.Config.Cleanup.Register(common.ResourceVolume, name, container.NewDockerVolumeRemoveExecutor(name, true))
			rc.cleanupHandles = append(rc.cleanupHandles, h)
		}
		return container.NewDockerVolumeCreateExecutor(name)(ctx)
	}
}

func (rc *RunContext) registerContainerCleanup(c container.ExecutionsEnvironment) common.Executor {
	return func(ctx context.Context) error {
		if rc.Config.Cleanup == nil {
			return nil
		}
		h := rc.Config.Cleanup.Register(common.ResourceContainer, rc.jobContainerName(), func(ctx context.Context) error {
			return c.Remove()(ctx)
		})
		rc.cleanupHandles = append(rc.cleanupHandles, h)
		return nil
	}
}

func (rc *RunContext) pullServicesImages(forcePull bool) common.Executor {
	return func(ctx context.Context) error {
		execs := []common.Executor{}
		for _, c := range rc.ServiceContainers {
			execs = append(execs, c.Pull(forcePull))
		}
		return common.NewParallelExecutor(len(execs), execs...)(ctx)
	}
}

func (rc *RunContext) startServiceContainers() common.Executor {
	return func(ctx context.Context) error {
		execs := []common.Executor{}
		for _, c := range rc.ServiceContainers {
			c := c
			execs = append(execs, common.NewPipelineExecutor(
				rc.registerContainerCleanup(c),
				c.Create(),
				c.Start(),
				c.Attach(),
			))
		}
		return common.NewParallelExecutor(len(execs), execs...)(ctx)
	}
}

func (rc *RunContext) stopServiceContainers() common.Executor {
	return func(ctx context.Context) error {
		execs := []common.Executor{}
		for _, c := range rc.ServiceContainers {
			execs = append(execs, c.Remove())
		}
		return common.NewParallelExecutor(len(execs), execs...)(ctx)
	}
}

// startContainer picks the runtime for this job
func (rc *RunContext) startContainer() common.Executor {
	return func(ctx context.Context) error {
		if rc.Config.HostMode {
			return rc.startHostEnvironment()(ctx)
		}
		return rc.startJobContainer()(ctx)
	}
}

// stopContainer releases the job runtime and unregisters its cleanup
// handles; removal after an external teardown is a no-op.
func (rc *RunContext) stopContainer() common.Executor {
	return func(ctx context.Context) error {
		var err error
		if rc.cleanupJobContainer != nil {
			err = rc.cleanupJobContainer(ctx)
		}
		if rc.hostToolDir != "" {
			if rmErr := os.RemoveAll(rc.hostToolDir); rmErr != nil {
				common.Logger(ctx).Debugf("removing %s: %v", rc.hostToolDir, rmErr)
			}
		}
		for _, h := range rc.cleanupHandles {
			h.Remove()
		}
		rc.cleanupHandles = nil
		return err
	}
}

// KillRuntime asks the active runtime to stop the in-flight work,
// used on cancellation.
func (rc *RunContext) KillRuntime(ctx context.Context) error {
	if rc.JobContainer == nil {
		return nil
	}
	return rc.JobContainer.Kill()(ctx)
}

// ApplyExtraPath prepends GITHUB_PATH additions to PATH for the
// following steps of this job only.
func (rc *RunContext) ApplyExtraPath(ctx context.Context, env *map[string]string) {
	if len(rc.ExtraPath) == 0 {
		return
	}
	path := rc.JobContainer.GetPathVariableName()
	if (*env)[path] == "" {
		(*env)[path] = rc.JobContainer.DefaultPathVariable()
	}
	(*env)[path] = rc.JobContainer.JoinPathVariable(append(append([]string{}, rc.ExtraPath...), (*env)[path])...)
}

// UpdateExtraPath reads the GITHUB_PATH file a step may have written;
// each line is prepended in encountered order.
func (rc *RunContext) UpdateExtraPath(ctx context.Context, hostPathFile string) error {
	content, err := os.ReadFile(hostPathFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, line := range strings.Split(string(content), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			rc.addPath(ctx, line)
		}
	}
	return nil
}

func (rc *RunContext) addPath(ctx context.Context, arg string) {
	common.Logger(ctx).Debugf("extending PATH with %q", arg)
	rc.ExtraPath = append([]string{arg}, rc.ExtraPath...)
}

// Executor returns a pipeline executor for all the steps in the job
func (rc *RunContext) Executor() common.Executor {
	var executor common.Executor

	switch rc.Run.Job().Type() {
	case model.JobTypeDefault:
		executor = newJobExecutor(rc, &stepFactoryImpl{})
	case model.JobTypeReusableWorkflow:
		executor = newReusableWorkflowExecutor(rc)
	default:
		executor = common.NewErrorExecutor(fmt.Errorf("job %q has an invalid combination of 'steps' and 'uses'", rc.Run.JobID))
	}

	return func(ctx context.Context) error {
		enabled, err := rc.isEnabled(ctx)
		if err != nil {
			return err
		}
		if !enabled {
			rc.jobResult = resultSkipped
			rc.emitJobState(ctx, common.StateSkipped)
			return nil
		}
		rc.emitJobState(ctx, common.StateRunning)
		return executor(ctx)
	}
}

func (rc *RunContext) emitJobState(ctx context.Context, state common.RunState) {
	common.EventSinkFromContext(ctx).Send(common.Event{
		JobStateChanged: &common.JobStateChangedEvent{JobID: rc.Run.JobID, State: state},
	})
}

// Result is the job result recorded while executing steps
func (rc *RunContext) Result() string {
	if rc.jobResult == "" {
		return resultSuccess
	}
	return rc.jobResult
}

func (rc *RunContext) platformImage(ctx context.Context) string {
	job := rc.Run.Job()

	if c := job.Container(); c != nil {
		image, _ := rc.ExprEval.Interpolate(c.Image)
		return image
	}

	if job.RunsOn() == nil {
		common.Logger(ctx).Errorf("'runs-on' key not defined in %s", rc.String())
	}

	for _, runnerLabel := range job.RunsOn() {
		label, _ := rc.ExprEval.Interpolate(runnerLabel)
		image := rc.Config.Platforms[strings.ToLower(label)]
		if image != "" {
			return image
		}
	}

	return ""
}

func (rc *RunContext) isEnabled(ctx context.Context) (bool, error) {
	job := rc.Run.Job()
	l := common.Logger(ctx)
	runJob, err := EvalBool(rc.ExprEval, job.If.Value, defaultStatusCheckSuccess)
	if err != nil {
		return false, fmt.Errorf("  ❌  Error in if-expression: \"if: %s\" (%s)", job.If.Value, err)
	}
	if !runJob {
		l.Debugf("Skipping job '%s' due to '%s'", job.Name, job.If.Value)
		return false, nil
	}

	if job.Type() != model.JobTypeDefault {
		return true, nil
	}

	if !rc.Config.HostMode && rc.platformImage(ctx) == "" {
		for _, label := range job.RunsOn() {
			l.Infof("\U0001F6A7  Skipping unsupported platform -- Try running with `-P %s=<image>`", label)
		}
		return false, nil
	}
	return true, nil
}

func mergeMaps(maps ...map[string]string) map[string]string {
	rtnMap := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			rtnMap[k] = v
		}
	}
	return rtnMap
}

func createSimpleContainerName(parts ...string) string {
	pattern := regexp.MustCompile("[^a-zA-Z0-9-]")
	name := make([]string, 0, len(parts))
	for _, v := range parts {
		v = pattern.ReplaceAllString(v, "-")
		v = strings.Trim(v, "-")
		for strings.Contains(v, "--") {
			v = strings.ReplaceAll(v, "--", "-")
		}
		if v != "" {
			name = append(name, v)
		}
	}
	return strings.Join(name, "_")
}

// getGithubContext synthesizes the `github.*` context for this run
func (rc *RunContext) getGithubContext(ctx context.Context) map[string]interface{} {
	logger := common.Logger(ctx)

	event := map[string]interface{}{}
	if rc.EventJSON != "" {
		if err := json.Unmarshal([]byte(rc.EventJSON), &event); err != nil {
			logger.Errorf("Unable to Unmarshal event '%s': %v", rc.EventJSON, err)
		}
	}

	workspace := rc.Config.Workdir
	eventPath := filepath.Join(rc.hostToolDir, "workflow", "event.json")
	if rc.JobContainer != nil {
		workspace = rc.JobContainer.ToContainerPath(rc.Config.Workdir)
		eventPath = rc.JobContainer.GetToolDir() + "/workflow/event.json"
	}

	ghc := map[string]interface{}{
		"event":             event,
		"event_name":        orDefault(rc.Config.EventName, "workflow_dispatch"),
		"event_path":        eventPath,
		"workflow":          rc.Run.Workflow.Name,
		"run_id":            orDefault(rc.Config.Env["GITHUB_RUN_ID"], "1"),
		"run_number":        orDefault(rc.Config.Env["GITHUB_RUN_NUMBER"], "1"),
		"actor":             orDefault(rc.Config.Actor, "wrkflw"),
		"action":            rc.CurrentStep,
		"action_path":       rc.ActionPath,
		"action_repository": rc.ActionRepository,
		"action_ref":        rc.ActionRef,
		"token":             rc.Config.GetToken(),
		"job":               rc.Run.JobID,
		"repository":        orDefault(rc.Config.Env["GITHUB_REPOSITORY"], "local/repository"),
		"repository_owner":  rc.Config.Env["GITHUB_REPOSITORY_OWNER"],
		"ref":               orDefault(rc.Config.Env["GITHUB_REF"], "refs/heads/"+orDefault(rc.Config.DefaultBranch, "main")),
		"ref_name":          orDefault(rc.Config.Env["GITHUB_REF_NAME"], orDefault(rc.Config.DefaultBranch, "main")),
		"ref_type":          orDefault(rc.Config.Env["GITHUB_REF_TYPE"], "branch"),
		"sha":               rc.Config.Env["GITHUB_SHA"],
		"base_ref":          rc.Config.Env["GITHUB_BASE_REF"],
		"head_ref":          rc.Config.Env["GITHUB_HEAD_REF"],
		"workspace":         workspace,
		"server_url":        "https://" + orDefault(rc.Config.GitHubInstance, "github.com"),
		"api_url":           "https://api." + orDefault(rc.Config.GitHubInstance, "github.com"),
	}
	return ghc
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func (rc *RunContext) getJobContext() map[string]interface{} {
	jobStatus := "success"
	for _, stepStatus := range rc.StepResults {
		if stepStatus.Conclusion == model.StepStatusFailure {
			jobStatus = "failure"
			break
		}
	}
	return map[string]interface{}{
		"status": jobStatus,
	}
}

func (rc *RunContext) getStepsContext() map[string]interface{} {
	steps := map[string]interface{}{}
	for id, result := range rc.StepResults {
		outputs := map[string]interface{}{}
		for k, v := range result.Outputs {
			outputs[k] = v
		}
		steps[id] = map[string]interface{}{
			"outputs":    outputs,
			"conclusion": result.Conclusion.String(),
			"outcome":    result.Outcome.String(),
		}
	}
	return steps
}

func (rc *RunContext) getNeedsContext() map[string]interface{} {
	needs := map[string]interface{}{}
	for _, need := range rc.Run.Job().Needs() {
		needed := rc.Run.Workflow.GetJob(need)
		if needed == nil {
			continue
		}
		outputs := map[string]interface{}{}
		for k, v := range needed.Outputs {
			outputs[k] = v
		}
		needs[need] = map[string]interface{}{
			"result":  needed.Result,
			"outputs": outputs,
		}
	}
	return needs
}

func (rc *RunContext) getStrategyContext() map[string]interface{} {
	failFast := true
	maxParallel := 1
	if s := rc.Run.Job().Strategy; s != nil {
		failFast = s.FailFast
		maxParallel = s.MaxParallel
	}
	return map[string]interface{}{
		"fail-fast":    failFast,
		"max-parallel": maxParallel,
	}
}

// withGithubEnv exports the github context as GITHUB_* variables into
// a step's env.
func (rc *RunContext) withGithubEnv(ctx context.Context, env map[string]string) map[string]string {
	ghc := rc.getGithubContext(ctx)
	env["CI"] = "true"
	env["GITHUB_ACTIONS"] = "true"

	setFrom := func(envKey, ctxKey string) {
		if v, ok := ghc[ctxKey].(string); ok {
			env[envKey] = v
		}
	}
	setFrom("GITHUB_WORKFLOW", "workflow")
	setFrom("GITHUB_RUN_ID", "run_id")
	setFrom("GITHUB_RUN_NUMBER", "run_number")
	setFrom("GITHUB_ACTION", "action")
	setFrom("GITHUB_ACTION_PATH", "action_path")
	setFrom("GITHUB_ACTION_REPOSITORY", "action_repository")
	setFrom("GITHUB_ACTION_REF", "action_ref")
	setFrom("GITHUB_ACTOR", "actor")
	setFrom("GITHUB_REPOSITORY", "repository")
	setFrom("GITHUB_EVENT_NAME", "event_name")
	setFrom("GITHUB_EVENT_PATH", "event_path")
	setFrom("GITHUB_WORKSPACE", "workspace")
	setFrom("GITHUB_SHA", "sha")
	setFrom("GITHUB_REF", "ref")
	setFrom("GITHUB_REF_NAME", "ref_name")
	setFrom("GITHUB_REF_TYPE", "ref_type")
	setFrom("GITHUB_TOKEN", "token")
	setFrom("GITHUB_JOB", "job")
	setFrom("GITHUB_REPOSITORY_OWNER", "repository_owner")
	setFrom("GITHUB_BASE_REF", "base_ref")
	setFrom("GITHUB_HEAD_REF", "head_ref")
	setFrom("GITHUB_SERVER_URL", "server_url")
	setFrom("GITHUB_API_URL", "api_url")

	return env
}
