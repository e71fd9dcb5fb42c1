package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bahdotsh/wrkflw/pkg/common"
	"github.com/bahdotsh/wrkflw/pkg/model"
	"github.com/bahdotsh/wrkflw/pkg/runner"
)

// exit codes of a non-interactive run
const (
	exitOK          = 0
	exitJobFailed   = 1
	exitInvalid     = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

type rootFlags struct {
	workflowPath string
	workdir      string
	jobID        string
	platforms    []string
	envFile      string
	secretFile   string
	envs         []string
	inputs       []string
	emulate      bool
	jsonLogger   bool
	verbose      bool
	forcePull    bool
	parallelism  int
	noGitIgnore  bool
	daemonSocket string
}

func run() int {
	flags := new(rootFlags)
	exitCode := exitOK

	rootCmd := &cobra.Command{
		Use:          "wrkflw [path to workflow file or directory]",
		Short:        "Run GitHub Actions workflows locally",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				flags.workflowPath = args[0]
			}
			exitCode = runWorkflows(cmd.Flags(), flags)
			if exitCode != exitOK {
				return fmt.Errorf("exit %d", exitCode)
			}
			return nil
		},
	}

	f := rootCmd.Flags()
	f.StringVarP(&flags.workflowPath, "workflows", "W", "./.github/workflows/", "path to workflow file or directory")
	f.StringVarP(&flags.workdir, "directory", "C", ".", "working directory")
	f.StringVarP(&flags.jobID, "job", "j", "", "run a single job and its dependencies")
	f.StringArrayVarP(&flags.platforms, "platform", "P", nil, "custom image to use per platform, e.g. -P ubuntu-latest=node:16-bullseye-slim")
	f.StringVar(&flags.envFile, "env-file", "", "environment file to read, in .env format")
	f.StringVar(&flags.secretFile, "secret-file", "", "secrets file to read, in .env format")
	f.StringArrayVar(&flags.envs, "env", nil, "env to make available to steps, e.g. --env FOO=bar")
	f.StringArrayVar(&flags.inputs, "input", nil, "workflow_dispatch input, e.g. --input foo=bar")
	f.BoolVar(&flags.emulate, "emulate", false, "run steps on the host instead of in containers")
	f.BoolVar(&flags.jsonLogger, "json", false, "log in JSON format")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")
	f.BoolVar(&flags.forcePull, "pull", false, "pull images even if already present")
	f.IntVar(&flags.parallelism, "parallelism", 0, "max jobs running at once; 0 derives from CPU count")
	f.BoolVar(&flags.noGitIgnore, "no-gitignore", false, "copy .gitignore'd files into the workspace too")
	f.StringVar(&flags.daemonSocket, "container-daemon-socket", "", "daemon socket to mount into job containers, or - to disable")

	if err := rootCmd.Execute(); err != nil && exitCode == exitOK {
		exitCode = exitInvalid
	}
	return exitCode
}

func runWorkflows(_ *pflag.FlagSet, flags *rootFlags) int {
	if flags.verbose {
		log.SetLevel(log.DebugLevel)
	}
	if flags.jsonLogger {
		log.SetFormatter(&log.JSONFormatter{})
	}

	files, err := model.CollectWorkflowFiles(flags.workflowPath)
	if err != nil {
		log.Errorf("%v", err)
		return exitInvalid
	}

	config, err := newRunnerConfig(flags)
	if err != nil {
		log.Errorf("%v", err)
		return exitInvalid
	}

	registry := config.Cleanup
	ctx, stop := common.WithSignalHandler(context.Background(), registry)
	defer stop()

	sink := common.NewChannelSink(256, func(ev common.Event) {
		switch {
		case ev.JobStateChanged != nil:
			log.Debugf("job %s -> %s", ev.JobStateChanged.JobID, ev.JobStateChanged.State)
		case ev.StepStateChanged != nil:
			log.Debugf("job %s step %d -> %s", ev.StepStateChanged.JobID, ev.StepStateChanged.Index, ev.StepStateChanged.State)
		}
	})
	defer sink.Close()
	ctx = common.WithEventSink(ctx, sink)

	exitCode := exitOK
	for _, file := range files {
		sink.Send(common.Event{WorkflowStarted: &common.WorkflowStartedEvent{Path: file}})

		code := runOneWorkflow(ctx, config, file, flags.jobID)
		if code > exitCode {
			exitCode = code
		}
		if ctx.Err() != nil {
			exitCode = exitInterrupted
			break
		}
	}

	registry.Drain(ctx)
	if ctx.Err() != nil {
		return exitInterrupted
	}
	return exitCode
}

func runOneWorkflow(ctx context.Context, config *runner.Config, file string, jobID string) int {
	workflow, err := model.ReadWorkflowFile(file)
	if err != nil {
		log.Errorf("%v", err)
		return exitInvalid
	}

	src, _ := os.ReadFile(file)
	problems := model.Validate(workflow, src)
	for _, p := range problems {
		if p.Severity == model.SeverityError {
			log.Errorf("%s", p)
		} else {
			log.Warnf("%s", p)
		}
	}
	if model.HasErrors(problems) {
		return exitInvalid
	}

	// declared workflow_dispatch defaults fill in unsupplied inputs
	for name, input := range workflow.WorkflowDispatchInputs() {
		if _, ok := config.Inputs[name]; !ok && input.Default != "" {
			config.Inputs[name] = input.Default
		}
	}

	var plan *model.Plan
	if jobID != "" {
		plan, err = workflow.NewPlan(jobID)
	} else {
		plan, err = workflow.NewPlan()
	}
	if err != nil {
		log.Errorf("%v", err)
		return exitInvalid
	}

	r, err := runner.New(config)
	if err != nil {
		log.Errorf("%v", err)
		return exitInvalid
	}

	err = r.NewPlanExecutor(plan)(ctx)
	sink := common.EventSinkFromContext(ctx)
	switch {
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		sink.Send(common.Event{WorkflowFinished: &common.WorkflowFinishedEvent{Summary: "cancelled"}})
		return exitInterrupted
	case err != nil:
		log.Errorf("%v", err)
		sink.Send(common.Event{WorkflowFinished: &common.WorkflowFinishedEvent{Summary: err.Error()}})
		return exitJobFailed
	default:
		sink.Send(common.Event{WorkflowFinished: &common.WorkflowFinishedEvent{Summary: "all jobs succeeded"}})
		return exitOK
	}
}

func newRunnerConfig(flags *rootFlags) (*runner.Config, error) {
	workdir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if flags.workdir != "" && flags.workdir != "." {
		workdir = flags.workdir
	}

	env := map[string]string{}
	if flags.envFile != "" {
		fileEnv, err := godotenv.Read(flags.envFile)
		if err != nil {
			return nil, fmt.Errorf("reading env file: %w", err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}
	for _, kv := range flags.envs {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}

	secrets := map[string]string{}
	if flags.secretFile != "" {
		fileSecrets, err := godotenv.Read(flags.secretFile)
		if err != nil {
			return nil, fmt.Errorf("reading secret file: %w", err)
		}
		for k, v := range fileSecrets {
			secrets[k] = v
		}
	}

	inputs := map[string]string{}
	for _, kv := range flags.inputs {
		k, v, _ := strings.Cut(kv, "=")
		inputs[k] = v
	}

	platforms := map[string]string{
		"ubuntu-latest": "node:16-bullseye-slim",
		"ubuntu-24.04":  "node:20-bookworm-slim",
		"ubuntu-22.04":  "node:16-bullseye-slim",
		"ubuntu-20.04":  "node:16-bullseye-slim",
	}
	for _, p := range flags.platforms {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid platform mapping %q, expected label=image", p)
		}
		platforms[strings.ToLower(k)] = v
	}

	return &runner.Config{
		Workdir:               workdir,
		BindWorkdir:           true,
		EventName:             "workflow_dispatch",
		Env:                   env,
		Secrets:               secrets,
		Inputs:                inputs,
		Platforms:             platforms,
		UseGitIgnore:          !flags.noGitIgnore,
		HostMode:              flags.emulate,
		JSONLogger:            flags.jsonLogger,
		ContainerDaemonSocket: flags.daemonSocket,
		LogOutput:             true,
		ForcePull:             flags.forcePull,
		Parallelism:           flags.parallelism,
		Cleanup:               common.NewCleanupRegistry(),
	}, nil
}
