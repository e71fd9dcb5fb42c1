package runner

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/bahdotsh/wrkflw/pkg/common"
	"github.com/bahdotsh/wrkflw/pkg/container"
)

// newStepContainerExec runs one throwaway container for a step: pull,
// create, start, stream output, wait, forced remove. Used for
// docker:// steps, Docker actions and JavaScript actions under the
// container runtime.
func (rc *RunContext) newStepContainerExec(image string, entrypoint, cmd []string, env map[string]string, workdir string) common.Executor {
	return func(ctx context.Context) error {
		logWriter := rc.maskedLogWriter(ctx, "stdout")
		errWriter := rc.maskedLogWriter(ctx, "stderr")

		envList := make([]string, 0, len(env))
		for k, v := range env {
			envList = append(envList, fmt.Sprintf("%s=%s", k, v))
		}
		binds, _ := rc.GetBindsAndMounts()

		suffix := make([]byte, 4)
		_, _ = rand.Read(suffix)
		name := createSimpleContainerName(rc.jobContainerName(), "STEP", hex.EncodeToString(suffix))

		if workdir == "" {
			workdir = "/github/workspace"
		}

		stepContainer := container.NewContainer(&container.NewContainerInput{
			Cmd:         cmd,
			Entrypoint:  entrypoint,
			WorkingDir:  workdir,
			Image:       image,
			Name:        name,
			Env:         envList,
			Binds:       binds,
			NetworkMode: rc.networkName,
			Stdout:      logWriter,
			Stderr:      errWriter,
			Platform:    rc.Config.ContainerArchitecture,
		})
		stepContainer.SetHostToolDir(rc.hostToolDir)

		var handle *common.CleanupHandle
		if rc.Config.Cleanup != nil {
			handle = rc.Config.Cleanup.Register(common.ResourceContainer, name, func(ctx context.Context) error {
				return stepContainer.Remove()(ctx)
			})
		}

		err := common.NewPipelineExecutor(
			stepContainer.Pull(rc.Config.ForcePull),
			stepContainer.Create(),
			stepContainer.Attach(),
			stepContainer.Start(),
			stepContainer.Wait(),
		)(ctx)

		removeErr := stepContainer.Remove().Finally(stepContainer.Close())(ctx)
		if handle != nil {
			handle.Remove()
		}
		if err != nil {
			return err
		}
		return removeErr
	}
}
