package container

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/bahdotsh/wrkflw/pkg/common"
)

const logPrefix = "  \U0001F433  "

// ToolDirPath is where the runner's workspace-adjacent files (scripts,
// environment files, event payload) appear inside a container.
const ToolDirPath = "/var/run/wrkflw"

// NewContainer creates a reference to a container
func NewContainer(input *NewContainerInput) ExecutionsEnvironment {
	cr := new(containerReference)
	cr.input = input
	cr.lastExitCode = -1
	return cr
}

type containerReference struct {
	cli          client.APIClient
	id           string
	input        *NewContainerInput
	hostToolDir  string
	portBindings nat.PortMap
	lastExitCode int
}

// SetHostToolDir wires the host directory that is bind-mounted at
// ToolDirPath, so environment files can be read host-side.
func (cr *containerReference) SetHostToolDir(dir string) {
	cr.hostToolDir = dir
}

func (cr *containerReference) connect() common.Executor {
	return func(ctx context.Context) error {
		if cr.cli != nil {
			return nil
		}
		cli, err := GetDockerClient(ctx)
		if err != nil {
			return err
		}
		cr.cli = cli
		return nil
	}
}

func (cr *containerReference) Close() common.Executor {
	return func(ctx context.Context) error {
		if cr.cli != nil {
			err := cr.cli.Close()
			cr.cli = nil
			if err != nil {
				return fmt.Errorf("failed to close client: %w", err)
			}
		}
		return nil
	}
}

func (cr *containerReference) Pull(forcePull bool) common.Executor {
	return common.NewInfoExecutor("%spull image=%s platform=%s", logPrefix, cr.input.Image, cr.input.Platform).
		Then(NewDockerPullExecutor(NewDockerPullExecutorInput{
			Image:     cr.input.Image,
			ForcePull: forcePull,
			Platform:  cr.input.Platform,
			Username:  cr.input.Username,
			Password:  cr.input.Password,
		}))
}

func (cr *containerReference) Create() common.Executor {
	return cr.connect().
		Then(common.NewDebugExecutor("%screate image=%s entrypoint=%+q cmd=%+q", logPrefix, cr.input.Image, cr.input.Entrypoint, cr.input.Cmd)).
		Then(cr.create())
}

func (cr *containerReference) create() common.Executor {
	return func(ctx context.Context) error {
		if cr.id != "" {
			return nil
		}
		logger := common.Logger(ctx)
		input := cr.input

		config := &container.Config{
			Image:      input.Image,
			WorkingDir: input.WorkingDir,
			Env:        input.Env,
			Tty:        false,
		}
		if len(input.Cmd) != 0 {
			config.Cmd = input.Cmd
		}
		if len(input.Entrypoint) != 0 {
			config.Entrypoint = input.Entrypoint
		}
		if len(input.Ports) > 0 {
			exposed, bindings, err := nat.ParsePortSpecs(input.Ports)
			if err != nil {
				return newRuntimeError(ErrKindContainerCreate, fmt.Errorf("failed to parse port specs %v: %w", input.Ports, err))
			}
			config.ExposedPorts = exposed
			cr.portBindings = bindings
		}

		mounts := make([]mount.Mount, 0, len(input.Mounts))
		for vol, target := range input.Mounts {
			mounts = append(mounts, mount.Mount{
				Type:   mount.TypeVolume,
				Source: vol,
				Target: target,
			})
		}

		var platform *specs.Platform
		if input.Platform != "" {
			parts := strings.SplitN(input.Platform, "/", 2)
			if len(parts) == 2 {
				platform = &specs.Platform{OS: parts[0], Architecture: parts[1]}
			}
		}

		hostConfig := &container.HostConfig{
			Binds:        input.Binds,
			Mounts:       mounts,
			NetworkMode:  container.NetworkMode(input.NetworkMode),
			PortBindings: cr.portBindings,
			AutoRemove:   false,
		}

		var networkingConfig *network.NetworkingConfig
		if input.NetworkMode != "" && len(input.NetworkAliases) > 0 {
			networkingConfig = &network.NetworkingConfig{
				EndpointsConfig: map[string]*network.EndpointSettings{
					input.NetworkMode: {
						Aliases: input.NetworkAliases,
					},
				},
			}
		}

		resp, err := cr.cli.ContainerCreate(ctx, config, hostConfig, networkingConfig, platform, input.Name)
		if err != nil {
			return newRuntimeError(ErrKindContainerCreate, fmt.Errorf("failed to create container: %w", err))
		}
		logger.Debugf("Created container name=%s id=%v from image %v (platform: %s)", input.Name, resp.ID, input.Image, input.Platform)
		cr.id = resp.ID
		return nil
	}
}

func (cr *containerReference) Start() common.Executor {
	return cr.connect().
		Then(common.NewInfoExecutor("%sdocker run image=%s entrypoint=%+q cmd=%+q", logPrefix, cr.input.Image, cr.input.Entrypoint, cr.input.Cmd)).
		Then(func(ctx context.Context) error {
			logger := common.Logger(ctx)
			if err := cr.cli.ContainerStart(ctx, cr.id, container.StartOptions{}); err != nil {
				return newRuntimeError(ErrKindContainerExecStartFailed, fmt.Errorf("failed to start container: %w", err))
			}
			logger.Debugf("Started container: %v", cr.id)
			return nil
		})
}

// Attach streams the container's combined output through the
// configured writers until it stops.
func (cr *containerReference) Attach() common.Executor {
	return func(ctx context.Context) error {
		out, err := cr.cli.ContainerAttach(ctx, cr.id, container.AttachOptions{
			Stream: true,
			Stdout: true,
			Stderr: true,
		})
		if err != nil {
			return fmt.Errorf("failed to attach to container: %w", err)
		}
		go func() {
			_, err := stdcopy.StdCopy(cr.stdout(), cr.stderr(), out.Reader)
			if err != nil && !errors.Is(err, io.EOF) {
				common.Logger(ctx).Debugf("redirecting container output: %v", err)
			}
		}()
		return nil
	}
}

// Wait blocks until the container stops and maps a non-zero exit code
// to an ExitError.
func (cr *containerReference) Wait() common.Executor {
	return func(ctx context.Context) error {
		statusCh, errCh := cr.cli.ContainerWait(ctx, cr.id, container.WaitConditionNotRunning)
		var statusCode int64
		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("failed to wait for container: %w", err)
			}
		case status := <-statusCh:
			statusCode = status.StatusCode
		}

		cr.lastExitCode = int(statusCode)
		common.Logger(ctx).Debugf("Return status: %v", statusCode)

		if statusCode == 0 {
			return nil
		}
		return &ExitError{StatusCode: statusCode}
	}
}

func (cr *containerReference) Exec(command []string, env map[string]string, workdir string) common.Executor {
	return cr.connect().
		Then(common.NewDebugExecutor("%sdocker exec cmd=[%s]", logPrefix, strings.Join(command, " "))).
		Then(cr.exec(command, env, workdir))
}

func (cr *containerReference) exec(cmd []string, env map[string]string, workdir string) common.Executor {
	return func(ctx context.Context) error {
		logger := common.Logger(ctx)

		wd := cr.input.WorkingDir
		if workdir != "" {
			if filepath.IsAbs(workdir) {
				wd = workdir
			} else {
				wd = filepath.Join(cr.input.WorkingDir, workdir)
			}
		}

		envList := make([]string, 0, len(env))
		for k, v := range env {
			envList = append(envList, fmt.Sprintf("%s=%s", k, v))
		}

		idResp, err := cr.cli.ContainerExecCreate(ctx, cr.id, types.ExecConfig{
			Cmd:          cmd,
			WorkingDir:   wd,
			Env:          envList,
			AttachStdout: true,
			AttachStderr: true,
		})
		if err != nil {
			return newRuntimeError(ErrKindContainerExecStartFailed, fmt.Errorf("failed to create exec: %w", err))
		}

		resp, err := cr.cli.ContainerExecAttach(ctx, idResp.ID, types.ExecStartCheck{Tty: false})
		if err != nil {
			return newRuntimeError(ErrKindContainerExecStartFailed, fmt.Errorf("failed to attach to exec: %w", err))
		}
		defer resp.Close()

		if _, err = stdcopy.StdCopy(cr.stdout(), cr.stderr(), resp.Reader); err != nil {
			logger.Errorf("redirecting exec output: %v", err)
		}

		inspectResp, err := cr.cli.ContainerExecInspect(ctx, idResp.ID)
		if err != nil {
			return fmt.Errorf("failed to inspect exec: %w", err)
		}

		cr.lastExitCode = inspectResp.ExitCode
		switch inspectResp.ExitCode {
		case 0:
			return nil
		default:
			return &ExitError{StatusCode: int64(inspectResp.ExitCode)}
		}
	}
}

func (cr *containerReference) Copy(destPath string, files ...*FileEntry) common.Executor {
	return cr.connect().Then(func(ctx context.Context) error {
		var buf bytes.Buffer
		tw := tar.NewWriter(&buf)
		for _, file := range files {
			common.Logger(ctx).Debugf("Writing entry to tarball %s len:%d", file.Name, len(file.Body))
			if err := tw.WriteHeader(&tar.Header{
				Name: file.Name,
				Mode: file.Mode,
				Size: int64(len(file.Body)),
			}); err != nil {
				return err
			}
			if _, err := tw.Write([]byte(file.Body)); err != nil {
				return err
			}
		}
		if err := tw.Close(); err != nil {
			return err
		}
		return cr.cli.CopyToContainer(ctx, cr.id, destPath, &buf, types.CopyToContainerOptions{})
	})
}

// CopyDir streams a host directory into the container, optionally
// filtering through the directory's .gitignore.
func (cr *containerReference) CopyDir(destPath string, srcPath string, useGitIgnore bool) common.Executor {
	return cr.connect().Then(func(ctx context.Context) error {
		logger := common.Logger(ctx)
		logger.Debugf("%sdocker cp src=%s dst=%s", logPrefix, srcPath, destPath)

		var ignorer *gitignore.GitIgnore
		if useGitIgnore {
			if ig, err := gitignore.CompileIgnoreFile(filepath.Join(srcPath, ".gitignore")); err == nil {
				ignorer = ig
			}
		}

		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(tarDir(srcPath, ignorer, pw))
		}()
		defer pr.Close()

		return cr.cli.CopyToContainer(ctx, cr.id, destPath, pr, types.CopyToContainerOptions{})
	})
}

func (cr *containerReference) GetContainerArchive(ctx context.Context, srcPath string) (io.ReadCloser, error) {
	if err := cr.connect()(ctx); err != nil {
		return nil, err
	}
	a, _, err := cr.cli.CopyFromContainer(ctx, cr.id, srcPath)
	return a, err
}

// UpdateFromEnv parses an environment file written by a step. The tool
// dir is bind-mounted, so the file is read host-side.
func (cr *containerReference) UpdateFromEnv(srcPath string, env *map[string]string) common.Executor {
	return func(ctx context.Context) error {
		hostPath := cr.hostPathFor(srcPath)
		content, err := os.ReadFile(hostPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		parsed, err := ParseEnvFile(string(content))
		if err != nil {
			return err
		}
		for k, v := range parsed {
			(*env)[k] = v
		}
		return nil
	}
}

func (cr *containerReference) hostPathFor(containerPath string) string {
	if cr.hostToolDir != "" && strings.HasPrefix(containerPath, ToolDirPath) {
		return filepath.Join(cr.hostToolDir, strings.TrimPrefix(containerPath, ToolDirPath))
	}
	return containerPath
}

func (cr *containerReference) Remove() common.Executor {
	return cr.connect().Then(func(ctx context.Context) error {
		if cr.id == "" {
			return nil
		}
		err := cr.cli.ContainerRemove(ctx, cr.id, container.RemoveOptions{
			RemoveVolumes: true,
			Force:         true,
		})
		if err != nil {
			common.Logger(ctx).Errorf("%v", err)
		}
		common.Logger(ctx).Debugf("Removed container: %v", cr.id)
		cr.id = ""
		return nil
	})
}

// Kill asks the daemon to stop the container immediately, used on
// cancellation before the forced remove.
func (cr *containerReference) Kill() common.Executor {
	return cr.connect().Then(func(ctx context.Context) error {
		if cr.id == "" {
			return nil
		}
		return cr.cli.ContainerKill(ctx, cr.id, "SIGKILL")
	})
}

func (cr *containerReference) ID() string {
	return cr.id
}

func (cr *containerReference) GetLastExitCode() int {
	return cr.lastExitCode
}

func (cr *containerReference) stdout() io.Writer {
	if cr.input.Stdout != nil {
		return cr.input.Stdout
	}
	return io.Discard
}

func (cr *containerReference) stderr() io.Writer {
	if cr.input.Stderr != nil {
		return cr.input.Stderr
	}
	return io.Discard
}

func (cr *containerReference) ToContainerPath(path string) string {
	// the workspace is mounted at a fixed location
	return "/github/workspace"
}

func (cr *containerReference) GetToolDir() string {
	return ToolDirPath
}

func (cr *containerReference) GetPathVariableName() string {
	return "PATH"
}

func (cr *containerReference) DefaultPathVariable() string {
	return "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
}

func (cr *containerReference) JoinPathVariable(paths ...string) string {
	return strings.Join(paths, ":")
}

func (cr *containerReference) GetRunnerContext(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"os":         "Linux",
		"arch":       RunnerArch(),
		"temp":       "/tmp",
		"tool_cache": "/opt/hostedtoolcache",
	}
}

// RunnerArch maps GOARCH to the runner context vocabulary
func RunnerArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "X64"
	case "386":
		return "X86"
	case "arm":
		return "ARM"
	case "arm64":
		return "ARM64"
	}
	return runtime.GOARCH
}
