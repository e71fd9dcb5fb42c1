package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"

	"github.com/bahdotsh/wrkflw/pkg/common"
)

// HostEnvironment runs steps as child processes on the host while
// keeping the same file and variable surface a container step sees.
// Docker-kind actions cannot run here.
type HostEnvironment struct {
	Workdir string
	ToolDir string
	TmpDir  string
	StdOut  io.Writer
	StdErr  io.Writer

	mu           sync.Mutex
	activePgid   int
	lastExitCode int
}

// NewHostEnvironment creates the emulation runtime rooted at the
// given workspace with tool and tmp dirs beside it.
func NewHostEnvironment(workdir, toolDir, tmpDir string, stdout, stderr io.Writer) *HostEnvironment {
	return &HostEnvironment{
		Workdir:      workdir,
		ToolDir:      toolDir,
		TmpDir:       tmpDir,
		StdOut:       stdout,
		StdErr:       stderr,
		lastExitCode: -1,
	}
}

func (e *HostEnvironment) Pull(_ bool) common.Executor {
	return func(ctx context.Context) error {
		return nil
	}
}

func (e *HostEnvironment) Create() common.Executor {
	return func(ctx context.Context) error {
		for _, dir := range []string{e.Workdir, e.ToolDir, e.TmpDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		return nil
	}
}

func (e *HostEnvironment) Start() common.Executor {
	return func(ctx context.Context) error {
		return nil
	}
}

func (e *HostEnvironment) Attach() common.Executor {
	return func(ctx context.Context) error {
		return nil
	}
}

func (e *HostEnvironment) Wait() common.Executor {
	return func(ctx context.Context) error {
		return nil
	}
}

func (e *HostEnvironment) Exec(command []string, env map[string]string, workdir string) common.Executor {
	return func(ctx context.Context) error {
		if len(command) == 0 {
			return newRuntimeError(ErrKindProcessSpawn, errors.New("empty command"))
		}
		logger := common.Logger(ctx)

		wd := e.Workdir
		if workdir != "" {
			if filepath.IsAbs(workdir) {
				wd = workdir
			} else {
				wd = filepath.Join(e.Workdir, workdir)
			}
		}

		envList := make([]string, 0, len(env))
		for k, v := range env {
			envList = append(envList, fmt.Sprintf("%s=%s", k, v))
		}

		cmd := exec.Command(command[0], command[1:]...)
		cmd.Dir = wd
		cmd.Env = envList

		interactive := e.StdOut != nil && term.IsTerminal(int(os.Stdout.Fd()))
		var err error
		if interactive {
			err = e.runWithPty(ctx, cmd)
		} else {
			cmd.Stdout = e.stdout()
			cmd.Stderr = e.stderr()
			cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
			err = e.runAndReap(ctx, cmd)
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			e.lastExitCode = exitErr.ExitCode()
			return &ExitError{StatusCode: int64(exitErr.ExitCode())}
		}
		if err != nil {
			logger.Debugf("failed to spawn %q: %v", command[0], err)
			return newRuntimeError(ErrKindProcessSpawn, err)
		}
		e.lastExitCode = 0
		return nil
	}
}

func (e *HostEnvironment) runWithPty(ctx context.Context, cmd *exec.Cmd) error {
	ptm, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	defer ptm.Close()
	e.trackProcess(cmd)
	defer e.untrackProcess()

	go func() {
		// pty read errors just mean the child closed its end
		_, _ = io.Copy(e.stdout(), ptm)
	}()

	return e.waitOrKill(ctx, cmd)
}

func (e *HostEnvironment) runAndReap(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	e.trackProcess(cmd)
	defer e.untrackProcess()
	return e.waitOrKill(ctx, cmd)
}

func (e *HostEnvironment) waitOrKill(ctx context.Context, cmd *exec.Cmd) error {
	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		e.Kill()(context.Background())
		<-done
		return ctx.Err()
	}
}

func (e *HostEnvironment) trackProcess(cmd *exec.Cmd) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cmd.Process != nil {
		e.activePgid = cmd.Process.Pid
	}
}

func (e *HostEnvironment) untrackProcess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activePgid = 0
}

// Kill terminates the in-flight child process group, best-effort
func (e *HostEnvironment) Kill() common.Executor {
	return func(ctx context.Context) error {
		e.mu.Lock()
		pgid := e.activePgid
		e.mu.Unlock()
		if pgid == 0 {
			return nil
		}
		return syscall.Kill(-pgid, syscall.SIGKILL)
	}
}

func (e *HostEnvironment) Copy(destPath string, files ...*FileEntry) common.Executor {
	return func(ctx context.Context) error {
		for _, f := range files {
			target := filepath.Join(destPath, f.Name)
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(target, []byte(f.Body), os.FileMode(f.Mode).Perm()); err != nil {
				return err
			}
		}
		return nil
	}
}

func (e *HostEnvironment) CopyDir(destPath string, srcPath string, useGitIgnore bool) common.Executor {
	return func(ctx context.Context) error {
		common.Logger(ctx).Debugf("Copying %s to %s", srcPath, destPath)
		return CopyDirOnHost(destPath, srcPath, useGitIgnore)
	}
}

func (e *HostEnvironment) GetContainerArchive(ctx context.Context, srcPath string) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(tarDir(srcPath, nil, pw))
	}()
	return pr, nil
}

func (e *HostEnvironment) UpdateFromEnv(srcPath string, env *map[string]string) common.Executor {
	return func(ctx context.Context) error {
		content, err := os.ReadFile(srcPath)
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

// Remove deletes the per-run tool and tmp dirs. The workspace is only
// removed when the runtime created it as a temp dir.
func (e *HostEnvironment) Remove() common.Executor {
	return func(ctx context.Context) error {
		for _, dir := range []string{e.ToolDir, e.TmpDir} {
			if dir == "" {
				continue
			}
			if err := os.RemoveAll(dir); err != nil {
				common.Logger(ctx).Debugf("removing %s: %v", dir, err)
			}
		}
		return nil
	}
}

func (e *HostEnvironment) Close() common.Executor {
	return func(ctx context.Context) error {
		return nil
	}
}

func (e *HostEnvironment) ToContainerPath(path string) string {
	return path
}

func (e *HostEnvironment) GetToolDir() string {
	return e.ToolDir
}

func (e *HostEnvironment) GetPathVariableName() string {
	return "PATH"
}

func (e *HostEnvironment) DefaultPathVariable() string {
	return os.Getenv("PATH")
}

func (e *HostEnvironment) JoinPathVariable(paths ...string) string {
	return strings.Join(paths, string(os.PathListSeparator))
}

func (e *HostEnvironment) GetRunnerContext(ctx context.Context) map[string]interface{} {
	osName := "Linux"
	switch runtime.GOOS {
	case "darwin":
		osName = "macOS"
	case "windows":
		osName = "Windows"
	}
	return map[string]interface{}{
		"os":         osName,
		"arch":       RunnerArch(),
		"temp":       e.TmpDir,
		"tool_cache": filepath.Join(e.TmpDir, "tool_cache"),
	}
}

func (e *HostEnvironment) ID() string {
	return ""
}

func (e *HostEnvironment) SetHostToolDir(dir string) {
	e.ToolDir = dir
}

func (e *HostEnvironment) GetLastExitCode() int {
	return e.lastExitCode
}

func (e *HostEnvironment) stdout() io.Writer {
	if e.StdOut != nil {
		return e.StdOut
	}
	return io.Discard
}

func (e *HostEnvironment) stderr() io.Writer {
	if e.StdErr != nil {
		return e.StdErr
	}
	return io.Discard
}
