package container

import (
	"context"
	"io"

	"github.com/bahdotsh/wrkflw/pkg/common"
)

// NewContainerInput the input for the New function
type NewContainerInput struct {
	Image          string
	Username       string
	Password       string
	Entrypoint     []string
	Cmd            []string
	WorkingDir     string
	Env            []string
	Binds          []string
	Mounts         map[string]string
	Ports          []string
	Name           string
	Stdout         io.Writer
	Stderr         io.Writer
	NetworkMode    string
	NetworkAliases []string
	Platform       string
	AutoRemove     bool
}

// FileEntry is a file to copy to a container
type FileEntry struct {
	Name string
	Mode int64
	Body string
}

// Container is the execution contract both runtimes implement
type Container interface {
	Pull(forcePull bool) common.Executor
	Create() common.Executor
	Start() common.Executor
	Attach() common.Executor
	Wait() common.Executor
	Exec(command []string, env map[string]string, workdir string) common.Executor
	Copy(destPath string, files ...*FileEntry) common.Executor
	CopyDir(destPath string, srcPath string, useGitIgnore bool) common.Executor
	GetContainerArchive(ctx context.Context, srcPath string) (io.ReadCloser, error)
	UpdateFromEnv(srcPath string, env *map[string]string) common.Executor
	Kill() common.Executor
	Remove() common.Executor
	Close() common.Executor
}

// ExecutionsEnvironment extends Container with the path conventions a
// step sees inside the runtime.
type ExecutionsEnvironment interface {
	Container
	ToContainerPath(path string) string
	GetToolDir() string
	GetPathVariableName() string
	DefaultPathVariable() string
	JoinPathVariable(paths ...string) string
	GetRunnerContext(ctx context.Context) map[string]interface{}
	// ID of the live container, empty for the host runtime
	ID() string
	// SetHostToolDir wires the host directory backing GetToolDir
	SetHostToolDir(dir string)
	// GetLastExitCode is the exit code of the last Exec or Wait; -1
	// before anything finished
	GetLastExitCode() int
}
