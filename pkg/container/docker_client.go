package container

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver"
	"github.com/docker/docker/client"

	"github.com/bahdotsh/wrkflw/pkg/common"
)

// minDaemonAPIVersion is the oldest daemon API this runner drives. The
// env-file extraction relies on bind-mount behavior stable since then.
const minDaemonAPIVersion = "1.41"

// GetDockerClient returns a client session for the configured daemon
func GetDockerClient(ctx context.Context) (client.APIClient, error) {
	dockerHost, found := socketLocation()
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if found {
		opts = append(opts, client.WithHost(dockerHost))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to docker daemon: %w", err)
	}
	return cli, nil
}

// CheckDaemonVersion verifies the daemon speaks a recent enough API
func CheckDaemonVersion() common.Executor {
	return func(ctx context.Context) error {
		cli, err := GetDockerClient(ctx)
		if err != nil {
			return err
		}
		defer cli.Close()

		version, err := cli.ServerVersion(ctx)
		if err != nil {
			return fmt.Errorf("failed to query daemon version: %w", err)
		}
		have, err := semver.NewVersion(version.APIVersion)
		if err != nil {
			common.Logger(ctx).Debugf("unparseable daemon API version %q: %v", version.APIVersion, err)
			return nil
		}
		constraint, err := semver.NewConstraint(">= " + minDaemonAPIVersion)
		if err != nil {
			return err
		}
		if !constraint.Check(have) {
			return fmt.Errorf("docker daemon API version %s is older than the minimum supported %s", version.APIVersion, minDaemonAPIVersion)
		}
		return nil
	}
}

// GetHostNCPU returns the number of CPUs the daemon schedules onto,
// used to derive default job parallelism.
func GetHostNCPU(ctx context.Context) (int, error) {
	cli, err := GetDockerClient(ctx)
	if err != nil {
		return 0, err
	}
	defer cli.Close()
	info, err := cli.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.NCPU, nil
}
