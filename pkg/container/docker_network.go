package container

import (
	"context"

	"github.com/docker/docker/api/types"

	"github.com/bahdotsh/wrkflw/pkg/common"
)

// NewDockerNetworkCreateExecutor creates the per-run bridge network
// steps share so they can reach sibling services.
func NewDockerNetworkCreateExecutor(name string) common.Executor {
	return func(ctx context.Context) error {
		cli, err := GetDockerClient(ctx)
		if err != nil {
			return err
		}
		defer cli.Close()

		// an earlier interrupted run may have left the network behind
		networks, err := cli.NetworkList(ctx, types.NetworkListOptions{})
		if err != nil {
			return err
		}
		for _, network := range networks {
			if network.Name == name {
				common.Logger(ctx).Debugf("Network %v exists", name)
				return nil
			}
		}

		_, err = cli.NetworkCreate(ctx, name, types.NetworkCreate{
			Driver: "bridge",
			Scope:  "local",
		})
		return err
	}
}

// NewDockerNetworkRemoveExecutor removes the per-run network
func NewDockerNetworkRemoveExecutor(name string) common.Executor {
	return func(ctx context.Context) error {
		cli, err := GetDockerClient(ctx)
		if err != nil {
			return err
		}
		defer cli.Close()

		if err := cli.NetworkRemove(ctx, name); err != nil {
			common.Logger(ctx).Debugf("Removing network %s: %v", name, err)
		}
		return nil
	}
}
