package container

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	cliconfig "github.com/docker/cli/cli/config"
	"github.com/docker/docker/api/types/registry"

	"github.com/bahdotsh/wrkflw/pkg/common"
)

// LoadDockerAuthConfig resolves registry credentials for an image from
// the user's docker CLI configuration.
func LoadDockerAuthConfig(ctx context.Context, image string) (registry.AuthConfig, error) {
	logger := common.Logger(ctx)
	config, err := cliconfig.Load(cliconfig.Dir())
	if err != nil {
		logger.Warnf("Could not load docker config: %v", err)
		return registry.AuthConfig{}, err
	}

	if !config.ContainsAuth() {
		config.CredentialsStore = cliconfig.DetectDefaultStore(config.CredentialsStore)
	}

	hostName := "index.docker.io"
	index := strings.IndexRune(image, '/')
	if index > -1 && (strings.ContainsAny(image[:index], ".:") || image[:index] == "localhost") {
		hostName = image[:index]
	}

	authConfig, err := config.GetAuthConfig(hostName)
	if err != nil {
		logger.Warnf("Could not get auth config from docker config: %v", err)
		return registry.AuthConfig{}, err
	}

	return registry.AuthConfig(authConfig), nil
}

// encodeAuthToBase64 serializes the auth configuration as JSON base64
// payload for the X-Registry-Auth header.
func encodeAuthToBase64(authConfig registry.AuthConfig) (string, error) {
	buf, err := json.Marshal(authConfig)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

func registryAuth(username, password string) registry.AuthConfig {
	return registry.AuthConfig{
		Username: username,
		Password: password,
	}
}
