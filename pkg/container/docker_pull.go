package container

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/image"

	"github.com/bahdotsh/wrkflw/pkg/common"
)

// NewDockerPullExecutorInput the input for the NewDockerPullExecutor function
type NewDockerPullExecutorInput struct {
	Image     string
	ForcePull bool
	Platform  string
	Username  string
	Password  string
}

const (
	// one attempt plus three retries, waiting 1s, 2s and 4s between them
	pullAttempts = 4
	pullBackoff  = time.Second
)

// NewDockerPullExecutor ensures the image is present locally, pulling
// it with retries and exponential backoff when it is not.
func NewDockerPullExecutor(input NewDockerPullExecutorInput) common.Executor {
	return func(ctx context.Context) error {
		logger := common.Logger(ctx)
		logger.Debugf("%sdocker pull %v", logPrefix, input.Image)

		pullImage := input.Image
		imageIsLocal := strings.HasPrefix(pullImage, "sha256:")

		if !imageIsLocal && !input.ForcePull {
			exists, err := ImageExistsLocally(ctx, pullImage, input.Platform)
			if err != nil {
				return err
			}
			if exists {
				logger.Debugf("Image exists? %v", exists)
				return nil
			}
		}
		if imageIsLocal {
			return nil
		}

		cli, err := GetDockerClient(ctx)
		if err != nil {
			return err
		}
		defer cli.Close()

		imageRef := cleanImage(ctx, pullImage)
		logger.Debugf("pulling image '%v' (%s)", imageRef, input.Platform)

		pullOptions, err := getImagePullOptions(ctx, input)
		if err != nil {
			return err
		}

		backoff := pullBackoff
		var lastErr error
		for attempt := 1; attempt <= pullAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			reader, err := cli.ImagePull(ctx, imageRef, pullOptions)
			if err == nil {
				err = streamPullProgress(ctx, reader)
			}
			if err == nil {
				return nil
			}
			lastErr = err
			logger.Debugf("failed to pull image '%v' (attempt %d of %d): %v", imageRef, attempt, pullAttempts, err)
			if attempt < pullAttempts {
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}
				backoff *= 2
			}
		}
		return newRuntimeError(ErrKindImageUnavailable, fmt.Errorf("unable to pull image %q after %d attempts: %w", imageRef, pullAttempts, lastErr))
	}
}

func getImagePullOptions(ctx context.Context, input NewDockerPullExecutorInput) (image.PullOptions, error) {
	pullOptions := image.PullOptions{
		Platform: input.Platform,
	}
	logger := common.Logger(ctx)

	if input.Username != "" && input.Password != "" {
		logger.Debugf("using authentication for docker pull")

		authConfig := registryAuth(input.Username, input.Password)
		encodedJSON, err := encodeAuthToBase64(authConfig)
		if err != nil {
			return pullOptions, err
		}
		pullOptions.RegistryAuth = encodedJSON
	} else {
		authConfig, err := LoadDockerAuthConfig(ctx, input.Image)
		if err != nil {
			return pullOptions, nil
		}
		if authConfig.Username == "" && authConfig.Password == "" {
			return pullOptions, nil
		}
		encodedJSON, err := encodeAuthToBase64(authConfig)
		if err != nil {
			return pullOptions, err
		}
		pullOptions.RegistryAuth = encodedJSON
	}

	return pullOptions, nil
}

// streamPullProgress surfaces the daemon's pull progress as log events
// and reports any error the stream carries.
func streamPullProgress(ctx context.Context, reader io.ReadCloser) error {
	defer reader.Close()
	logger := common.Logger(ctx)
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		var status struct {
			Status   string `json:"status"`
			Progress string `json:"progress"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &status); err != nil {
			continue
		}
		if status.Error != "" {
			return fmt.Errorf("pull failed: %s", status.Error)
		}
		if status.Progress != "" {
			logger.Debugf("%s %s", status.Status, status.Progress)
		} else if status.Status != "" {
			logger.Debugf("%s", status.Status)
		}
	}
	return scanner.Err()
}

func cleanImage(ctx context.Context, image string) string {
	imageParts := len(strings.Split(image, "/"))
	if imageParts == 1 {
		image = fmt.Sprintf("docker.io/library/%s", image)
	} else if imageParts == 2 {
		image = fmt.Sprintf("docker.io/%s", image)
	}
	return image
}
