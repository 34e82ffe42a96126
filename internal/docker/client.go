package docker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

type Client struct {
	cli    client.APIClient
	logger *slog.Logger
}

// New creates a new Docker client.
func New() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}

	return &Client{cli: cli, logger: logger.Named("docker_client")}, nil
}

// Close closes the Docker client connection.
func (c *Client) Close() error {
	return c.cli.Close()
}

// ImageExists checks if a Docker image exists locally.
func (c *Client) ImageExists(ctx context.Context, imageName string) (bool, error) {
	_, err := c.cli.ImageInspect(ctx, imageName)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// EnsureImage pulls imageName unless it is already present.
func (c *Client) EnsureImage(ctx context.Context, imageName string) error {
	exists, err := c.ImageExists(ctx, imageName)
	if err != nil {
		return fmt.Errorf("failed to check if image exists: %w", err)
	}

	if exists {
		c.logger.With("image", imageName).Debug("image already present")
		return nil
	}

	return c.PullImage(ctx, imageName)
}

// PullImage pulls a Docker image from a registry.
func (c *Client) PullImage(ctx context.Context, imageName string) error {
	c.logger.With("image", imageName).Info("pulling docker image")

	resp, err := c.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer resp.Close()

	scanner := bufio.NewScanner(resp)
	var pullError error
	for scanner.Scan() {
		line := scanner.Text()
		c.logger.Debug(line)

		var msg struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &msg); err == nil && msg.Error != "" {
			pullError = fmt.Errorf("pull failed: %s", msg.Error)
			c.logger.Error("docker pull error", "error", msg.Error)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading pull output: %w", err)
	}

	if pullError != nil {
		return pullError
	}

	c.logger.With("image", imageName).Info("docker image pulled successfully")
	return nil
}

// ContainerRunning reports whether a container with the given name exists and is running.
func (c *Client) ContainerRunning(ctx context.Context, name string) (bool, error) {
	info, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}

	return info.State != nil && info.State.Running, nil
}

// RemoveContainer force-removes a container. Missing containers are not an error.
func (c *Client) RemoveContainer(ctx context.Context, name string) (bool, error) {
	err := c.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove container %s: %w", name, err)
	}

	return true, nil
}
