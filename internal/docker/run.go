package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/moby/go-archive"
)

type (
	RunOptions struct {
		Name       string
		Image      string
		Entrypoint []string
		Cmd        []string
		Env        []string
		WorkDir    string
		// Ports maps container TCP ports to host ports bound on 127.0.0.1.
		Ports      map[int]int
		CopyIn     []CopyIn
		CopyOut    []CopyOut
		StreamLogs bool
	}

	// CopyIn tars HostDir and extracts it into ContainerDir before the container starts.
	CopyIn struct {
		HostDir      string
		ContainerDir string
		Exclude      []string
	}

	// CopyOut extracts ContainerPath into HostDir after the container exits successfully.
	CopyOut struct {
		ContainerPath string
		HostDir       string
	}
)

// Run runs a container to completion and returns its stdout.
func (c *Client) Run(ctx context.Context, opts RunOptions) (string, error) {
	containerID, err := c.create(ctx, opts)
	if err != nil {
		return "", err
	}
	defer c.discard(ctx, containerID)

	if err := c.copyIn(ctx, containerID, opts.CopyIn); err != nil {
		return "", err
	}

	attachResp, err := c.cli.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to attach to container: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	copied := make(chan struct{})
	go func() {
		defer close(copied)
		if opts.StreamLogs {
			_, _ = stdcopy.StdCopy(io.MultiWriter(os.Stderr, &stdout), io.MultiWriter(os.Stderr, &stderr), attachResp.Reader)
			return
		}
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
	}()

	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := c.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("error waiting for container: %w", err)
		}
	case status := <-statusCh:
		<-copied
		if status.StatusCode != 0 {
			if output := stderr.String(); output != "" {
				return "", fmt.Errorf("container exited with code %d: %s", status.StatusCode, output)
			}
			return "", fmt.Errorf("container exited with code %d", status.StatusCode)
		}
	}

	if err := c.copyOut(ctx, containerID, opts.CopyOut); err != nil {
		return "", err
	}

	return stdout.String(), nil
}

// Start creates and starts a long-running container and returns its ID.
// The container is removed again if it cannot be started.
func (c *Client) Start(ctx context.Context, opts RunOptions) (string, error) {
	containerID, err := c.create(ctx, opts)
	if err != nil {
		return "", err
	}

	if err := c.copyIn(ctx, containerID, opts.CopyIn); err != nil {
		c.discard(ctx, containerID)
		return "", err
	}

	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		c.discard(ctx, containerID)
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	c.logger.With("name", opts.Name).With("id", containerID).Info("container started")

	return containerID, nil
}

// discard force-removes containerID, also when ctx is already cancelled.
func (c *Client) discard(ctx context.Context, containerID string) {
	if _, err := c.RemoveContainer(context.WithoutCancel(ctx), containerID); err != nil {
		c.logger.With("id", containerID).With("err", err.Error()).Warn("failed to remove container")
	}
}

func (c *Client) create(ctx context.Context, opts RunOptions) (string, error) {
	exposed, bindings, err := portBindings(opts.Ports)
	if err != nil {
		return "", err
	}

	config := &container.Config{
		Image:        opts.Image,
		Entrypoint:   opts.Entrypoint,
		Cmd:          opts.Cmd,
		Env:          opts.Env,
		WorkingDir:   opts.WorkDir,
		ExposedPorts: exposed,
	}

	hostConfig := &container.HostConfig{
		PortBindings: bindings,
	}

	resp, err := c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	for _, warning := range resp.Warnings {
		c.logger.With("warning", warning).Warn("container created with warnings")
	}

	return resp.ID, nil
}

func (c *Client) copyIn(ctx context.Context, containerID string, copies []CopyIn) error {
	for _, cp := range copies {
		c.logger.With("host_dir", cp.HostDir).With("container_dir", cp.ContainerDir).Debug("copying into container")

		content, err := archive.TarWithOptions(cp.HostDir, &archive.TarOptions{ExcludePatterns: cp.Exclude})
		if err != nil {
			return fmt.Errorf("failed to archive %s: %w", cp.HostDir, err)
		}

		err = c.cli.CopyToContainer(ctx, containerID, cp.ContainerDir, content, container.CopyToContainerOptions{})
		content.Close()
		if err != nil {
			return fmt.Errorf("failed to copy %s into container: %w", cp.HostDir, err)
		}
	}

	return nil
}

func (c *Client) copyOut(ctx context.Context, containerID string, copies []CopyOut) error {
	for _, cp := range copies {
		c.logger.With("container_path", cp.ContainerPath).With("host_dir", cp.HostDir).Debug("copying out of container")

		content, _, err := c.cli.CopyFromContainer(ctx, containerID, cp.ContainerPath)
		if err != nil {
			return fmt.Errorf("failed to copy %s from container: %w", cp.ContainerPath, err)
		}

		err = archive.Untar(content, cp.HostDir, &archive.TarOptions{NoLchown: true})
		content.Close()
		if err != nil {
			return fmt.Errorf("failed to extract %s into %s: %w", cp.ContainerPath, cp.HostDir, err)
		}
	}

	return nil
}

func portBindings(ports map[int]int) (nat.PortSet, nat.PortMap, error) {
	if len(ports) == 0 {
		return nil, nil, nil
	}

	exposed := make(nat.PortSet, len(ports))
	bindings := make(nat.PortMap, len(ports))
	for containerPort, hostPort := range ports {
		port, err := nat.NewPort("tcp", strconv.Itoa(containerPort))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid container port %d: %w", containerPort, err)
		}

		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(hostPort)}}
	}

	return exposed, bindings, nil
}
