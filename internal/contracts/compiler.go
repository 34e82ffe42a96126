package contracts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/compose-network/contract-deployer/internal/docker"
	"github.com/compose-network/contract-deployer/internal/logger"
)

const (
	containerProjectDir = "/project"
	artifactsDirName    = "artifacts"
	compileScript       = "npm ci --no-audit --no-fund && npx hardhat compile"
)

// projectExcludes are never shipped into the compiler container.
var projectExcludes = []string{"node_modules", artifactsDirName, "cache", ".env", ".git"}

type (
	containerRunner interface {
		EnsureImage(ctx context.Context, imageName string) error
		Run(ctx context.Context, opts docker.RunOptions) (string, error)
	}

	// Compiler compiles a Hardhat project inside a container and brings the
	// artifacts directory back to the host.
	Compiler struct {
		projectDir string
		image      string
		runner     containerRunner
		logger     *slog.Logger
	}
)

// NewCompiler creates a new contract compiler
func NewCompiler(projectDir, image string, runner containerRunner) *Compiler {
	return &Compiler{
		projectDir: projectDir,
		image:      image,
		runner:     runner,
		logger:     logger.Named("contracts_compiler"),
	}
}

// Compile runs the Hardhat compiler and replaces <projectDir>/artifacts
func (c *Compiler) Compile(ctx context.Context) (string, error) {
	projectDir, err := filepath.Abs(c.projectDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve project directory: %w", err)
	}

	if _, err := os.Stat(filepath.Join(projectDir, "hardhat.config.js")); err != nil {
		if _, tsErr := os.Stat(filepath.Join(projectDir, "hardhat.config.ts")); tsErr != nil {
			return "", fmt.Errorf("no hardhat config found in %s", projectDir)
		}
	}

	c.logger.
		With("project_dir", projectDir).
		With("image", c.image).
		Info("starting contract compilation")

	if err := c.runner.EnsureImage(ctx, c.image); err != nil {
		return "", fmt.Errorf("failed to prepare compiler image: %w", err)
	}

	artifactsDir := filepath.Join(projectDir, artifactsDirName)
	if err := os.RemoveAll(artifactsDir); err != nil {
		return "", fmt.Errorf("failed to clean %s: %w", artifactsDir, err)
	}

	_, err = c.runner.Run(ctx, docker.RunOptions{
		Image:   c.image,
		Cmd:     []string{"sh", "-c", compileScript},
		WorkDir: containerProjectDir,
		CopyIn: []docker.CopyIn{{
			HostDir:      projectDir,
			ContainerDir: containerProjectDir,
			Exclude:      projectExcludes,
		}},
		CopyOut: []docker.CopyOut{{
			ContainerPath: containerProjectDir + "/" + artifactsDirName,
			HostDir:       projectDir,
		}},
		StreamLogs: true,
	})
	if err != nil {
		return "", fmt.Errorf("hardhat compile failed: %w", err)
	}

	c.logger.With("artifacts_dir", artifactsDir).Info("contracts compiled successfully")

	return artifactsDir, nil
}
