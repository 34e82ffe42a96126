package contracts

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/docker"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "compile",
	Short: "Compile the Hardhat project in a container",
	Long:  "Runs npm ci and hardhat compile for contract.project-dir inside compiler.image and copies the artifacts directory back",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values
		if cfg.Compiler.Image == "" {
			return errors.New("compiler.image is required")
		}

		projectDir := cfg.Contract.ProjectDir
		if projectDir == "" {
			projectDir = "."
		}

		dockerClient, err := docker.New()
		if err != nil {
			return fmt.Errorf("failed to create docker client: %w", err)
		}
		defer dockerClient.Close()

		artifactsDir, err := NewCompiler(projectDir, cfg.Compiler.Image, dockerClient).Compile(cmd.Context())
		if err != nil {
			return fmt.Errorf("contract compilation failed: %w", err)
		}

		slog.With("artifacts_dir", artifactsDir).Info("contract compilation completed successfully")

		return nil
	},
}
