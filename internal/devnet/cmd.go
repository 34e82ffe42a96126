package devnet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/docker"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "devnet",
	Short: "Commands for running a local anvil node",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the local anvil node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, service *Service) error {
			slog.Info("starting devnet")
			if err := service.Start(ctx); err != nil {
				return fmt.Errorf("error occurred starting devnet: %w", err)
			}
			return nil
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop and remove the local anvil node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(ctx context.Context, service *Service) error {
			return service.Stop(ctx)
		})
	},
}

func init() {
	CMD.AddCommand(startCmd)
	CMD.AddCommand(stopCmd)
}

func withService(ctx context.Context, fn func(context.Context, *Service) error) error {
	dockerClient, err := docker.New()
	if err != nil {
		return fmt.Errorf("failed to create docker client: %w", err)
	}
	defer dockerClient.Close()

	return fn(ctx, NewService(configs.Values.Devnet, dockerClient))
}
