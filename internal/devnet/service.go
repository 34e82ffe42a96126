// Package devnet runs a local anvil node for deploying against.
package devnet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/chain"
	"github.com/compose-network/contract-deployer/internal/docker"
	"github.com/compose-network/contract-deployer/internal/logger"
)

const (
	containerName = "contract-deployer-anvil"
	anvilPort     = 8545

	// DevPrivateKey funds the first anvil account.
	DevPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcab784d7bf4f2ff80"
)

type (
	containerRuntime interface {
		EnsureImage(ctx context.Context, imageName string) error
		ContainerRunning(ctx context.Context, name string) (bool, error)
		RemoveContainer(ctx context.Context, name string) (bool, error)
		Start(ctx context.Context, opts docker.RunOptions) (string, error)
	}

	Service struct {
		cfg        configs.Devnet
		runtime    containerRuntime
		waitForRPC func(ctx context.Context, url string) error
		logger     *slog.Logger
	}
)

func NewService(cfg configs.Devnet, runtime containerRuntime) *Service {
	return &Service{
		cfg:        cfg,
		runtime:    runtime,
		waitForRPC: chain.WaitForRPC,
		logger:     logger.Named("devnet"),
	}
}

// RPCURL is where the devnet answers on the host.
func (s *Service) RPCURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.cfg.Port)
}

// Start launches anvil unless it is already running and waits for its RPC.
func (s *Service) Start(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	running, err := s.runtime.ContainerRunning(ctx, containerName)
	if err != nil {
		return err
	}

	if running {
		s.logger.With("container", containerName).Info("devnet already running")
	} else {
		if err := s.runtime.EnsureImage(ctx, s.cfg.Image); err != nil {
			return err
		}

		// clear a stopped container left behind by a previous run
		if _, err := s.runtime.RemoveContainer(ctx, containerName); err != nil {
			return err
		}

		if _, err := s.runtime.Start(ctx, docker.RunOptions{
			Name:       containerName,
			Image:      s.cfg.Image,
			Entrypoint: []string{"anvil"},
			Cmd:        []string{"--host", "0.0.0.0", "--port", fmt.Sprint(anvilPort)},
			Ports:      map[int]int{anvilPort: s.cfg.Port},
		}); err != nil {
			return fmt.Errorf("failed to start devnet: %w", err)
		}
	}

	if err := s.waitForRPC(ctx, s.RPCURL()); err != nil {
		return err
	}

	account, err := chain.AddressFromPrivateKey(DevPrivateKey)
	if err != nil {
		return err
	}

	s.logger.
		With("rpc_url", s.RPCURL()).
		With("account", account.Hex()).
		With("private_key", DevPrivateKey).
		Info("devnet is ready")

	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	removed, err := s.runtime.RemoveContainer(ctx, containerName)
	if err != nil {
		return err
	}

	if !removed {
		s.logger.Info("devnet was not running")
		return nil
	}

	s.logger.Info("devnet stopped")
	return nil
}
