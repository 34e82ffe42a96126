// Package deploy runs the deploy, wait and verify pipeline for one contract.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/contract-deployer/internal/chain"
	"github.com/compose-network/contract-deployer/internal/explorer"
	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/compose-network/contract-deployer/internal/vrf"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
)

// IndexingDelay is the unconditional pause between deployment and the first
// explorer request.
const IndexingDelay = 30 * time.Second

type (
	factoryProvider interface {
		GetFactory(contractName string) (chain.ContractFactory, error)
	}

	verifier interface {
		WaitIndexed(ctx context.Context, address common.Address) error
		Verify(ctx context.Context, address common.Address, args []any) error
	}

	recorder interface {
		Generate(ctx context.Context, deployment chain.Deployment, params vrf.Parameters) error
	}

	Deployer struct {
		chain    factoryProvider
		verifier verifier
		recorder recorder
		clock    clockwork.Clock
		logger   *slog.Logger
	}

	Option func(*Deployer)
)

func WithClock(clock clockwork.Clock) Option {
	return func(d *Deployer) {
		d.clock = clock
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Deployer) {
		d.logger = l
	}
}

// WithRecorder writes a summary of the deployment before the indexing delay.
func WithRecorder(r recorder) Option {
	return func(d *Deployer) {
		d.recorder = r
	}
}

func NewDeployer(chain factoryProvider, verifier verifier, opts ...Option) *Deployer {
	d := &Deployer{
		chain:    chain,
		verifier: verifier,
		clock:    clockwork.NewRealClock(),
		logger:   logger.Named("deployer"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run deploys contractName with params, waits for the explorer and verifies it.
// The deployment is returned once confirmed, also when verification fails.
func (d *Deployer) Run(ctx context.Context, contractName string, params vrf.Parameters) (chain.Deployment, error) {
	factory, err := d.chain.GetFactory(contractName)
	if err != nil {
		return chain.Deployment{}, fmt.Errorf("failed to get contract factory: %w", err)
	}

	d.logger.With("contract", contractName).With("parameters", params).Info("deploying contract")

	deployment, err := factory.Deploy(ctx, params.Args()...)
	if err != nil {
		return chain.Deployment{}, fmt.Errorf("failed to deploy %s: %w", contractName, err)
	}

	d.logger.
		With("contract", contractName).
		With("address", deployment.Address.Hex()).
		With("tx_hash", deployment.TxHash.Hex()).
		With("block", deployment.BlockNumber).
		Info(fmt.Sprintf("%s deployed to: %s", contractName, deployment.Address.Hex()))

	if d.recorder != nil {
		if err := d.recorder.Generate(ctx, deployment, params); err != nil {
			d.logger.With("err", err.Error()).Warn("failed to write deployment summary")
		}
	}

	d.logger.With("delay", IndexingDelay.String()).Info("waiting for the explorer to index the contract")
	d.clock.Sleep(IndexingDelay)

	if err := d.verifier.WaitIndexed(ctx, deployment.Address); err != nil {
		if !errors.Is(err, explorer.ErrNotIndexed) {
			return deployment, fmt.Errorf("contract %s was deployed but the explorer wait failed, retry with the verify command: %w", deployment.Address.Hex(), err)
		}
		d.logger.With("err", err.Error()).Warn("explorer has not indexed the contract, submitting verification anyway")
	}

	if err := d.verifier.Verify(ctx, deployment.Address, params.Args()); err != nil {
		return deployment, fmt.Errorf("contract %s was deployed but verification failed, retry with the verify command: %w", deployment.Address.Hex(), err)
	}

	d.logger.With("address", deployment.Address.Hex()).Info("contract deployed and verified")

	return deployment, nil
}
