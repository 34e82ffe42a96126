package explorer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-deployer/internal/contracts"
	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

type (
	artifactLoader interface {
		Load(name string) (contracts.Artifact, error)
	}

	// Verifier verifies deployments of a single contract.
	Verifier struct {
		client       *Client
		artifacts    artifactLoader
		contractName string
		logger       *slog.Logger
	}
)

func NewVerifier(client *Client, artifacts artifactLoader, contractName string) *Verifier {
	return &Verifier{
		client:       client,
		artifacts:    artifacts,
		contractName: contractName,
		logger:       logger.Named("verifier").With("contract", contractName),
	}
}

func (v *Verifier) WaitIndexed(ctx context.Context, address common.Address) error {
	return v.client.WaitIndexed(ctx, address)
}

// Verify submits the contract's build input with the ABI-encoded args and
// waits for the explorer to accept it.
func (v *Verifier) Verify(ctx context.Context, address common.Address, args []any) error {
	artifact, err := v.artifacts.Load(v.contractName)
	if err != nil {
		return fmt.Errorf("failed to load artifact for %s: %w", v.contractName, err)
	}

	if artifact.BuildInfo == nil || len(artifact.BuildInfo.Input) == 0 {
		return fmt.Errorf("no build info for %s, recompile the project", artifact.FullyQualifiedName())
	}

	encodedArgs, err := artifact.PackConstructor(args...)
	if err != nil {
		return fmt.Errorf("failed to encode constructor arguments: %w", err)
	}

	guid, err := v.client.Verify(ctx, VerificationRequest{
		Address:         address,
		SourceCode:      string(artifact.BuildInfo.Input),
		ContractName:    artifact.FullyQualifiedName(),
		CompilerVersion: artifact.CompilerVersion(),
		ConstructorArgs: encodedArgs,
	})
	if err != nil {
		return fmt.Errorf("failed to submit verification for %s: %w", address.Hex(), err)
	}

	if err := v.client.WaitVerified(ctx, guid); err != nil {
		return fmt.Errorf("failed to verify %s: %w", address.Hex(), err)
	}

	v.logger.With("address", address.Hex()).Info("contract verified")

	return nil
}
