package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/compose-network/contract-deployer/internal/contracts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const deployTimeout = 5 * time.Minute

type (
	// Deployment is a confirmed contract creation.
	Deployment struct {
		ContractName string
		ChainID      *big.Int
		Address      common.Address
		TxHash       common.Hash
		BlockNumber  uint64
		GasUsed      uint64
		Deployer     common.Address
	}

	Factory struct {
		artifact contracts.Artifact
		client   *Client
		logger   *slog.Logger
	}
)

// Deploy sends the creation transaction and blocks until it is mined with a
// successful receipt and code at the new address.
func (f *Factory) Deploy(ctx context.Context, args ...any) (Deployment, error) {
	ctx, cancel := context.WithTimeout(ctx, deployTimeout)
	defer cancel()

	backend := f.client.backend

	chainID, err := f.client.ChainID(ctx)
	if err != nil {
		return Deployment{}, err
	}
	f.logger.With("chain_id", chainID).Info("chain ID was fetched")

	auth, err := bind.NewKeyedTransactorWithChainID(f.client.key, chainID)
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to create transactor: %w", err)
	}

	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	auth.Context = ctx
	auth.GasPrice = gasPrice

	address, tx, _, err := bind.DeployContract(auth, f.artifact.ABI, f.artifact.Bytecode, backend, args...)
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to deploy contract: %w", err)
	}

	f.logger.
		With("address", address.Hex()).
		With("tx_hash", tx.Hash().Hex()).
		Info("contract deployment transaction sent")

	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to wait for transaction %s: %w", tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return Deployment{}, fmt.Errorf("%w: tx %s status %d", ErrDeploymentReverted, tx.Hash().Hex(), receipt.Status)
	}

	code, err := backend.CodeAt(ctx, address, receipt.BlockNumber)
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to read code at %s: %w", address.Hex(), err)
	}
	if len(code) == 0 {
		return Deployment{}, fmt.Errorf("%w: no contract code at %s", ErrDeploymentReverted, address.Hex())
	}

	return Deployment{
		ContractName: f.artifact.Name,
		ChainID:      chainID,
		Address:      address,
		TxHash:       tx.Hash(),
		BlockNumber:  receipt.BlockNumber.Uint64(),
		GasUsed:      receipt.GasUsed,
		Deployer:     f.client.from,
	}, nil
}
