package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"
	"github.com/lmittmann/w3/module/eth"
)

var funcBalanceOf = w3.MustNewFunc("balanceOf(address)", "uint256")

type (
	// ContractState is a point-in-time view of a deployed contract.
	ContractState struct {
		Address      common.Address
		CodeSize     int
		Balance      *big.Int
		TokenBalance *big.Int
	}

	// Inspector reads contract state in a single batched RPC round trip.
	Inspector struct {
		client *w3.Client
		logger *slog.Logger
	}
)

func NewInspector(rpcURL string) (*Inspector, error) {
	client, err := w3.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}

	return &Inspector{
		client: client,
		logger: logger.Named("inspector"),
	}, nil
}

func (i *Inspector) Close() error {
	return i.client.Close()
}

// Inspect returns code size, native balance and the token balance held by
// address. TokenBalance is nil when token has no code or balanceOf fails.
func (i *Inspector) Inspect(ctx context.Context, address, token common.Address) (ContractState, error) {
	var (
		code      []byte
		balance   *big.Int
		tokenCode []byte
	)

	if err := i.client.CallCtx(ctx,
		eth.Code(address, nil).Returns(&code),
		eth.Balance(address, nil).Returns(&balance),
		eth.Code(token, nil).Returns(&tokenCode),
	); err != nil {
		return ContractState{}, fmt.Errorf("failed to inspect %s: %w", address.Hex(), err)
	}

	state := ContractState{
		Address:  address,
		CodeSize: len(code),
		Balance:  balance,
	}

	log := i.logger.With("address", address.Hex()).With("token", token.Hex())

	if len(tokenCode) == 0 {
		log.Warn("no token contract at configured address, skipping token balance")
	} else {
		var tokenBalance *big.Int
		if err := i.client.CallCtx(ctx, eth.CallFunc(token, funcBalanceOf, address).Returns(&tokenBalance)); err != nil {
			log.With("err", err.Error()).Warn("failed to read token balance")
		} else {
			state.TokenBalance = tokenBalance
		}
	}

	log.With("code_size", state.CodeSize).Debug("contract state fetched")

	return state, nil
}

// Deployed reports whether the state has any code.
func (s ContractState) Deployed() bool {
	return s.CodeSize > 0
}
