// Package vrf holds the constructor parameters of a Chainlink VRF consumer.
package vrf

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Parameters are immutable once parsed. Args returns them in constructor order.
type Parameters struct {
	Coordinator common.Address
	LinkToken   common.Address
	KeyHash     common.Hash
	Fee         *big.Int
}

// FromConfig parses the configured parameters.
func FromConfig(cfg configs.Parameters) (Parameters, error) {
	var errs []error

	if !common.IsHexAddress(cfg.VRFCoordinator) {
		errs = append(errs, fmt.Errorf("invalid vrf coordinator address '%s'", cfg.VRFCoordinator))
	}
	if !common.IsHexAddress(cfg.LinkToken) {
		errs = append(errs, fmt.Errorf("invalid link token address '%s'", cfg.LinkToken))
	}

	keyHash, err := hexutil.Decode(cfg.KeyHash)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid key hash '%s': %w", cfg.KeyHash, err))
	} else if len(keyHash) != common.HashLength {
		errs = append(errs, fmt.Errorf("key hash must be %d bytes, got %d", common.HashLength, len(keyHash)))
	}

	fee, ok := new(big.Int).SetString(cfg.FeeWei, 10)
	if !ok {
		errs = append(errs, fmt.Errorf("invalid fee '%s'", cfg.FeeWei))
	} else if fee.Sign() < 0 {
		errs = append(errs, fmt.Errorf("fee must not be negative, got %s", cfg.FeeWei))
	}

	if len(errs) > 0 {
		return Parameters{}, fmt.Errorf("invalid deployment parameters: %w", errors.Join(errs...))
	}

	return Parameters{
		Coordinator: common.HexToAddress(cfg.VRFCoordinator),
		LinkToken:   common.HexToAddress(cfg.LinkToken),
		KeyHash:     common.BytesToHash(keyHash),
		Fee:         fee,
	}, nil
}

// Args returns coordinator, link token, key hash and fee, in that order.
func (p Parameters) Args() []any {
	return []any{p.Coordinator, p.LinkToken, [common.HashLength]byte(p.KeyHash), p.Fee}
}

func (p Parameters) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("vrf_coordinator", p.Coordinator.Hex()),
		slog.String("link_token", p.LinkToken.Hex()),
		slog.String("key_hash", p.KeyHash.Hex()),
		slog.String("fee_wei", p.Fee.String()),
	)
}
