package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	rpcPollAttempts = 120
	rpcPollInterval = time.Second
)

// WaitForRPC blocks until the node at url answers eth_blockNumber.
func WaitForRPC(ctx context.Context, url string) error {
	for range rpcPollAttempts {
		if rpcReady(ctx, url) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rpcPollInterval):
		}
	}

	return fmt.Errorf("timed out waiting for RPC at %s", url)
}

func rpcReady(ctx context.Context, url string) bool {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return false
	}
	defer client.Close()

	_, err = client.BlockNumber(ctx)
	return err == nil
}

// FetchChainID asks the node at url for its chain id.
func FetchChainID(ctx context.Context, url string) (int64, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return chainID.Int64(), nil
}
