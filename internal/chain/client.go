package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/compose-network/contract-deployer/internal/contracts"
	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	ErrDeploymentReverted = errors.New("contract deployment reverted")
	ErrChainIDMismatch    = errors.New("chain id mismatch")
	ErrUnknownContract    = contracts.ErrUnknownContract
)

type (
	// Backend is what the client needs from a node: ethclient.Client and the
	// simulated backend both satisfy it.
	Backend interface {
		bind.ContractBackend
		bind.DeployBackend
		ChainID(ctx context.Context) (*big.Int, error)
	}

	artifactLoader interface {
		Load(name string) (contracts.Artifact, error)
	}

	// ContractFactory deploys one contract type.
	ContractFactory interface {
		Deploy(ctx context.Context, args ...any) (Deployment, error)
	}

	// Client signs and submits deployments for a single account.
	Client struct {
		backend         Backend
		key             *ecdsa.PrivateKey
		from            common.Address
		artifacts       artifactLoader
		expectedChainID *big.Int
		closer          func()
		logger          *slog.Logger
	}

	Option func(*Client)
)

// WithExpectedChainID makes the client refuse to deploy to any other chain.
func WithExpectedChainID(chainID int64) Option {
	return func(c *Client) {
		if chainID != 0 {
			c.expectedChainID = big.NewInt(chainID)
		}
	}
}

// Dial connects to rpcURL and creates a client signing with privateKeyHex.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, artifacts artifactLoader, opts ...Option) (*Client, error) {
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	ethClient, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}

	client := NewClient(ethClient, key, artifacts, opts...)
	client.closer = ethClient.Close
	client.logger.With("url", rpcURL).With("from", client.from.Hex()).Info("connected to RPC")

	return client, nil
}

// NewClient wraps an existing backend.
func NewClient(backend Backend, key *ecdsa.PrivateKey, artifacts artifactLoader, opts ...Option) *Client {
	c := &Client{
		backend:   backend,
		key:       key,
		from:      crypto.PubkeyToAddress(key.PublicKey),
		artifacts: artifacts,
		logger:    logger.Named("chain_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// ChainID fetches the node's chain id and checks it against the expected one, if any.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	if c.expectedChainID != nil && c.expectedChainID.Cmp(chainID) != 0 {
		return nil, fmt.Errorf("%w: configured %s, node reports %s", ErrChainIDMismatch, c.expectedChainID, chainID)
	}

	return chainID, nil
}

// GetFactory resolves contractName's build artifact into a deployable factory.
func (c *Client) GetFactory(contractName string) (ContractFactory, error) {
	artifact, err := c.artifacts.Load(contractName)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact for %s: %w", contractName, err)
	}

	c.logger.
		With("contract", artifact.FullyQualifiedName()).
		With("bytecode_size", len(artifact.Bytecode)).
		Debug("contract factory created")

	return &Factory{
		artifact: artifact,
		client:   c,
		logger:   c.logger.With("contract", artifact.Name),
	}, nil
}
