package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/chain"
	"github.com/compose-network/contract-deployer/internal/contracts"
	"github.com/compose-network/contract-deployer/internal/explorer"
	"github.com/compose-network/contract-deployer/internal/output"
	"github.com/compose-network/contract-deployer/internal/vrf"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the contract and verify it on the explorer",
	Long:  "Deploys contract.name with the configured VRF parameters, waits for the explorer to index it and submits its source for verification",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values
		if err := cfg.ValidateDeploy(); err != nil {
			return err
		}

		params, err := vrf.FromConfig(cfg.Parameters)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		store := contracts.NewStore(cfg.Contract.ArtifactsDir)

		client, err := chain.Dial(ctx, cfg.Network.RPCURL, cfg.Wallet.PrivateKey, store, chain.WithExpectedChainID(cfg.Network.ChainID))
		if err != nil {
			return err
		}
		defer client.Close()

		chainID, err := client.ChainID(ctx)
		if err != nil {
			return err
		}

		explorerClient := explorer.NewClient(cfg.Explorer.APIURL, cfg.Explorer.APIKey, explorer.WithChainID(chainID.Int64()))

		var opts []Option
		if cfg.Output.Path != "" {
			opts = append(opts, WithRecorder(output.NewGenerator(cfg.Output.Path, cfg.Explorer.BrowserURL, store)))
		}

		deployer := NewDeployer(client, explorer.NewVerifier(explorerClient, store, cfg.Contract.Name), opts...)
		if _, err := deployer.Run(ctx, cfg.Contract.Name, params); err != nil {
			return err
		}

		return nil
	},
}

var VerifyCMD = &cobra.Command{
	Use:   "verify <address>",
	Short: "Verify an already deployed contract on the explorer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values
		if err := cfg.ValidateVerify(); err != nil {
			return err
		}

		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		params, err := vrf.FromConfig(cfg.Parameters)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		explorerClient, err := newExplorerClient(ctx, cfg)
		if err != nil {
			return err
		}

		verifier := explorer.NewVerifier(explorerClient, contracts.NewStore(cfg.Contract.ArtifactsDir), cfg.Contract.Name)
		if err := verifier.WaitIndexed(ctx, address); err != nil {
			if !errors.Is(err, explorer.ErrNotIndexed) {
				return err
			}
			slog.With("err", err.Error()).Warn("explorer has not indexed the contract, submitting verification anyway")
		}
		if err := verifier.Verify(ctx, address, params.Args()); err != nil {
			return err
		}

		return nil
	},
}

var StatusCMD = &cobra.Command{
	Use:   "status <address>",
	Short: "Show on-chain and explorer state of a deployed contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values
		if err := cfg.ValidateStatus(); err != nil {
			return err
		}

		address, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		inspector, err := chain.NewInspector(cfg.Network.RPCURL)
		if err != nil {
			return err
		}
		defer inspector.Close()

		state, err := inspector.Inspect(ctx, address, common.HexToAddress(cfg.Parameters.LinkToken))
		if err != nil {
			return err
		}
		if !state.Deployed() {
			return fmt.Errorf("no contract code at %s", address.Hex())
		}

		explorerClient, err := newExplorerClient(ctx, cfg)
		if err != nil {
			return err
		}

		source, err := explorerClient.SourceInfo(ctx, address)
		if err != nil {
			return err
		}

		linkBalance := "unavailable"
		if state.TokenBalance != nil {
			linkBalance = state.TokenBalance.String()
		}

		slog.
			With("address", address.Hex()).
			With("code_size", state.CodeSize).
			With("balance_wei", state.Balance.String()).
			With("link_balance", linkBalance).
			With("verified", source.Verified).
			With("compiler", source.CompilerVersion).
			Info("contract status")

		return nil
	},
}

func newExplorerClient(ctx context.Context, cfg configs.Config) (*explorer.Client, error) {
	chainID := cfg.Network.ChainID
	if chainID == 0 {
		var err error
		if chainID, err = chain.FetchChainID(ctx, cfg.Network.RPCURL); err != nil {
			return nil, err
		}
	}

	return explorer.NewClient(cfg.Explorer.APIURL, cfg.Explorer.APIKey, explorer.WithChainID(chainID)), nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid contract address '%s'", s)
	}
	return common.HexToAddress(s), nil
}
