package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type (
	flagType interface {
		string | int | bool
	}

	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}
)

// Defaults live in configs/config.example.yaml, so flags default to zero and
// only override when set.
var (
	stringFlags = []flagDef[string]{
		// Network
		{"rpc-url", "network.rpc-url", "", "JSON-RPC endpoint of the target network"},

		// Wallet
		{"private-key", "wallet.private-key", "", "Deployer wallet private key"},

		// Contract
		{"contract", "contract.name", "", "Contract name or fully qualified name"},
		{"artifacts-dir", "contract.artifacts-dir", "", "Hardhat artifacts directory"},
		{"project-dir", "contract.project-dir", "", "Hardhat project directory"},

		// VRF parameters
		{"vrf-coordinator", "parameters.vrf-coordinator", "", "VRF coordinator address"},
		{"link-token", "parameters.link-token", "", "LINK token address"},
		{"key-hash", "parameters.key-hash", "", "VRF key hash"},
		{"fee-wei", "parameters.fee-wei", "", "VRF fee in wei"},

		// Explorer
		{"explorer-api-url", "explorer.api-url", "", "Etherscan-compatible API URL"},
		{"explorer-api-key", "explorer.api-key", "", "Explorer API key"},
		{"explorer-browser-url", "explorer.browser-url", "", "Explorer web URL used for links"},

		// Output
		{"output", "output.path", "", "Deployment summary file, empty disables it"},
	}

	intFlags = []flagDef[int]{
		{"chain-id", "network.chain-id", 0, "Expected chain ID, 0 accepts whatever the node reports"},
		{"devnet-port", "devnet.port", 0, "Host port of the local anvil node"},
	}

	boolFlags = []flagDef[bool]{}
)

func declareFlags[T flagType](cmd *cobra.Command, flags []flagDef[T]) error {
	for _, flag := range flags {
		if err := declareFlag(cmd, flag.name, flag.viperKey, flag.defaultValue, flag.description); err != nil {
			return err
		}
	}
	return nil
}

// declareFlag declares a persistent flag on cmd and binds it to a viper key.
func declareFlag[T flagType](cmd *cobra.Command, flagName, viperKey string, defaultValue T, description string) error {
	var zero T
	switch any(zero).(type) {
	case string:
		cmd.PersistentFlags().String(flagName, any(defaultValue).(string), description)
	case int:
		cmd.PersistentFlags().Int(flagName, any(defaultValue).(int), description)
	case bool:
		cmd.PersistentFlags().Bool(flagName, any(defaultValue).(bool), description)
	}
	return viper.BindPFlag(viperKey, cmd.PersistentFlags().Lookup(flagName))
}
