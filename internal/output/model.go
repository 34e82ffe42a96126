package output

import (
	"gopkg.in/yaml.v3"
)

type (
	Model struct {
		Contract Contract `yaml:"contract"`
		Network  Network  `yaml:"network"`
	}

	Network struct {
		ChainID int64 `yaml:"chain-id"`
	}

	Contract struct {
		Name            string             `yaml:"name"`
		Address         string             `yaml:"address"`
		Deployer        string             `yaml:"deployer"`
		TxHash          string             `yaml:"tx-hash"`
		BlockNumber     uint64             `yaml:"block-number"`
		GasUsed         uint64             `yaml:"gas-used"`
		ExplorerURL     string             `yaml:"explorer-url,omitempty"`
		ConstructorArgs ConstructorArgs    `yaml:"constructor-args"`
		ABI             SingleQuotedString `yaml:"abi"`
	}

	ConstructorArgs struct {
		VRFCoordinator string `yaml:"vrf-coordinator"`
		LinkToken      string `yaml:"link-token"`
		KeyHash        string `yaml:"key-hash"`
		FeeWei         string `yaml:"fee-wei"`
	}

	SingleQuotedString string
)

func (s SingleQuotedString) MarshalYAML() (any, error) {
	node := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.SingleQuotedStyle,
		Value: string(s),
	}
	return node, nil
}
