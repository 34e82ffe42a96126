// Package output writes the deployment summary file.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/compose-network/contract-deployer/internal/chain"
	"github.com/compose-network/contract-deployer/internal/contracts"
	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/compose-network/contract-deployer/internal/vrf"
	"gopkg.in/yaml.v3"
)

type (
	artifactLoader interface {
		Load(name string) (contracts.Artifact, error)
	}

	Generator struct {
		path       string
		browserURL string
		artifacts  artifactLoader
		logger     *slog.Logger
	}
)

// NewGenerator writes to path. browserURL may be empty, in which case no explorer link is recorded.
func NewGenerator(path, browserURL string, artifacts artifactLoader) *Generator {
	return &Generator{
		path:       path,
		browserURL: browserURL,
		artifacts:  artifacts,
		logger:     logger.Named("output"),
	}
}

func (g *Generator) Generate(_ context.Context, deployment chain.Deployment, params vrf.Parameters) error {
	artifact, err := g.artifacts.Load(deployment.ContractName)
	if err != nil {
		return fmt.Errorf("could not load artifact for %s: %w", deployment.ContractName, err)
	}

	var chainID int64
	if deployment.ChainID != nil {
		chainID = deployment.ChainID.Int64()
	}

	model := &Model{
		Network: Network{ChainID: chainID},
		Contract: Contract{
			Name:        deployment.ContractName,
			Address:     deployment.Address.Hex(),
			Deployer:    deployment.Deployer.Hex(),
			TxHash:      deployment.TxHash.Hex(),
			BlockNumber: deployment.BlockNumber,
			GasUsed:     deployment.GasUsed,
			ExplorerURL: g.explorerLink(deployment),
			ConstructorArgs: ConstructorArgs{
				VRFCoordinator: params.Coordinator.Hex(),
				LinkToken:      params.LinkToken.Hex(),
				KeyHash:        params.KeyHash.Hex(),
				FeeWei:         params.Fee.String(),
			},
			ABI: SingleQuotedString(compactJSON(artifact.RawABI)),
		},
	}

	data, err := yaml.Marshal(model)
	if err != nil {
		return fmt.Errorf("could not marshal output model: %w", err)
	}

	if dir := filepath.Dir(g.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("could not create output directory: %w", err)
		}
	}

	if err := os.WriteFile(g.path, data, 0644); err != nil {
		return fmt.Errorf("could not write output file: %w", err)
	}

	g.logger.With("path", g.path).Info("deployment summary written")

	return nil
}

func (g *Generator) explorerLink(deployment chain.Deployment) string {
	if g.browserURL == "" {
		return ""
	}

	link, err := url.JoinPath(g.browserURL, "address", deployment.Address.Hex())
	if err != nil {
		return ""
	}
	return link
}

func compactJSON(jsonStr string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(jsonStr)); err != nil {
		return jsonStr
	}
	return buf.String()
}
