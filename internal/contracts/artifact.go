package contracts

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	ErrUnknownContract  = errors.New("unknown contract")
	ErrUnlinkedBytecode = errors.New("bytecode contains unlinked library references")
)

type (
	// Artifact is a compiled contract ready to be deployed and verified.
	Artifact struct {
		Name       string
		SourceName string
		ABI        abi.ABI
		RawABI     string
		Bytecode   []byte
		// BuildInfo is nil when the artifacts dir carries no build-info for the contract.
		BuildInfo *BuildInfo
	}

	// BuildInfo is the compiler invocation that produced an artifact.
	BuildInfo struct {
		SolcVersion     string
		SolcLongVersion string
		// Input is the solc standard JSON input, verbatim.
		Input json.RawMessage
	}

	hardhatArtifact struct {
		Format       string          `json:"_format"`
		ContractName string          `json:"contractName"`
		SourceName   string          `json:"sourceName"`
		ABI          json.RawMessage `json:"abi"`
		Bytecode     string          `json:"bytecode"`
	}

	hardhatDebugFile struct {
		BuildInfo string `json:"buildInfo"`
	}

	hardhatBuildInfo struct {
		SolcVersion     string          `json:"solcVersion"`
		SolcLongVersion string          `json:"solcLongVersion"`
		Input           json.RawMessage `json:"input"`
	}
)

// FullyQualifiedName is the "<source>:<contract>" form explorers expect.
func (a Artifact) FullyQualifiedName() string {
	if a.SourceName == "" {
		return a.Name
	}
	return fmt.Sprintf("%s:%s", a.SourceName, a.Name)
}

// CompilerVersion is the solc version in explorer notation, e.g. v0.8.4+commit.c7e474f2.
func (a Artifact) CompilerVersion() string {
	if a.BuildInfo == nil || a.BuildInfo.SolcLongVersion == "" {
		return ""
	}
	return "v" + a.BuildInfo.SolcLongVersion
}

// PackConstructor ABI-encodes constructor arguments without the bytecode prefix.
func (a Artifact) PackConstructor(args ...any) ([]byte, error) {
	packed, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack constructor arguments for %s: %w", a.Name, err)
	}
	return packed, nil
}
