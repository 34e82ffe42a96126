package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	buildInfoDirName = "build-info"
	debugFileSuffix  = ".dbg.json"
)

// Store reads contracts from a Hardhat artifacts directory.
type Store struct {
	artifactsDir string
	logger       *slog.Logger
}

// NewStore creates a store rooted at artifactsDir
func NewStore(artifactsDir string) *Store {
	return &Store{
		artifactsDir: artifactsDir,
		logger:       logger.Named("artifact_store"),
	}
}

// Load resolves a contract by name ("RandomWinnerGame") or fully qualified
// name ("contracts/RandomWinnerGame.sol:RandomWinnerGame").
func (s *Store) Load(name string) (Artifact, error) {
	sourceName, contractName := splitQualifiedName(name)

	path, err := s.find(sourceName, contractName)
	if err != nil {
		return Artifact{}, err
	}

	s.logger.With("contract", name).With("path", path).Debug("loading artifact")

	var raw hardhatArtifact
	if err := readJSON(path, &raw); err != nil {
		return Artifact{}, fmt.Errorf("failed to read artifact for %s: %w", name, err)
	}

	artifact, err := parseArtifact(raw)
	if err != nil {
		return Artifact{}, err
	}

	buildInfo, err := s.loadBuildInfo(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to read build info for %s: %w", name, err)
	}
	artifact.BuildInfo = buildInfo

	return artifact, nil
}

func (s *Store) find(sourceName, contractName string) (string, error) {
	if sourceName != "" {
		path := filepath.Join(s.artifactsDir, filepath.FromSlash(sourceName), contractName+".json")
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s:%s", ErrUnknownContract, sourceName, contractName)
			}
			return "", fmt.Errorf("failed to stat artifact: %w", err)
		}
		return path, nil
	}

	if _, err := os.Stat(s.artifactsDir); err != nil {
		return "", fmt.Errorf("artifacts directory not found. Directory: '%s': %w", s.artifactsDir, err)
	}

	var matches []string
	err := filepath.WalkDir(s.artifactsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == buildInfoDirName {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == contractName+".json" {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan artifacts directory: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrUnknownContract, contractName)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("contract name %s is ambiguous, use a fully qualified name: %s", contractName, strings.Join(matches, ", "))
	}
}

// loadBuildInfo follows the artifact's .dbg.json to its build-info file.
// A missing debug file is not an error: the artifact stays deployable but not verifiable.
func (s *Store) loadBuildInfo(artifactPath string) (*BuildInfo, error) {
	debugPath := strings.TrimSuffix(artifactPath, ".json") + debugFileSuffix

	var debug hardhatDebugFile
	if err := readJSON(debugPath, &debug); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if debug.BuildInfo == "" {
		return nil, nil
	}

	buildInfoPath := filepath.Join(filepath.Dir(debugPath), filepath.FromSlash(debug.BuildInfo))

	var raw hardhatBuildInfo
	if err := readJSON(buildInfoPath, &raw); err != nil {
		return nil, err
	}
	if len(raw.Input) == 0 {
		return nil, fmt.Errorf("build info %s has no compiler input", buildInfoPath)
	}

	return &BuildInfo{
		SolcVersion:     raw.SolcVersion,
		SolcLongVersion: raw.SolcLongVersion,
		Input:           raw.Input,
	}, nil
}

func parseArtifact(raw hardhatArtifact) (Artifact, error) {
	if raw.ContractName == "" {
		return Artifact{}, errors.New("artifact has no contractName")
	}

	parsedABI, err := abi.JSON(strings.NewReader(string(raw.ABI)))
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to parse ABI for %s: %w", raw.ContractName, err)
	}

	if strings.Contains(raw.Bytecode, "__") {
		return Artifact{}, fmt.Errorf("%s: %w", raw.ContractName, ErrUnlinkedBytecode)
	}

	bytecode, err := hexutil.Decode(raw.Bytecode)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to decode bytecode for %s: %w", raw.ContractName, err)
	}
	if len(bytecode) == 0 {
		return Artifact{}, fmt.Errorf("%s has empty bytecode (abstract contract or interface)", raw.ContractName)
	}

	return Artifact{
		Name:       raw.ContractName,
		SourceName: raw.SourceName,
		ABI:        parsedABI,
		RawABI:     string(raw.ABI),
		Bytecode:   bytecode,
	}, nil
}

func splitQualifiedName(name string) (string, string) {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func readJSON(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return nil
}
