package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/contracts"
	"github.com/compose-network/contract-deployer/internal/deploy"
	"github.com/compose-network/contract-deployer/internal/devnet"
	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	appName   = "deployer"
	envPrefix = "DEPLOYER"
)

// legacyEnv keeps the variable names of existing .env files working.
var legacyEnv = map[string]string{
	"network.rpc-url":    "QUICKNODE_HTTP_URL",
	"wallet.private-key": "PRIVATE_KEY",
	"explorer.api-key":   "POLYGONSCAN_KEY",
}

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Deploy and verify a VRF consumer contract",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		logger.Initialize(logger.ParseLevel(level), os.Stderr)
		slog.SetDefault(slog.Default().With("run_id", uuid.NewString()))

		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			const errMsg = "error reading .env file"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		if err := configs.SetDefaults(viper.GetViper()); err != nil {
			return err
		}

		viper.SetEnvPrefix(envPrefix)
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		viper.AutomaticEnv()
		for key, env := range legacyEnv {
			if err := viper.BindEnv(key, envName(key), env); err != nil {
				return err
			}
		}

		if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")

			if execPath, err := os.Executable(); err == nil {
				viper.AddConfigPath(filepath.Dir(execPath))
			}
			viper.AddConfigPath(".")
			viper.AddConfigPath("./configs")
		}

		// Try to read config file, but don't fail if it doesn't exist
		// Flags and environment can provide all necessary configuration
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				slog.Debug("no config file found, will rely on flags, environment and defaults")
			} else {
				const errMsg = "error reading config file"
				slog.With("err", err.Error()).Error(errMsg)
				return errors.Join(err, errors.New(errMsg))
			}
		} else {
			slog.With("config_file", viper.ConfigFileUsed()).Debug("config file loaded")
		}

		if err := viper.Unmarshal(&configs.Values); err != nil {
			const errMsg = "unable to decode application config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		return nil
	},
}

// envName is the prefixed variable AutomaticEnv would use for key.
func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default: config.yaml next to the binary, in . or ./configs)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")

	if err := declareFlags(rootCmd, stringFlags); err != nil {
		panic(err)
	}
	if err := declareFlags(rootCmd, intFlags); err != nil {
		panic(err)
	}
	if err := declareFlags(rootCmd, boolFlags); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(deploy.CMD)
	rootCmd.AddCommand(deploy.VerifyCMD)
	rootCmd.AddCommand(deploy.StatusCMD)
	rootCmd.AddCommand(contracts.CMD)
	rootCmd.AddCommand(devnet.CMD)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.With("err", err.Error()).Error("command failed")
		os.Exit(1)
	}
}
