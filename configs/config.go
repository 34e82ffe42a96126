package configs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var Values Config

type (
	Config struct {
		Network    Network    `mapstructure:"network"`
		Wallet     Wallet     `mapstructure:"wallet"`
		Contract   Contract   `mapstructure:"contract"`
		Parameters Parameters `mapstructure:"parameters"`
		Explorer   Explorer   `mapstructure:"explorer"`
		Output     Output     `mapstructure:"output"`
		Devnet     Devnet     `mapstructure:"devnet"`
		Compiler   Compiler   `mapstructure:"compiler"`
	}

	Network struct {
		RPCURL  string `mapstructure:"rpc-url" validate:"required,url"`
		ChainID int64  `mapstructure:"chain-id" validate:"gte=0"`
	}

	Wallet struct {
		PrivateKey string `mapstructure:"private-key" validate:"required"`
	}

	Contract struct {
		Name         string `mapstructure:"name" validate:"required"`
		ArtifactsDir string `mapstructure:"artifacts-dir" validate:"required"`
		ProjectDir   string `mapstructure:"project-dir"`
	}

	// Parameters are the constructor arguments of the VRF consumer contract.
	Parameters struct {
		VRFCoordinator string `mapstructure:"vrf-coordinator" validate:"required,eth_addr"`
		LinkToken      string `mapstructure:"link-token" validate:"required,eth_addr"`
		KeyHash        string `mapstructure:"key-hash" validate:"required,startswith=0x,len=66,hexadecimal"`
		FeeWei         string `mapstructure:"fee-wei" validate:"required,number"`
	}

	Explorer struct {
		APIURL     string `mapstructure:"api-url" validate:"required,url"`
		APIKey     string `mapstructure:"api-key" validate:"required"`
		BrowserURL string `mapstructure:"browser-url" validate:"omitempty,url"`
	}

	Output struct {
		Path string `mapstructure:"path"`
	}

	Devnet struct {
		Image string `mapstructure:"image"`
		Port  int    `mapstructure:"port"`
	}

	Compiler struct {
		Image string `mapstructure:"image"`
	}
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateDeploy checks everything the deploy command needs.
func (c *Config) ValidateDeploy() error {
	return validateSections("deploy",
		section{"network", c.Network},
		section{"wallet", c.Wallet},
		section{"contract", c.Contract},
		section{"parameters", c.Parameters},
		section{"explorer", c.Explorer},
	)
}

// ValidateVerify checks everything the verify command needs.
func (c *Config) ValidateVerify() error {
	return validateSections("verify",
		section{"network", c.Network},
		section{"contract", c.Contract},
		section{"parameters", c.Parameters},
		section{"explorer", c.Explorer},
	)
}

// ValidateStatus checks everything the status command needs.
func (c *Config) ValidateStatus() error {
	return validateSections("status",
		section{"network", c.Network},
		section{"parameters", c.Parameters},
		section{"explorer", c.Explorer},
	)
}

func (c *Devnet) Validate() error {
	var errs []error

	if c.Image == "" {
		errs = append(errs, errors.New("devnet.image is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, errors.New("devnet.port must be between 1 and 65535"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("devnet configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

type section struct {
	name  string
	value any
}

func validateSections(command string, sections ...section) error {
	var errs []error

	for _, s := range sections {
		err := validate.Struct(s.value)
		if err == nil {
			continue
		}

		var validationErrs validator.ValidationErrors
		if !errors.As(err, &validationErrs) {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}

		for _, fieldErr := range validationErrs {
			errs = append(errs, fieldError(s.name, fieldErr))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s configuration validation failed: %w", command, errors.Join(errs...))
	}

	return nil
}

func fieldError(sectionName string, fieldErr validator.FieldError) error {
	key := fmt.Sprintf("%s.%s", sectionName, kebab(fieldErr.StructField()))

	switch fieldErr.Tag() {
	case "required":
		return fmt.Errorf("%s is required", key)
	case "eth_addr":
		return fmt.Errorf("%s must be a hex encoded address", key)
	case "url":
		return fmt.Errorf("%s must be a valid URL", key)
	case "number":
		return fmt.Errorf("%s must be a decimal integer", key)
	default:
		return fmt.Errorf("%s failed '%s' validation", key, fieldErr.Tag())
	}
}

// kebab maps a Go field name to its config key, e.g. RPCURL -> rpc-url.
func kebab(field string) string {
	switch field {
	case "RPCURL":
		return "rpc-url"
	case "APIURL":
		return "api-url"
	case "APIKey":
		return "api-key"
	case "BrowserURL":
		return "browser-url"
	case "ChainID":
		return "chain-id"
	case "VRFCoordinator":
		return "vrf-coordinator"
	}

	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}

	return strings.ToLower(b.String())
}
