package configs

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

//go:embed config.example.yaml
var defaultConfigYAML string

var loadDefaults = sync.OnceValues(func() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("failed to read embedded config.example.yaml: %w", err)
	}

	return v, nil
})

// SetDefaults registers every key of the embedded config.example.yaml as a
// default on v. Defaults rank below flags, env and config file values, and
// make every key visible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) error {
	defaults, err := loadDefaults()
	if err != nil {
		return err
	}

	for _, key := range defaults.AllKeys() {
		v.SetDefault(key, defaults.Get(key))
	}

	return nil
}
