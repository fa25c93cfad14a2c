package common

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed config.default.yaml
var defaultConfig []byte

const configPathEnv = "CONFIG_PATH"

// ConfigManager loads layered configuration: embedded defaults first, then an
// optional YAML or JSON file pointed at by CONFIG_PATH.
type ConfigManager[T any] struct {
	k      *koanf.Koanf
	config T
}

func NewConfigManager[T any]() (*ConfigManager[T], error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultConfig), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if path := os.Getenv(configPathEnv); path != "" {
		var parser koanf.Parser = kyaml.Parser()
		if strings.HasSuffix(path, ".json") {
			parser = kjson.Parser()
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	cm := &ConfigManager[T]{k: k}
	if err := k.UnmarshalWithConf("", &cm.config, koanf.UnmarshalConf{
		Tag: "key",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			Result:           &cm.config,
			WeaklyTypedInput: true,
			Squash:           true,
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cm, nil
}

// GetConfig returns the fully-resolved configuration
func (cm *ConfigManager[T]) GetConfig() T {
	return cm.config
}
