// Package config provides configuration loading for the deployer.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	mytoken "github.com/manzur349/my-token"
)

// EnvPrefix is the prefix for environment overrides (MYTOKEN_RPC_URL, MYTOKEN_TX_LEGACY, ...).
const EnvPrefix = "MYTOKEN"

// Config holds all configuration for a deployment run.
// The private key is not part of it; keys.FromEnv reads PRIVATE_KEY directly.
type Config struct {
	RPCURL       string        `mapstructure:"rpc_url" validate:"notblank"`
	ChainID      uint64        `mapstructure:"chain_id"` // 0 skips the chain ID check
	Artifact     string        `mapstructure:"artifact" validate:"notblank"`
	ContractName string        `mapstructure:"contract_name"`
	BroadcastDir string        `mapstructure:"broadcast_dir"`
	Tx           TxConfig      `mapstructure:"tx"`
	Log          LogConfig     `mapstructure:"log"`
	Output       OutputConfig  `mapstructure:"output"`
	Metrics      MetricsConfig `mapstructure:"metrics"`
}

// TxConfig holds transaction pricing and confirmation settings.
type TxConfig struct {
	Legacy                bool          `mapstructure:"legacy"`
	GasPriceBumpPercent   uint64        `mapstructure:"gas_price_bump_percent" validate:"max=1000"`
	// GasLimitBufferPercent of 0 means the session default of 20.
	GasLimitBufferPercent uint64        `mapstructure:"gas_limit_buffer_percent" validate:"max=1000"`
	ReceiptTimeout        time.Duration `mapstructure:"receipt_timeout" validate:"gt=0"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// OutputConfig controls how results are printed.
type OutputConfig struct {
	Format string `mapstructure:"format" validate:"oneof=text json yaml"`
}

// MetricsConfig controls the Prometheus textfile written at the end of a run.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// New returns a viper instance with defaults and environment bindings applied.
// Flags can be bound to it before Load is called.
func New() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Foundry-style bare names are accepted for the network settings.
	_ = v.BindEnv("rpc_url", EnvPrefix+"_RPC_URL", "RPC_URL")
	_ = v.BindEnv("chain_id", EnvPrefix+"_CHAIN_ID", "CHAIN_ID")

	return v
}

// Load reads configuration from the optional config file, the environment and
// any flags already bound to v. An empty configFile searches the default
// locations and tolerates a missing file; an explicit path must exist.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("mytoken")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.mytoken")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, mytoken.NewConfigError("config file", fmt.Errorf("%w: %v", mytoken.ErrInvalidConfig, err))
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, mytoken.NewConfigError("", fmt.Errorf("%w: %v", mytoken.ErrInvalidConfig, err))
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables that are already set are left alone, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return mytoken.NewConfigError("env file", fmt.Errorf("%w: %v", mytoken.ErrInvalidConfig, err))
	}
	return nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc_url", mytoken.DefaultRPCURL)
	v.SetDefault("chain_id", 0)
	v.SetDefault("artifact", mytoken.DefaultArtifactPath)
	v.SetDefault("contract_name", mytoken.DefaultContractName)
	v.SetDefault("broadcast_dir", "broadcast/Deploy")

	v.SetDefault("tx.legacy", false)
	v.SetDefault("tx.gas_price_bump_percent", 0)
	v.SetDefault("tx.gas_limit_buffer_percent", 20)
	v.SetDefault("tx.receipt_timeout", "2m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("output.format", "text")

	v.SetDefault("metrics.textfile", "")
}

// validate checks Config values against their struct tags. Field names in
// errors are the mapstructure keys, so they match the config file and env names.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank validation: %v", err))
	}
	return v
}

// Validate checks that every setting is usable. The first failing field is
// reported as a ConfigError named after its config key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return mytoken.NewConfigError("", fmt.Errorf("%w: %v", mytoken.ErrInvalidConfig, err))
	}

	fe := fieldErrs[0]
	return mytoken.NewConfigError(fieldKey(fe), fmt.Errorf("%w: %s", mytoken.ErrInvalidConfig, describe(fe)))
}

// fieldKey strips the struct name from the namespace: "Config.tx.receipt_timeout"
// becomes "tx.receipt_timeout".
func fieldKey(fe validator.FieldError) string {
	_, key, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return key
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "notblank", "required":
		return "must not be empty"
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// normalize lowercases the enum settings so "JSON" and "json" are equivalent.
func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
}
