// Package config resolves docshard settings from flags, DOCSHARD_* env vars,
// .docshard.yaml and built-in defaults, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/morozRed/docshard/internal/fileutil"
	"github.com/morozRed/docshard/internal/logging"
	"github.com/morozRed/docshard/internal/rules"
	"github.com/morozRed/docshard/internal/shard"
)

const (
	FileName  = ".docshard.yaml"
	EnvPrefix = "DOCSHARD"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Config is the resolved configuration of one invocation.
type Config struct {
	MaxLines        int       `mapstructure:"maxLines" yaml:"maxLines"`
	PreserveContext bool      `mapstructure:"preserveContext" yaml:"preserveContext"`
	HierarchyLevels []string  `mapstructure:"hierarchyLevels" yaml:"hierarchyLevels"`
	OutputDir       string    `mapstructure:"outputDir" yaml:"outputDir"`
	Workers         int       `mapstructure:"workers" yaml:"workers"`
	RulesFile       string    `mapstructure:"rulesFile" yaml:"rulesFile"`
	Log             LogConfig `mapstructure:"log" yaml:"log"`

	// path of the config file that was read, empty when none was found
	source string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxLines:        500,
		PreserveContext: true,
		HierarchyLevels: shard.DefaultLevels().Names(),
		OutputDir:       "shards",
		Workers:         4,
		Log:             LogConfig{Level: "info", Format: logging.FormatConsole},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("maxLines", d.MaxLines)
	v.SetDefault("preserveContext", d.PreserveContext)
	v.SetDefault("hierarchyLevels", d.HierarchyLevels)
	v.SetDefault("outputDir", d.OutputDir)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("rulesFile", d.RulesFile)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"max-lines":        "maxLines",
	"preserve-context": "preserveContext",
	"levels":           "hierarchyLevels",
	"output":           "outputDir",
	"workers":          "workers",
	"rules":            "rulesFile",
	"log-level":        "log.level",
	"log-format":       "log.format",
}

// Load reads configuration from dir. Flags present in flags are bound so
// that explicitly set flags win over every other source.
func Load(dir string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(".docshard")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for flagName, key := range flagKeys {
			if f := flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind --%s: %w", flagName, err)
				}
			}
		}
	}

	source := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: failed to read %s: %v", ErrInvalidConfig, FileName, err)
		}
	} else {
		source = v.ConfigFileUsed()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.source = source
	if cfg.RulesFile != "" && !filepath.IsAbs(cfg.RulesFile) {
		cfg.RulesFile = filepath.Join(dir, cfg.RulesFile)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MaxLines < 1 {
		return fmt.Errorf("%w: maxLines must be at least 1, got %d", ErrInvalidConfig, c.MaxLines)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("%w: outputDir must not be empty", ErrInvalidConfig)
	}
	if _, err := shard.ParseLevels(c.HierarchyLevels); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Source is the config file that was read, or "" when defaults were used.
func (c *Config) Source() string {
	return c.source
}

// Levels returns the validated hierarchy names.
func (c *Config) Levels() shard.Levels {
	levels, err := shard.ParseLevels(c.HierarchyLevels)
	if err != nil {
		return shard.DefaultLevels()
	}
	return levels
}

// Rules loads the rules file, or returns the built-in rules when none is set.
func (c *Config) Rules() (*rules.Set, error) {
	if c.RulesFile == "" {
		return rules.Default(), nil
	}
	set, err := rules.Load(c.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return set, nil
}

// Hash identifies the settings that influence sharding output. Logging and
// worker count are excluded. The rules file content is folded in.
func (c *Config) Hash() (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "maxLines=%d\npreserveContext=%t\nlevels=%s\n",
		c.MaxLines, c.PreserveContext, strings.Join(c.HierarchyLevels, ","))
	if c.RulesFile != "" {
		hash, err := fileutil.HashFile(c.RulesFile)
		if err != nil {
			return "", fmt.Errorf("failed to hash rules file: %w", err)
		}
		fmt.Fprintf(&buf, "rules=%s\n", hash)
	}
	return fileutil.HashBytes(buf.Bytes()), nil
}

// Marshal renders the configuration as the YAML written by init.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# docshard configuration\n")
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}
