// Package config loads daemon configuration from an optional YAML file and
// DAEMON_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DAEMON_SIGNALS_MODE.
const EnvPrefix = "DAEMON"

// #region config-types
// Config is the full daemon configuration.
type Config struct {
	DataDir     string            `mapstructure:"data_dir" yaml:"data_dir" validate:"required"`
	RulesPath   string            `mapstructure:"rules_path" yaml:"rules_path"`
	Database    string            `mapstructure:"database" yaml:"database" validate:"required"` // souls, concepts, interactions, fusion log
	VectorDir   string            `mapstructure:"vector_dir" yaml:"vector_dir"` // empty keeps vectors in memory
	Signals     SignalsConfig     `mapstructure:"signals" yaml:"signals"`
	Fusion      FusionConfig      `mapstructure:"fusion" yaml:"fusion"`
	Soul        SoulConfig        `mapstructure:"soul" yaml:"soul"`
	Match       MatchConfig       `mapstructure:"match" yaml:"match"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval" yaml:"retrieval"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance" yaml:"maintenance"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// SignalsConfig selects and tunes the signal providers.
type SignalsConfig struct {
	Mode               string        `mapstructure:"mode" yaml:"mode" validate:"oneof=basic enhanced"`
	CodecAddr          string        `mapstructure:"codec_addr" yaml:"codec_addr" validate:"required_if=Mode enhanced"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	EmbeddingInfluence float64       `mapstructure:"embedding_influence" yaml:"embedding_influence" validate:"gte=0,lte=1"`
	KeywordBoost       float64       `mapstructure:"keyword_boost" yaml:"keyword_boost" validate:"gte=0,lte=1"`
}

// FusionConfig holds arbiter weights and adaptation bounds.
type FusionConfig struct {
	Weights      map[string]float64 `mapstructure:"weights" yaml:"weights" validate:"required,dive,keys,oneof=emotion linguistic logging,endkeys,gte=0"`
	LearningRate float64            `mapstructure:"learning_rate" yaml:"learning_rate" validate:"gte=0"`
	MinWeight    float64            `mapstructure:"min_weight" yaml:"min_weight" validate:"gte=0,lte=1"`
	MaxWeight    float64            `mapstructure:"max_weight" yaml:"max_weight" validate:"gte=0,lte=1"`
}

// SoulConfig holds the moving-average retention factors.
type SoulConfig struct {
	VectorRetention    float64 `mapstructure:"vector_retention" yaml:"vector_retention" validate:"gte=0,lte=1"`
	AlignmentRetention float64 `mapstructure:"alignment_retention" yaml:"alignment_retention" validate:"gte=0,lte=1"`
}

// MatchConfig holds the compliance lemma-matching tunables.
type MatchConfig struct {
	MinLemmaLen       int `mapstructure:"min_lemma_len" yaml:"min_lemma_len" validate:"gte=0"`
	MinRootCompareLen int `mapstructure:"min_root_compare_len" yaml:"min_root_compare_len" validate:"gte=0"`
	RootTrim          int `mapstructure:"root_trim" yaml:"root_trim" validate:"gte=0"`
	MinRootLen        int `mapstructure:"min_root_len" yaml:"min_root_len" validate:"gte=1"`
	MaxCommandMatches int `mapstructure:"max_command_matches" yaml:"max_command_matches" validate:"gte=0"`
}

// RetrievalConfig tunes similar-memory lookup.
type RetrievalConfig struct {
	TopK                int     `mapstructure:"top_k" yaml:"top_k" validate:"gte=1"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" yaml:"similarity_threshold" validate:"gte=-1,lte=1"`
	SameUserOnly        bool    `mapstructure:"same_user_only" yaml:"same_user_only"`
}

// MaintenanceConfig controls the periodic consolidation cycle.
type MaintenanceConfig struct {
	Enabled            bool    `mapstructure:"enabled" yaml:"enabled"`
	Schedule           string  `mapstructure:"schedule" yaml:"schedule"`
	DecayHalfLifeHours float64 `mapstructure:"decay_half_life_hours" yaml:"decay_half_life_hours" validate:"gte=0"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr" validate:"required_if=Enabled true"`
}

// #endregion config-types

// #region defaults
// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		DataDir:   "data",
		RulesPath: "rules.yaml",
		Database:  "triad.db",
		VectorDir: "vectors",
		Signals: SignalsConfig{
			Mode:               "basic",
			Timeout:            10 * time.Second,
			EmbeddingInfluence: 0.2,
			KeywordBoost:       0.15,
		},
		Fusion: FusionConfig{
			Weights:      map[string]float64{"emotion": 0.33, "linguistic": 0.34, "logging": 0.33},
			LearningRate: 0.05,
			MinWeight:    0.1,
			MaxWeight:    0.6,
		},
		Soul: SoulConfig{
			VectorRetention:    0.9,
			AlignmentRetention: 0.9,
		},
		Match: MatchConfig{
			MinLemmaLen:       3,
			MinRootCompareLen: 5,
			RootTrim:          3,
			MinRootLen:        4,
			MaxCommandMatches: 3,
		},
		Retrieval: RetrievalConfig{
			TopK:                3,
			SimilarityThreshold: -1,
			SameUserOnly:        true,
		},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: "@every 6h",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
	}
}

// #endregion defaults

// #region load
// Load reads configuration. An empty path uses defaults plus environment
// overrides. A path that does not exist is created with the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		path = expandPath(path)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := Default().SaveToPath(path); err != nil {
				return nil, fmt.Errorf("failed to write default config: %w", err)
			}
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DataDir = expandPath(cfg.DataDir)
	return &cfg, nil
}

// setDefaults registers every key so that environment overrides apply even
// without a config file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("rules_path", d.RulesPath)
	v.SetDefault("database", d.Database)
	v.SetDefault("vector_dir", d.VectorDir)

	v.SetDefault("signals.mode", d.Signals.Mode)
	v.SetDefault("signals.codec_addr", d.Signals.CodecAddr)
	v.SetDefault("signals.timeout", d.Signals.Timeout)
	v.SetDefault("signals.embedding_influence", d.Signals.EmbeddingInfluence)
	v.SetDefault("signals.keyword_boost", d.Signals.KeywordBoost)

	v.SetDefault("fusion.weights", d.Fusion.Weights)
	v.SetDefault("fusion.learning_rate", d.Fusion.LearningRate)
	v.SetDefault("fusion.min_weight", d.Fusion.MinWeight)
	v.SetDefault("fusion.max_weight", d.Fusion.MaxWeight)

	v.SetDefault("soul.vector_retention", d.Soul.VectorRetention)
	v.SetDefault("soul.alignment_retention", d.Soul.AlignmentRetention)

	v.SetDefault("match.min_lemma_len", d.Match.MinLemmaLen)
	v.SetDefault("match.min_root_compare_len", d.Match.MinRootCompareLen)
	v.SetDefault("match.root_trim", d.Match.RootTrim)
	v.SetDefault("match.min_root_len", d.Match.MinRootLen)
	v.SetDefault("match.max_command_matches", d.Match.MaxCommandMatches)

	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("retrieval.similarity_threshold", d.Retrieval.SimilarityThreshold)
	v.SetDefault("retrieval.same_user_only", d.Retrieval.SameUserOnly)

	v.SetDefault("maintenance.enabled", d.Maintenance.Enabled)
	v.SetDefault("maintenance.schedule", d.Maintenance.Schedule)
	v.SetDefault("maintenance.decay_half_life_hours", d.Maintenance.DecayHalfLifeHours)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.pretty", d.Logging.Pretty)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

// #endregion load

// #region save
// SaveToPath writes the configuration as YAML.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// #endregion save

// #region validate
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Fusion.MinWeight > c.Fusion.MaxWeight {
		return fmt.Errorf("fusion.min_weight %.2f exceeds fusion.max_weight %.2f", c.Fusion.MinWeight, c.Fusion.MaxWeight)
	}
	var sum float64
	for _, w := range c.Fusion.Weights {
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("fusion.weights must have a positive sum")
	}
	return nil
}

// #endregion validate

// #region paths
// Path resolves p against DataDir unless it is absolute or empty.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// EnsureDirectories creates DataDir.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// #endregion paths
