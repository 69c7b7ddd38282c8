package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Models    ModelsConfig    `yaml:"models" mapstructure:"models"`
	Training  TrainingConfig  `yaml:"training" mapstructure:"training"`
	Policy    PolicyConfig    `yaml:"policy" mapstructure:"policy"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Chat      ChatConfig      `yaml:"chat" mapstructure:"chat"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the census input files.
type DataConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	DistrictFile string `yaml:"district_file" mapstructure:"district_file"`
	HousingFile  string `yaml:"housing_file" mapstructure:"housing_file"`
	MappingFile  string `yaml:"mapping_file" mapstructure:"mapping_file"`
	// JoinKeys selects the district/housing join key normalisation: "exact" or "fold".
	JoinKeys string `yaml:"join_keys" mapstructure:"join_keys"`

	// Remote copies of the inputs, downloaded into Dir by the fetch command.
	// A .zip URL must hold exactly one file unless a #fragment names the member.
	DistrictURL       string  `yaml:"district_url" mapstructure:"district_url"`
	HousingURL        string  `yaml:"housing_url" mapstructure:"housing_url"`
	MappingURL        string  `yaml:"mapping_url" mapstructure:"mapping_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// ModelsConfig configures model artifact persistence.
type ModelsConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	Persist     bool   `yaml:"persist" mapstructure:"persist"`
	LoadOnStart bool   `yaml:"load_on_start" mapstructure:"load_on_start"`
}

// TrainingConfig holds the hyperparameters shared by every training pass.
type TrainingConfig struct {
	Seed             int64     `yaml:"seed" mapstructure:"seed"`
	TestSize         float64   `yaml:"test_size" mapstructure:"test_size"`
	NEstimators      int       `yaml:"n_estimators" mapstructure:"n_estimators"`
	MaxDepth         int       `yaml:"max_depth" mapstructure:"max_depth"`
	KMeansRestarts   int       `yaml:"kmeans_restarts" mapstructure:"kmeans_restarts"`
	DistrictClusters int       `yaml:"district_clusters" mapstructure:"district_clusters"`
	HousingClusters  int       `yaml:"housing_clusters" mapstructure:"housing_clusters"`
	Contamination    float64   `yaml:"contamination" mapstructure:"contamination"`
	PCAComponents    int       `yaml:"pca_components" mapstructure:"pca_components"`
	SanitationBins   []float64 `yaml:"sanitation_bins" mapstructure:"sanitation_bins"`
	AssetBins        []float64 `yaml:"asset_bins" mapstructure:"asset_bins"`
	WithHousing      bool      `yaml:"with_housing" mapstructure:"with_housing"`
}

// PolicyConfig configures the recommendation views.
type PolicyConfig struct {
	TopLimit int `yaml:"top_limit" mapstructure:"top_limit"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ChatConfig configures the census Q&A assistant.
type ChatConfig struct {
	HistoryLimit      int `yaml:"history_limit" mapstructure:"history_limit"`
	RequestsPerMinute int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CENSUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.district_file", "india-districts-census-2011.csv")
	v.SetDefault("data.housing_file", "india_census_housing-hlpca-full.csv")
	v.SetDefault("data.mapping_file", "hlpca-colnames.csv")
	v.SetDefault("data.join_keys", "exact")
	v.SetDefault("data.requests_per_second", 2)
	v.SetDefault("data.max_retries", 3)
	v.SetDefault("models.dir", "models")
	v.SetDefault("models.persist", true)
	v.SetDefault("models.load_on_start", false)
	v.SetDefault("training.seed", 42)
	v.SetDefault("training.test_size", 0.2)
	v.SetDefault("training.n_estimators", 100)
	v.SetDefault("training.max_depth", 10)
	v.SetDefault("training.kmeans_restarts", 10)
	v.SetDefault("training.district_clusters", 5)
	v.SetDefault("training.housing_clusters", 4)
	v.SetDefault("training.contamination", 0.05)
	v.SetDefault("training.pca_components", 3)
	v.SetDefault("training.sanitation_bins", []float64{0, 20, 50, 100})
	v.SetDefault("training.asset_bins", []float64{0, 20, 50, 100})
	v.SetDefault("training.with_housing", true)
	v.SetDefault("policy.top_limit", 20)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "census.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("chat.history_limit", 20)
	v.SetDefault("chat.requests_per_minute", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings required by mode are present. Modes are
// "train", "serve", "chat" and "fetch". Every problem is reported in one error.
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Data.DistrictFile == "" {
		errs = append(errs, "data.district_file is required")
	}
	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		errs = append(errs, "training.test_size must be between 0 and 1")
	}
	if c.Training.NEstimators <= 0 {
		errs = append(errs, "training.n_estimators must be positive")
	}
	if len(c.Training.SanitationBins) != 4 {
		errs = append(errs, "training.sanitation_bins needs 4 edges")
	}
	if len(c.Training.AssetBins) != 4 {
		errs = append(errs, "training.asset_bins needs 4 edges")
	}
	if c.Data.JoinKeys != "exact" && c.Data.JoinKeys != "fold" {
		errs = append(errs, "data.join_keys must be exact or fold")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "fetch":
		if c.Data.DistrictURL == "" && c.Data.HousingURL == "" && c.Data.MappingURL == "" {
			errs = append(errs, "at least one of data.district_url, data.housing_url, data.mapping_url is required")
		}
		if c.Data.HousingURL != "" && c.Data.MappingURL == "" {
			errs = append(errs, "data.mapping_url is required with data.housing_url")
		}
	case "chat":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed for %s mode: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
