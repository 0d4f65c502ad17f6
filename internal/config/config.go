package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	shp2geojson "github.com/tingold/orb-shp2geojson"
)

// Config holds the full application configuration.
type Config struct {
	Convert ConvertConfig `yaml:"convert" mapstructure:"convert"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ConvertConfig configures shapefile conversion.
type ConvertConfig struct {
	Encoding    string `yaml:"encoding" mapstructure:"encoding"`
	Projection  string `yaml:"projection" mapstructure:"projection"`
	MultiPoint  bool   `yaml:"multipoint" mapstructure:"multipoint"`
	SplitParts  bool   `yaml:"split_parts" mapstructure:"split_parts"`
	TypedFields bool   `yaml:"typed_fields" mapstructure:"typed_fields"`
}

// Options returns the conversion options described by c.
func (c ConvertConfig) Options() *shp2geojson.Options {
	return &shp2geojson.Options{
		MultiPoint:  c.MultiPoint,
		SplitParts:  c.SplitParts,
		TypedFields: c.TypedFields,
	}
}

// ServerConfig configures the demo server.
type ServerConfig struct {
	Port      int    `yaml:"port" mapstructure:"port"`
	ClientDir string `yaml:"client_dir" mapstructure:"client_dir"`
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
	v.SetConfigName("shp2geojson")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SHP2GEOJSON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("convert.encoding", shp2geojson.DefaultEncoding)
	v.SetDefault("convert.projection", "EPSG:4326")
	v.SetDefault("convert.multipoint", false)
	v.SetDefault("convert.split_parts", false)
	v.SetDefault("convert.typed_fields", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.client_dir", "../client")
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
