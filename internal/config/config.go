package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config represents the main configuration structure
type Config struct {
	InputDirectory  string         `mapstructure:"input_directory"`
	OutputDirectory string         `mapstructure:"output_directory"`
	Quality         int            `mapstructure:"quality"`
	MaxWidth        int            `mapstructure:"max_width"`
	MaxHeight       int            `mapstructure:"max_height"`
	Overwrite       bool           `mapstructure:"overwrite"`
	Workers         int            `mapstructure:"workers"`
	MinCompression  float64        `mapstructure:"min_compression"` // percent
	AutoOrient      bool           `mapstructure:"auto_orient"`
	Progress        bool           `mapstructure:"progress"`
	Metadata        MetadataConfig `mapstructure:"metadata"`
	Logging         LoggingConfig  `mapstructure:"logging"`
}

// MetadataConfig contains the EXIF marker settings
type MetadataConfig struct {
	SkipMarked bool   `mapstructure:"skip_marked"`
	MarkOutput bool   `mapstructure:"mark_output"`
	Marker     string `mapstructure:"marker"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// FlagKeys maps command line flag names to configuration keys.
var FlagKeys = map[string]string{
	"input":           "input_directory",
	"output":          "output_directory",
	"quality":         "quality",
	"max-width":       "max_width",
	"max-height":      "max_height",
	"overwrite":       "overwrite",
	"workers":         "workers",
	"min-compression": "min_compression",
	"auto-orient":     "auto_orient",
	"progress":        "progress",
	"skip-marked":     "metadata.skip_marked",
	"mark":            "metadata.mark_output",
	"log-file":        "logging.file_path",
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		InputDirectory:  "images",
		OutputDirectory: filepath.Join("images", "compressed"),
		Quality:         85,
		MaxWidth:        1920,
		MaxHeight:       1080,
		Overwrite:       false,
		Workers:         4,
		MinCompression:  0,
		Metadata: MetadataConfig{
			Marker: "image-compressor",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from defaults, an optional config file,
// IMAGE_COMPRESSOR_* environment variables and the given flags, in increasing
// order of precedence. flags may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	config := DefaultConfig()
	v := viper.New()
	setDefaults(v, config)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("image-compressor")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.image-compressor")
		v.AddConfigPath("/etc/image-compressor")
	}

	v.SetEnvPrefix("IMAGE_COMPRESSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("input_directory", c.InputDirectory)
	v.SetDefault("output_directory", c.OutputDirectory)
	v.SetDefault("quality", c.Quality)
	v.SetDefault("max_width", c.MaxWidth)
	v.SetDefault("max_height", c.MaxHeight)
	v.SetDefault("overwrite", c.Overwrite)
	v.SetDefault("workers", c.Workers)
	v.SetDefault("min_compression", c.MinCompression)
	v.SetDefault("auto_orient", c.AutoOrient)
	v.SetDefault("progress", c.Progress)
	v.SetDefault("metadata.skip_marked", c.Metadata.SkipMarked)
	v.SetDefault("metadata.mark_output", c.Metadata.MarkOutput)
	v.SetDefault("metadata.marker", c.Metadata.Marker)
	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.file_path", c.Logging.FilePath)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
	v.SetDefault("logging.compress", c.Logging.Compress)
	v.SetDefault("logging.console", c.Logging.Console)
}

// Validate validates the configuration. The input directory is not checked
// here: a missing input is reported by discovery so the run can fail before
// anything is created.
func (c *Config) Validate() error {
	if c.InputDirectory == "" {
		return fmt.Errorf("input_directory is required")
	}

	if !c.Overwrite && c.OutputDirectory == "" {
		return fmt.Errorf("output_directory is required unless overwrite is set")
	}

	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("invalid quality: %d (valid: 1-100)", c.Quality)
	}

	if c.MaxWidth < 1 || c.MaxHeight < 1 {
		return fmt.Errorf("invalid max size: %dx%d (both must be >= 1)", c.MaxWidth, c.MaxHeight)
	}

	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d (must be >= 1)", c.Workers)
	}

	if c.MinCompression < 0 || c.MinCompression >= 100 {
		return fmt.Errorf("invalid min_compression: %g (valid: 0 <= x < 100)", c.MinCompression)
	}

	if c.Metadata.Marker == "" {
		c.Metadata.Marker = "image-compressor"
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// OutputPathFor returns where the compressed version of inputPath is written.
// The output tree mirrors the input tree relative to the input directory.
func (c *Config) OutputPathFor(inputPath string) (string, error) {
	if c.Overwrite {
		return inputPath, nil
	}
	rel, err := filepath.Rel(c.InputDirectory, inputPath)
	if err != nil {
		return "", fmt.Errorf("relative path for %s: %w", inputPath, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside input directory %s", inputPath, c.InputDirectory)
	}
	return filepath.Join(c.OutputDirectory, rel), nil
}

// NestedOutputDirectory returns the output directory when it lives inside the
// input directory, so discovery can prune it. It returns "" otherwise.
func (c *Config) NestedOutputDirectory() string {
	if c.Overwrite {
		return ""
	}
	in, err := filepath.Abs(c.InputDirectory)
	if err != nil {
		return ""
	}
	out, err := filepath.Abs(c.OutputDirectory)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(in, out)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return c.OutputDirectory
}
