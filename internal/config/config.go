// Package config loads the rendering options from defaults, an optional config
// file, GOTSD_* environment variables and command-line flags.
package config

import (
	"strings"

	"gotsd/internal/errs"

	"github.com/spf13/viper"
)

const (
	KeyIndentation     = "indentation"
	KeyCamelCase       = "camelCaseMemberNames"
	KeySpecialTypes    = "includeSpecialTypesPreamble"
	KeyNameFilter      = "nameFilter"
	KeyStrict          = "strict"
	KeyOutput          = "output"
	KeyGoPackage       = "goPackage"
	KeyGoOutput        = "goOutput"
	KeyLogJSON         = "logJSON"
	KeyDownloadPackage = "downloadPackage"
)

// Config holds every recognized option. It is loaded once and passed by value.
type Config struct {
	// Indentation is the literal string used per nesting level.
	Indentation string `mapstructure:"indentation"`

	CamelCaseMemberNames        bool   `mapstructure:"camelCaseMemberNames"`
	IncludeSpecialTypesPreamble bool   `mapstructure:"includeSpecialTypesPreamble"`
	NameFilter                  string `mapstructure:"nameFilter"`

	// Strict aborts on the first unresolved type reference instead of
	// substituting an opaque type.
	Strict bool `mapstructure:"strict"`

	Output          string `mapstructure:"output"`
	GoPackage       string `mapstructure:"goPackage"`
	GoOutput        string `mapstructure:"goOutput"`
	LogJSON         bool   `mapstructure:"logJSON"`
	DownloadPackage string `mapstructure:"downloadPackage"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Indentation:          "    ",
		CamelCaseMemberNames: true,
		GoPackage:            "declarations",
		DownloadPackage:      "microsoft.windows.sdk.contracts",
	}
}

var indentPresets = map[string]string{
	"tab":    "\t",
	"space2": "  ",
	"space4": "    ",
}

// SetDefaults registers the defaults on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyIndentation, d.Indentation)
	v.SetDefault(KeyCamelCase, d.CamelCaseMemberNames)
	v.SetDefault(KeySpecialTypes, d.IncludeSpecialTypesPreamble)
	v.SetDefault(KeyNameFilter, d.NameFilter)
	v.SetDefault(KeyStrict, d.Strict)
	v.SetDefault(KeyOutput, d.Output)
	v.SetDefault(KeyGoPackage, d.GoPackage)
	v.SetDefault(KeyGoOutput, d.GoOutput)
	v.SetDefault(KeyLogJSON, d.LogJSON)
	v.SetDefault(KeyDownloadPackage, d.DownloadPackage)
}

// NewViper returns a viper instance with defaults and environment binding.
// When configPath is empty, gotsd.{yaml,toml,json} in the working directory is
// picked up if present.
func NewViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("GOTSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrapf(err, "failed to read config file %s", configPath)
		}
		return v, nil
	}

	v.SetConfigName("gotsd")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errs.As(err, &notFound) {
			return nil, errs.Wrap(err, "failed to read config file")
		}
	}
	return v, nil
}

// Load unmarshals v into a Config and normalizes it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "failed to unmarshal config")
	}
	if preset, ok := indentPresets[strings.ToLower(cfg.Indentation)]; ok {
		cfg.Indentation = preset
	}
	if cfg.Indentation == "" {
		cfg.Indentation = Default().Indentation
	}
	return cfg, nil
}
