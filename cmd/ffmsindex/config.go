package main

import (
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// config is the resolved ffmsindex configuration. Flags win over FFMS_*
// environment variables, which win over config.yaml.
type config struct {
	Force     bool
	TrackMask int64
	DumpMask  int64
	AudioName string
	Errors    string
	Timecodes bool
	Keyframes bool
	Backend   string
	Cache     bool
	Verbose   bool
}

// configDir holds config.yaml.
var configDir = filepath.Join(xdg.ConfigHome, "ffms")

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("force", false)
	v.SetDefault("track-mask", 0)
	v.SetDefault("dump-mask", 0)
	v.SetDefault("audio-name", "")
	v.SetDefault("errors", "ignore")
	v.SetDefault("timecodes", false)
	v.SetDefault("keyframes", false)
	v.SetDefault("backend", "auto")
	v.SetDefault("cache", false)
	v.SetDefault("verbose", false)

	v.SetEnvPrefix("FFMS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	return v
}

func loadConfig(v *viper.Viper, cmd *cobra.Command) (*config, error) {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errors.Wrap(err, "cannot bind flags")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "cannot read config file")
		}
	}
	cfg := &config{
		Force:     v.GetBool("force"),
		TrackMask: v.GetInt64("track-mask"),
		DumpMask:  v.GetInt64("dump-mask"),
		AudioName: v.GetString("audio-name"),
		Errors:    v.GetString("errors"),
		Timecodes: v.GetBool("timecodes"),
		Keyframes: v.GetBool("keyframes"),
		Backend:   v.GetString("backend"),
		Cache:     v.GetBool("cache"),
		Verbose:   v.GetBool("verbose"),
	}
	switch cfg.Backend {
	case "auto", "lavf", "matroska":
	default:
		return nil, errors.Errorf("unknown backend %q", cfg.Backend)
	}
	return cfg, nil
}

// outputPath is the explicit output, the input with .ffindex appended, or
// a file in the user cache directory with --cache.
func outputPath(cfg *config, args []string) (string, error) {
	if len(args) > 1 {
		return args[1], nil
	}
	name := filepath.Base(args[0]) + ".ffindex"
	if cfg.Cache {
		p, err := xdg.CacheFile(filepath.Join("ffms", name))
		return p, errors.Wrap(err, "cannot create cache directory")
	}
	return args[0] + ".ffindex", nil
}
