package main

import (
	"io/ioutil"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/qri-io/meds"
)

// Config is the optional TOML file given with --config. Command line flags
// override it.
type Config struct {
	LogLevel        string `toml:"log_level" default:"warn"`
	Extension       string `toml:"extension" default:"image_cutouts"`
	CheckContiguity bool   `toml:"check_contiguity"`
	CacheSize       int    `toml:"cache_size" default:"-1"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:  "warn",
		Extension: string(meds.ImageCutouts),
		CacheSize: -1,
	}
}

func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config file")
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config file %s", path)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, errors.Wrapf(err, "config file %s", path)
	}
	return cfg, nil
}

// options turns the config into archive options. A negative cache size
// keeps the library default.
func (c Config) options() []meds.Option {
	opts := []meds.Option{
		meds.WithLogger(logrus.StandardLogger()),
		meds.WithImageExtension(meds.Extension(c.Extension)),
	}
	if c.CheckContiguity {
		opts = append(opts, meds.WithContiguityCheck())
	}
	if c.CacheSize >= 0 {
		opts = append(opts, meds.WithChunkCacheSize(c.CacheSize))
	}
	return opts
}
