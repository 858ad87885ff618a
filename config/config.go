package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds everything the relay reads from its TOML file.
type Config struct {
	Listen      string
	MetricsPath string
	Store       Store
	Collections Collections
}

// Store locates the bbolt file holding every collection.
type Store struct {
	Path string
}

// Collections names the collections the relay serves.
type Collections struct {
	Incidents   string
	Scratchpads string
}

func Default() Config {
	return Config{
		Listen:      ":8080",
		MetricsPath: "/metrics",
		Store:       Store{Path: "relay.db"},
		Collections: Collections{Incidents: "incidents", Scratchpads: "scratchpads"},
	}
}

// Load reads the TOML file at path on top of Default, then applies
// environment overrides. A .env file next to the process is loaded first if
// present.
func Load(path string) (Config, error) {
	conf := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &conf)
		if err != nil {
			return conf, fmt.Errorf("[config.Load] decode %s: %w", path, err)
		}
		if keys := md.Undecoded(); len(keys) > 0 {
			return conf, fmt.Errorf("[config.Load] unknown keys in %s: %v", path, keys)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return conf, fmt.Errorf("[config.Load] read .env: %w", err)
	}
	conf.applyEnv()

	if err := conf.Validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RELAY_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("RELAY_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
}

func (c Config) Validate() error {
	switch {
	case c.Listen == "":
		return fmt.Errorf("[config] listen address must be set")
	case c.Store.Path == "":
		return fmt.Errorf("[config] store path must be set")
	case c.Collections.Incidents == "" || c.Collections.Scratchpads == "":
		return fmt.Errorf("[config] collection names must be set")
	case c.Collections.Incidents == c.Collections.Scratchpads:
		return fmt.Errorf("[config] collection names must differ")
	}
	return nil
}
