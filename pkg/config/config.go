// Package config persists the commander's flat key/value configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultConfigFile = "config.json"
	DefaultEnvFile    = ".env"
)

// Known configuration keys.
const (
	KeyLeaderPort   = "leader_port"
	KeyFollowerPort = "follower_port"
	KeyRobotCameras = "robot_cameras"
)

// NotSet is shown in place of an unset value.
const NotSet = "Not Set"

// Config is a flat mapping of configuration keys to string values.
type Config map[string]string

// Get returns the value for key, or fallback if it is unset or empty.
func (c Config) Get(key, fallback string) string {
	if v, ok := c[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Describe returns the value for key for display purposes.
func (c Config) Describe(key string) string {
	return c.Get(key, NotSet)
}

// Store reads and writes a Config to a JSON file and a shell-sourceable env file.
type Store struct {
	Path    string
	EnvPath string
}

// NewStore returns a Store using the default file names in the working directory.
func NewStore() *Store {
	return &Store{Path: DefaultConfigFile, EnvPath: DefaultEnvFile}
}

// Load reads the configuration. A missing or malformed file yields an empty
// Config; use LoadErr to find out why.
func (s *Store) Load() Config {
	cfg, _ := s.LoadErr()
	return cfg
}

// LoadErr is like Load but also returns the reason the file could not be used.
// The returned Config is never nil. A missing file is not an error.
func (s *Store) LoadErr() (Config, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", s.Path, err)
	}
	if cfg == nil {
		cfg = Config{}
	}
	return cfg, nil
}

// Save writes the configuration file, then the env file.
func (s *Store) Save(cfg Config) error {
	if cfg == nil {
		cfg = Config{}
	}
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	if s.EnvPath == "" {
		return nil
	}
	if err := godotenv.Write(EnvVars(cfg), s.EnvPath); err != nil {
		return fmt.Errorf("write env file: %w", err)
	}
	return nil
}

// EnvVars returns the shell variables written for cfg. The leader and follower
// ports are each exported under a role name and the toolkit's generic name;
// every other key maps to its upper-case form.
func EnvVars(cfg Config) map[string]string {
	vars := make(map[string]string, len(cfg)+2)
	for key, value := range cfg {
		switch key {
		case KeyLeaderPort:
			vars["LEADER_PORT"] = value
			vars["TELEOP_PORT"] = value
		case KeyFollowerPort:
			vars["FOLLOWER_PORT"] = value
			vars["ROBOT_PORT"] = value
		default:
			vars[strings.ToUpper(key)] = value
		}
	}
	return vars
}

// RoleTitle returns a human readable label for a port key, e.g. "Leader Port".
func RoleTitle(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
