// Package config loads the server's yaml configuration with environment
// overrides for deployment knobs.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`
	Engine EngineConfig `yaml:"engine" json:"engine"`
	Tasks  TasksConfig  `yaml:"tasks" json:"tasks"`
	Backup BackupConfig `yaml:"backup" json:"backup"`
}

type ServerConfig struct {
	Port    int    `yaml:"port" json:"port"`
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

type EngineConfig struct {
	// DebounceMS is the window state toggles coalesce in before the
	// surviving patch is persisted.
	DebounceMS int    `yaml:"debounce_ms" json:"debounce_ms"`
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url"`
}

type TasksConfig struct {
	// WorkOnWeekends disables the weekend skip when punting work tasks.
	WorkOnWeekends bool `yaml:"work_on_weekends" json:"work_on_weekends"`
}

type BackupConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Schedule is a cron expression; default is daily at 03:30.
	Schedule string `yaml:"schedule" json:"schedule"`
	Dir      string `yaml:"dir" json:"dir"`
}

func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.DataDir == "" {
		c.Server.DataDir = "data"
	}
	if c.Engine.DebounceMS == 0 {
		c.Engine.DebounceMS = 3000
	}
	if c.Backup.Schedule == "" {
		c.Backup.Schedule = "30 3 * * *"
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "backups"
	}
}

// Load reads path, falling back to pure defaults when the file does not
// exist. Environment overrides apply last.
func Load(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	c.ApplyDefaults()
	c.applyEnv()
	return &c, nil
}
