// Package config loads the monitor configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete monitor configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	CANSock     CANSockConfig     `yaml:"cansock"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	RemoteStats RemoteStatsConfig `yaml:"remote_stats"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	SourceDir   SourceDirConfig   `yaml:"source_directory"`
	UI          UIConfig          `yaml:"ui"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig contains general instance settings
type ServerConfig struct {
	Name   string `yaml:"name"`
	NodeID string `yaml:"node_id"`
}

// PipelineConfig bounds the in-memory stream pipeline
type PipelineConfig struct {
	Capacity    int `yaml:"capacity"`
	VisibleRows int `yaml:"visible_rows"`
	TopClasses  int `yaml:"top_classes"`
}

// CANSockConfig contains the candump-over-TCP feed settings
type CANSockConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MQTTConfig contains the MQTT bridge feed settings
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// RemoteStatsConfig contains the remote aggregate service settings
type RemoteStatsConfig struct {
	Enabled           bool   `yaml:"enabled"`
	URL               string `yaml:"url"`
	FetchIntervalSec  int    `yaml:"fetch_interval_seconds"`
	RequestTimeoutSec int    `yaml:"request_timeout_seconds"`
	MaxRetries        int    `yaml:"max_retries"`
	MaxAgeSec         int    `yaml:"max_age_seconds"`
}

// CatalogConfig contains message class catalog settings
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Plist string `yaml:"plist"`
}

// SourceDirConfig contains the source address directory settings
type SourceDirConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// UIConfig contains dashboard settings
type UIConfig struct {
	Dashboard bool `yaml:"dashboard"`
	TargetFPS int  `yaml:"target_fps"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Load loads configuration from a YAML file
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.Capacity <= 0 {
		c.Pipeline.Capacity = 10000
	}
	if c.Pipeline.VisibleRows <= 0 {
		c.Pipeline.VisibleRows = 50
	}
	if c.Pipeline.TopClasses <= 0 {
		c.Pipeline.TopClasses = 10
	}
	if c.CANSock.Port <= 0 {
		c.CANSock.Port = 20001
	}
	if c.MQTT.Port <= 0 {
		c.MQTT.Port = 1883
	}
	if c.UI.TargetFPS <= 0 {
		c.UI.TargetFPS = 30
	}
}

// Print displays the configuration
func (c *Config) Print() {
	fmt.Printf("Server: %s (%s)\n", c.Server.Name, c.Server.NodeID)
	fmt.Printf("Pipeline: %d frames buffered, %d visible, top %d classes\n",
		c.Pipeline.Capacity, c.Pipeline.VisibleRows, c.Pipeline.TopClasses)
	if c.CANSock.Enabled {
		fmt.Printf("CAN socket feed: %s:%d\n", c.CANSock.Host, c.CANSock.Port)
	}
	if c.MQTT.Enabled {
		fmt.Printf("MQTT feed: %s:%d (topic: %s)\n", c.MQTT.Broker, c.MQTT.Port, c.MQTT.Topic)
	}
	if c.RemoteStats.Enabled {
		fmt.Printf("Remote stats: %s every %ds\n", c.RemoteStats.URL, c.RemoteStats.FetchIntervalSec)
	}
	if c.SourceDir.Enabled {
		fmt.Printf("Source directory: %s\n", c.SourceDir.Path)
	}
}
