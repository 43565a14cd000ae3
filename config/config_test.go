package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testYAML = `
server:
  name: "Test Monitor"
  node_id: "mon-1"
pipeline:
  capacity: 5000
  visible_rows: 40
  top_classes: 5
cansock:
  enabled: true
  host: "10.0.0.5"
  port: 20001
mqtt:
  enabled: true
  broker: "broker.local"
  topic: "can/frames"
remote_stats:
  enabled: true
  url: "http://stats.local/api/summary"
  fetch_interval_seconds: 10
catalog:
  path: "data/catalog.db"
  plist: "data/classes.plist"
source_directory:
  enabled: true
  path: "data/sources"
ui:
  dashboard: true
logging:
  enabled: true
  dir: "logs"
  retention_days: 3
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.NodeID != "mon-1" {
		t.Fatalf("node id = %q", cfg.Server.NodeID)
	}
	if cfg.Pipeline.Capacity != 5000 || cfg.Pipeline.VisibleRows != 40 || cfg.Pipeline.TopClasses != 5 {
		t.Fatalf("unexpected pipeline config: %+v", cfg.Pipeline)
	}
	if !cfg.CANSock.Enabled || cfg.CANSock.Host != "10.0.0.5" {
		t.Fatalf("unexpected cansock config: %+v", cfg.CANSock)
	}
	if cfg.MQTT.Port != 1883 {
		t.Fatalf("mqtt port default not applied: %+v", cfg.MQTT)
	}
	if cfg.RemoteStats.URL != "http://stats.local/api/summary" || cfg.RemoteStats.FetchIntervalSec != 10 {
		t.Fatalf("unexpected remote stats config: %+v", cfg.RemoteStats)
	}
	if cfg.Logging.RetentionDays != 3 {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  name: minimal\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pipeline.Capacity != 10000 || cfg.Pipeline.VisibleRows != 50 || cfg.Pipeline.TopClasses != 10 {
		t.Fatalf("pipeline defaults not applied: %+v", cfg.Pipeline)
	}
	if cfg.UI.TargetFPS != 30 {
		t.Fatalf("fps default not applied: %+v", cfg.UI)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [broken")); err == nil {
		t.Fatalf("expected error for malformed yaml")
	}
}
