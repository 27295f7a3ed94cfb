package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shaiso/sensorhub/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"DB_URL", "RABBITMQ_URL", "SENSORHUB_SOCKET_NETWORK", "SENSORHUB_SOCKET_PATH",
		"SENSORHUB_MAX_VIEWERS", "SENSORHUB_SAMPLE_INTERVAL", "SENSORHUB_SAMPLE_TIMEOUT",
		"SENSORHUB_SENSOR_COUNT", "SENSORHUB_ROSTER", "SENSORHUB_PRUNE_SCHEDULE",
		"SENSORHUB_RETENTION", "SENSORHUB_HTTP_ADDR",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DBURL != DefaultDBURL {
		t.Errorf("DBURL = %q", cfg.DBURL)
	}
	if cfg.SocketNetwork != "unix" || cfg.SocketPath != DefaultSocketPath {
		t.Errorf("socket = %s:%s", cfg.SocketNetwork, cfg.SocketPath)
	}
	if cfg.MaxViewers != 10 {
		t.Errorf("MaxViewers = %d", cfg.MaxViewers)
	}
	if cfg.SampleInterval != time.Second || cfg.SampleTimeout != 200*time.Millisecond {
		t.Errorf("sample interval/timeout = %v/%v", cfg.SampleInterval, cfg.SampleTimeout)
	}
	if cfg.Retention != 7*24*time.Hour {
		t.Errorf("Retention = %v", cfg.Retention)
	}
	if cfg.RabbitMQURL != "" {
		t.Errorf("RabbitMQURL should be empty by default, got %q", cfg.RabbitMQURL)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SENSORHUB_SOCKET_NETWORK", "tcp")
	t.Setenv("SENSORHUB_SOCKET_PATH", "127.0.0.1:7070")
	t.Setenv("SENSORHUB_MAX_VIEWERS", "3")
	t.Setenv("SENSORHUB_SAMPLE_INTERVAL", "500ms")
	t.Setenv("SENSORHUB_SAMPLE_TIMEOUT", "100ms")
	t.Setenv("SENSORHUB_SENSOR_COUNT", "3")
	t.Setenv("SENSORHUB_RETENTION", "24h")
	t.Setenv("SENSORHUB_ROSTER", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SocketNetwork != "tcp" || cfg.SocketPath != "127.0.0.1:7070" {
		t.Errorf("socket = %s:%s", cfg.SocketNetwork, cfg.SocketPath)
	}
	if cfg.MaxViewers != 3 || cfg.SensorCount != 3 {
		t.Errorf("MaxViewers=%d SensorCount=%d", cfg.MaxViewers, cfg.SensorCount)
	}
	if cfg.SampleInterval != 500*time.Millisecond || cfg.Retention != 24*time.Hour {
		t.Errorf("interval=%v retention=%v", cfg.SampleInterval, cfg.Retention)
	}

	roster, err := cfg.Roster()
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if roster.Len() != 3 {
		t.Errorf("expected 3 sensors, got %d", roster.Len())
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad int", map[string]string{"SENSORHUB_MAX_VIEWERS": "many"}},
		{"bad duration", map[string]string{"SENSORHUB_SAMPLE_INTERVAL": "soon"}},
		{"zero viewers", map[string]string{"SENSORHUB_MAX_VIEWERS": "0"}},
		{"bad network", map[string]string{"SENSORHUB_SOCKET_NETWORK": "udp"}},
		{"timeout above interval", map[string]string{"SENSORHUB_SAMPLE_TIMEOUT": "2s"}},
		{"too many sensors", map[string]string{"SENSORHUB_SENSOR_COUNT": "9"}},
		{"bad prune schedule", map[string]string{"SENSORHUB_PRUNE_SCHEDULE": "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SENSORHUB_ROSTER", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate_ErrInvalid(t *testing.T) {
	cfg := &Config{SocketNetwork: "unix", SocketPath: "/tmp/x.sock", SampleInterval: time.Second, SampleTimeout: time.Second, SensorCount: 1}
	if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for zero viewers, got %v", err)
	}
}

func TestParseRoster(t *testing.T) {
	data := []byte(`
sensors:
  - address: 0x40
    name: Greenhouse
  - address: 0x41
    active: false
  - address: 66
`)

	roster, err := ParseRoster(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sensors := roster.Sensors()
	if len(sensors) != 3 {
		t.Fatalf("expected 3 sensors, got %d", len(sensors))
	}
	if sensors[0].Name != "Greenhouse" || !sensors[0].Active {
		t.Errorf("unexpected first sensor: %+v", sensors[0])
	}
	if sensors[1].Active {
		t.Error("second sensor should be inactive")
	}
	if sensors[2].Address != 0x42 || sensors[2].Name != "Sensor_42" {
		t.Errorf("unexpected third sensor: %+v", sensors[2])
	}
}

func TestParseRoster_Errors(t *testing.T) {
	if _, err := ParseRoster([]byte("sensors: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := ParseRoster([]byte("sensors: []")); !errors.Is(err, domain.ErrEmptyRoster) {
		t.Errorf("expected ErrEmptyRoster, got %v", err)
	}
	dup := []byte("sensors:\n  - address: 0x40\n  - address: 0x40\n")
	if _, err := ParseRoster(dup); !errors.Is(err, domain.ErrDuplicateAddress) {
		t.Errorf("expected ErrDuplicateAddress, got %v", err)
	}
}

func TestLoadRosterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte("sensors:\n  - address: 0x48\n    name: Attic\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{RosterPath: path}
	roster, err := cfg.Roster()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, err := roster.Get(0x48)
	if err != nil || s.Name != "Attic" {
		t.Errorf("unexpected sensor: %+v, %v", s, err)
	}

	if _, err := LoadRosterFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
