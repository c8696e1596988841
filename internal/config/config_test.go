package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-consumer
api:
  rest_url: https://staging.finexia.io
credentials:
  username: svc@finexia.io
  password: testpass
database:
  postgres:
    host: localhost
    port: 5432
    name: test_db
    user: testuser
    password: testpass
topics:
  - name: predictions
  - name: pipeline
    task_id: run-7
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-consumer" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-consumer")
	}
	if cfg.API.RestURL != "https://staging.finexia.io" {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, "https://staging.finexia.io")
	}
	if len(cfg.Topics) != 2 || cfg.Topics[1].TaskID != "run-7" {
		t.Errorf("Topics = %+v", cfg.Topics)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_FINEXIA_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-consumer
credentials:
  username: svc@finexia.io
  password: ${TEST_FINEXIA_PASSWORD}
database:
  postgres:
    host: localhost
    name: test_db
    user: testuser
    password: ${TEST_FINEXIA_PASSWORD}
topics:
  - name: system
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Credentials.Password != "secret123" {
		t.Errorf("Credentials.Password = %q, want %q", cfg.Credentials.Password, "secret123")
	}
	if cfg.Database.Postgres.Password != "secret123" {
		t.Errorf("Database.Postgres.Password = %q, want %q", cfg.Database.Postgres.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-consumer
credentials:
  username: svc@finexia.io
  password: testpass
database:
  postgres:
    host: localhost
    name: test_db
    user: testuser
    password: testpass
topics:
  - name: predictions
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want default %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.API.StreamURL != "wss://api.finexia.io" {
		t.Errorf("API.StreamURL = %q, want wss://api.finexia.io", cfg.API.StreamURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("Database.Postgres.Port = %d, want default %d", cfg.Database.Postgres.Port, DefaultDBPort)
	}
	if cfg.Recorder.BatchSize != DefaultBatchSize {
		t.Errorf("Recorder.BatchSize = %d, want default %d", cfg.Recorder.BatchSize, DefaultBatchSize)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("Health.Port = %d, want default %d", cfg.Health.Port, DefaultHealthPort)
	}
}

func TestStreamURLFromRest(t *testing.T) {
	tests := []struct {
		rest string
		want string
	}{
		{"https://api.finexia.io", "wss://api.finexia.io"},
		{"http://localhost:8000", "ws://localhost:8000"},
		{"wss://already.ws", "wss://already.ws"},
	}
	for _, tt := range tests {
		if got := StreamURLFromRest(tt.rest); got != tt.want {
			t.Errorf("StreamURLFromRest(%q) = %q, want %q", tt.rest, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	validDB := DatabaseConfig{
		Postgres: DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 10, MinConns: 2},
	}
	validCreds := CredentialsConfig{Username: "svc@finexia.io", Password: "pass"}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing instance id",
			cfg:     Config{},
			wantErr: "instance.id is required",
		},
		{
			name: "missing credentials",
			cfg: Config{
				Instance: InstanceConfig{ID: "test"},
			},
			wantErr: "credentials.username is required",
		},
		{
			name: "missing postgres host",
			cfg: Config{
				Instance:    InstanceConfig{ID: "test"},
				Credentials: validCreds,
			},
			wantErr: "database.postgres.host is required",
		},
		{
			name: "no topics",
			cfg: Config{
				Instance:    InstanceConfig{ID: "test"},
				Credentials: validCreds,
				Database:    validDB,
			},
			wantErr: "at least one topic is required",
		},
		{
			name: "unknown topic",
			cfg: Config{
				Instance:    InstanceConfig{ID: "test"},
				Credentials: validCreds,
				Database:    validDB,
				Topics:      []TopicConfig{{Name: "orders"}},
			},
			wantErr: `topics[0].name "orders" is not a known topic`,
		},
		{
			name: "task id on non-pipeline topic",
			cfg: Config{
				Instance:    InstanceConfig{ID: "test"},
				Credentials: validCreds,
				Database:    validDB,
				Topics:      []TopicConfig{{Name: "predictions", TaskID: "run-1"}},
			},
			wantErr: "topics[0]: task_id is only valid on the pipeline topic",
		},
		{
			name: "min_conns exceeds max_conns",
			cfg: Config{
				Instance:    InstanceConfig{ID: "test"},
				Credentials: validCreds,
				Database: DatabaseConfig{
					Postgres: DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10},
				},
			},
			wantErr: "database.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "valid config",
			cfg: Config{
				Instance:    InstanceConfig{ID: "test"},
				Credentials: validCreds,
				Database:    validDB,
				Topics:      []TopicConfig{{Name: "predictions"}, {Name: "pipeline", TaskID: "run-1"}},
				Recorder:    RecorderConfig{BatchSize: 500, BufferSize: 10000},
				Health:      HealthConfig{Port: 8090},
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
