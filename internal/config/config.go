package config

import "time"

// Config is the root configuration for a Finexia stream consumer.
type Config struct {
	Instance    InstanceConfig    `yaml:"instance"`
	API         APIConfig         `yaml:"api"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Database    DatabaseConfig    `yaml:"database"`
	Stream      StreamConfig      `yaml:"stream"`
	Recorder    RecorderConfig    `yaml:"recorder"`
	Topics      []TopicConfig     `yaml:"topics"`
	Health      HealthConfig      `yaml:"health"`
}

// InstanceConfig identifies this consumer instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds Finexia backend settings. StreamURL defaults to RestURL
// with the scheme swapped to ws/wss; the websocket endpoints live on the
// same origin as the REST API.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	StreamURL  string        `yaml:"stream_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// CredentialsConfig holds the login used to obtain stream tokens.
// Password is normally supplied via ${FINEXIA_PASSWORD}.
type CredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DatabaseConfig holds the Postgres connection for recorded events.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StreamConfig holds websocket connection settings.
type StreamConfig struct {
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
}

// RecorderConfig holds batch writer settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// TopicConfig names one stream to subscribe. TaskID narrows the pipeline
// topic to a single run; it is empty for tenant-wide streams.
type TopicConfig struct {
	Name   string `yaml:"name"`
	TaskID string `yaml:"task_id"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}
