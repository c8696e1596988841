package config

import (
	"errors"
	"fmt"
)

// Known stream topics.
const (
	TopicPredictions = "predictions"
	TopicPipeline    = "pipeline"
	TopicSystem      = "system"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Credentials.Username == "" {
		return errors.New("credentials.username is required")
	}
	if c.Credentials.Password == "" {
		return errors.New("credentials.password is required")
	}

	if err := c.Database.Postgres.validate("database.postgres"); err != nil {
		return err
	}

	if len(c.Topics) == 0 {
		return errors.New("at least one topic is required")
	}
	for i, topic := range c.Topics {
		switch topic.Name {
		case TopicPredictions, TopicPipeline, TopicSystem:
		default:
			return fmt.Errorf("topics[%d].name %q is not a known topic", i, topic.Name)
		}
		if topic.TaskID != "" && topic.Name != TopicPipeline {
			return fmt.Errorf("topics[%d]: task_id is only valid on the pipeline topic", i)
		}
	}

	if c.Recorder.BatchSize < 1 {
		return errors.New("recorder.batch_size must be >= 1")
	}
	if c.Recorder.BufferSize < 1 {
		return errors.New("recorder.buffer_size must be >= 1")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
