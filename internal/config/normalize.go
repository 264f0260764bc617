package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScheduler()
	c.normalizeMets()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"workspace_dir", &c.Paths.WorkspaceDir},
		{"staging_dir", &c.Paths.StagingDir},
		{"collection_dir", &c.Paths.CollectionDir},
		{"log_dir", &c.Paths.LogDir},
	}
	for _, field := range fields {
		trimmed := strings.TrimSpace(*field.value)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", field.name, err)
		}
		*field.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeScheduler() {
	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = defaultWorkers
	}
	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = defaultPollInterval
	}
	if c.Scheduler.HeartbeatInterval <= 0 {
		c.Scheduler.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Scheduler.HeartbeatTimeout <= 0 {
		c.Scheduler.HeartbeatTimeout = defaultHeartbeatTimeout
	}
}

func (c *Config) normalizeMets() {
	c.Mets.GroupTemplate = strings.TrimSpace(c.Mets.GroupTemplate)
	if c.Mets.GroupTemplate == "" {
		c.Mets.GroupTemplate = defaultGroupTemplate
	}
	c.Mets.DocumentName = strings.TrimSpace(c.Mets.DocumentName)
	if c.Mets.DocumentName == "" {
		c.Mets.DocumentName = defaultDocumentName
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
