package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants after normalization.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		problems = append(problems, "paths.workspace_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		problems = append(problems, "paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must be set")
	}
	if c.Scheduler.Workers < 1 || c.Scheduler.Workers > 64 {
		problems = append(problems, fmt.Sprintf("scheduler.workers must be between 1 and 64, got %d", c.Scheduler.Workers))
	}
	if c.Scheduler.HeartbeatTimeout <= c.Scheduler.HeartbeatInterval {
		problems = append(problems, "scheduler.heartbeat_timeout must exceed scheduler.heartbeat_interval")
	}
	if !strings.Contains(c.Mets.GroupTemplate, "{}") {
		problems = append(problems, fmt.Sprintf("mets.group_template %q must contain the {} track placeholder", c.Mets.GroupTemplate))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
