package config

const (
	defaultWorkspaceDir      = "~/.local/share/scriptorium/workspace"
	defaultStagingDir        = "~/.local/share/scriptorium/staging"
	defaultCollectionDir     = "~/.local/share/scriptorium/collections"
	defaultLogDir            = "~/.local/share/scriptorium/logs"
	defaultAPIBind           = "127.0.0.1:7781"
	defaultWorkers           = 2
	defaultPollInterval      = 2
	defaultHeartbeatInterval = 15
	defaultHeartbeatTimeout  = 120
	defaultGroupTemplate     = "OCR-D-IMG_{}"
	defaultDocumentName      = "mets.xml"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir:  defaultWorkspaceDir,
			StagingDir:    defaultStagingDir,
			CollectionDir: defaultCollectionDir,
			LogDir:        defaultLogDir,
			APIBind:       defaultAPIBind,
		},
		Scheduler: Scheduler{
			Workers:           defaultWorkers,
			PollInterval:      defaultPollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Mets: Mets{
			GroupTemplate: defaultGroupTemplate,
			DocumentName:  defaultDocumentName,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
