package api

// JobView is the transport representation of a scheduled job.
type JobView struct {
	ID               string `json:"id"`
	Project          string `json:"project"`
	Sandbox          string `json:"sandbox"`
	ParentTrack      string `json:"parentTrack"`
	ShortDescription string `json:"shortDescription,omitempty"`
	Status           string `json:"status"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	ResultTrack      string `json:"resultTrack,omitempty"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
	StartedAt        string `json:"startedAt,omitempty"`
	FinishedAt       string `json:"finishedAt,omitempty"`
	LastHeartbeat    string `json:"lastHeartbeat,omitempty"`
}

// LockView is the transport representation of a snapshot lock.
type LockView struct {
	SourceID string `json:"sourceId"`
	Comment  string `json:"comment,omitempty"`
	LockedAt string `json:"lockedAt"`
}

// SnapshotView is the transport representation of one snapshot node,
// carrying its derived snapshots recursively.
type SnapshotView struct {
	Track       []int          `json:"track"`
	Dotted      string         `json:"dotted"`
	Label       string         `json:"label,omitempty"`
	Description string         `json:"description,omitempty"`
	Lock        *LockView      `json:"lock,omitempty"`
	Children    []SnapshotView `json:"children,omitempty"`
}

// HealthView summarizes job store state for status surfaces.
type HealthView struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running   bool       `json:"running"`
	PID       int        `json:"pid"`
	Workers   int        `json:"workers"`
	Jobs      HealthView `json:"jobs"`
	Workspace string     `json:"workspace"`
}
