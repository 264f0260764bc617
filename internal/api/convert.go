package api

import (
	"sort"
	"time"

	"scriptorium/internal/scheduler"
	"scriptorium/internal/snapshot"
	"scriptorium/internal/track"
)

// FromJob converts a stored job into its transport representation.
func FromJob(job *scheduler.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		ID:               job.ID,
		Project:          job.ProjectID,
		Sandbox:          job.SandboxID,
		ParentTrack:      job.ParentTrack,
		ShortDescription: job.ShortDescription,
		Status:           string(job.Status),
		ErrorMessage:     job.ErrorMessage,
		ResultTrack:      job.ResultTrack,
		CreatedAt:        formatTime(job.CreatedAt),
		UpdatedAt:        formatTime(job.UpdatedAt),
	}
	if job.StartedAt != nil {
		view.StartedAt = formatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		view.FinishedAt = formatTime(*job.FinishedAt)
	}
	if job.LastHeartbeat != nil {
		view.LastHeartbeat = formatTime(*job.LastHeartbeat)
	}
	return view
}

// FromJobs converts and orders jobs newest first, breaking ties by id.
func FromJobs(jobs []*scheduler.Job) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, FromJob(job))
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt == views[j].CreatedAt {
			return views[i].ID > views[j].ID
		}
		return views[i].CreatedAt > views[j].CreatedAt
	})
	return views
}

// FromSnapshot converts one resolved snapshot without descending.
func FromSnapshot(view snapshot.View) SnapshotView {
	out := SnapshotView{
		Track:       append([]int(nil), view.Track...),
		Dotted:      view.Track.String(),
		Label:       view.Label,
		Description: view.Description,
	}
	if view.Lock != nil {
		out.Lock = &LockView{
			SourceID: view.Lock.SourceID,
			Comment:  view.Lock.Comment,
			LockedAt: formatTime(view.Lock.LockedAt),
		}
	}
	return out
}

// FromTree renders the subtree rooted at the given track.
func FromTree(tree *snapshot.Tree, at track.Track) (SnapshotView, error) {
	view, err := tree.Resolve(at)
	if err != nil {
		return SnapshotView{}, err
	}
	out := FromSnapshot(view)
	children, err := tree.Derived(at)
	if err != nil {
		return SnapshotView{}, err
	}
	for _, child := range children {
		childView, err := FromTree(tree, child.Track)
		if err != nil {
			return SnapshotView{}, err
		}
		out.Children = append(out.Children, childView)
	}
	return out, nil
}

// FromHealth converts the store health summary.
func FromHealth(summary scheduler.HealthSummary) HealthView {
	return HealthView{
		Total: summary.Total,
		ByStatus: map[string]int{
			string(scheduler.StatusQueued):    summary.Queued,
			string(scheduler.StatusRunning):   summary.Running,
			string(scheduler.StatusSucceeded): summary.Succeeded,
			string(scheduler.StatusFailed):    summary.Failed,
			string(scheduler.StatusCancelled): summary.Cancelled,
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
