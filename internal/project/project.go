package project

import "strings"

// State describes a project lifecycle state.
type State string

const (
	StateActive    State = "active"
	StateSuspended State = "suspended"
	StateArchived  State = "archived"
)

// SandboxState describes a sandbox lifecycle state.
type SandboxState string

const (
	// SandboxActive accepts new workflow jobs from any execute-rights holder.
	SandboxActive SandboxState = "active"
	// SandboxSecured accepts jobs only from special-rights holders.
	SandboxSecured SandboxState = "secured"
	// SandboxClosed accepts no new jobs.
	SandboxClosed SandboxState = "closed"
)

// Folio identifies one source page of a project.
type Folio struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// Sandbox describes one snapshot-tree container of a project.
type Sandbox struct {
	ID            string       `toml:"id"`
	State         SandboxState `toml:"state"`
	GroupTemplate string       `toml:"group_template"`
	GroupID       string       `toml:"group_id"`
}

// EffectiveGroupTemplate returns the sandbox's file-group template when it
// carries the {} track placeholder, otherwise the given fallback. A template
// without the placeholder would map every track to the same group id.
func (s Sandbox) EffectiveGroupTemplate(fallback string) string {
	if strings.Contains(s.GroupTemplate, "{}") {
		return s.GroupTemplate
	}
	return fallback
}

// Project is the persisted project descriptor.
type Project struct {
	ID        string    `toml:"id"`
	Name      string    `toml:"name"`
	State     State     `toml:"state"`
	Folios    []Folio   `toml:"folios"`
	Sandboxes []Sandbox `toml:"sandboxes"`
}

// Rights carries the caller's resolved permissions for one request. Rights
// resolution itself is a collaborator concern; the core only consumes the
// outcome.
type Rights struct {
	Execute bool
	Special bool
}

// Folio returns the folio with the given id.
func (p *Project) Folio(id string) (Folio, bool) {
	for _, folio := range p.Folios {
		if folio.ID == id {
			return folio, true
		}
	}
	return Folio{}, false
}

// FolioByName returns the folio with the given name.
func (p *Project) FolioByName(name string) (Folio, bool) {
	for _, folio := range p.Folios {
		if folio.Name == name {
			return folio, true
		}
	}
	return Folio{}, false
}

// Sandbox returns the sandbox with the given id.
func (p *Project) Sandbox(id string) (Sandbox, bool) {
	for _, sandbox := range p.Sandboxes {
		if sandbox.ID == id {
			return sandbox, true
		}
	}
	return Sandbox{}, false
}

// CanSchedule reports whether workflow jobs may be scheduled against the
// given sandbox with the caller's rights. Secured sandboxes require special
// rights; closed sandboxes and non-active projects never schedule.
func CanSchedule(p *Project, sandbox Sandbox, rights Rights) bool {
	if p == nil || p.State != StateActive || !rights.Execute {
		return false
	}
	switch sandbox.State {
	case SandboxActive:
		return true
	case SandboxSecured:
		return rights.Special
	default:
		return false
	}
}

// NormalizeID lowercases and trims an identifier for use as a directory name.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
