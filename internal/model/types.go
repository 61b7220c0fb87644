package model

import (
	"strings"
	"time"
)

// FileStatus mirrors the porcelain status letters the producer derives
// from the version-control binary.
type FileStatus string

const (
	StatusAdded     FileStatus = "Added"
	StatusModified  FileStatus = "Modified"
	StatusDeleted   FileStatus = "Deleted"
	StatusRenamed   FileStatus = "Renamed"
	StatusCopied    FileStatus = "Copied"
	StatusUnmerged  FileStatus = "Unmerged"
	StatusUntracked FileStatus = "Untracked"
)

type FileEdit struct {
	FilePath string     `json:"filePath"`
	Status   FileStatus `json:"status"`
	IsStaged bool       `json:"isStaged"`
}

// ActivityEvent is one incoming activity report from a producer machine.
type ActivityEvent struct {
	Timestamp     time.Time  `json:"timestamp"`
	UserName      string     `json:"userName"`
	UserEmail     string     `json:"userEmail"`
	RepoName      string     `json:"repoName"`
	Branch        string     `json:"branch"`
	RemoteURL     string     `json:"remoteUrl,omitempty"`
	ModifiedFiles []FileEdit `json:"modifiedFiles"`
	MachineName   string     `json:"machineName"`
	Tenant        string     `json:"tenant,omitempty"`
}

// ActivityEntry is the latest known state of one (repo, machine) pair for a
// user. Each new event for the same pair replaces the entry wholesale.
type ActivityEntry struct {
	RepoName      string     `json:"repoName"`
	Branch        string     `json:"branch"`
	RemoteURL     string     `json:"remoteUrl,omitempty"`
	ModifiedFiles []FileEdit `json:"modifiedFiles"`
	LastUpdated   time.Time  `json:"lastUpdated"`
	MachineName   string     `json:"machineName"`
}

// UserRecord is the stored per-user state. Exactly one record exists per
// (tenant, lowercased email) pair.
type UserRecord struct {
	ID           string                   `json:"id"`
	Tenant       string                   `json:"tenant"`
	UserEmail    string                   `json:"userEmail"`
	UserName     string                   `json:"userName"`
	LastActivity time.Time                `json:"lastActivity"`
	Activities   map[string]ActivityEntry `json:"activities"`
}

const (
	DefaultTenant = "default"
	UnknownValue  = "unknown"

	keySep = "::"
)

// UserID derives the record identity: tenant::lowercase(email).
func UserID(tenant, email string) string {
	return tenant + keySep + strings.ToLower(email)
}

// ActivityKey identifies one (repo, machine) pair within a user record.
func ActivityKey(repoName, machineName string) string {
	return repoName + keySep + machineName
}

// Normalize fills defaults for fields the producer could not resolve. The
// email is trimmed but otherwise kept as sent; only the derived id lowercases
// it. A zero timestamp is stamped with the server clock.
func (e *ActivityEvent) Normalize(now time.Time) {
	e.UserEmail = strings.TrimSpace(e.UserEmail)
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.UserName == "" {
		e.UserName = UnknownValue
	}
	if e.RepoName == "" {
		e.RepoName = UnknownValue
	}
	if e.Branch == "" {
		e.Branch = UnknownValue
	}
	if e.MachineName == "" {
		e.MachineName = UnknownValue
	}
	if e.Tenant == "" {
		e.Tenant = DefaultTenant
	}
}

// Entry converts the event into the stored per-(repo,machine) form.
func (e ActivityEvent) Entry() ActivityEntry {
	return ActivityEntry{
		RepoName:      e.RepoName,
		Branch:        e.Branch,
		RemoteURL:     e.RemoteURL,
		ModifiedFiles: e.ModifiedFiles,
		LastUpdated:   e.Timestamp,
		MachineName:   e.MachineName,
	}
}

// NewUserRecord creates the record for an identity's first event.
func NewUserRecord(e ActivityEvent) UserRecord {
	rec := UserRecord{
		ID:         UserID(e.Tenant, e.UserEmail),
		Tenant:     e.Tenant,
		UserEmail:  e.UserEmail,
		UserName:   e.UserName,
		Activities: make(map[string]ActivityEntry),
	}
	rec.Apply(e)
	return rec
}

// Apply merges one event into the record: the entry for the event's
// (repo, machine) key is replaced wholesale and lastActivity is overwritten
// with the event timestamp regardless of which key triggered it.
func (r *UserRecord) Apply(e ActivityEvent) {
	if r.Activities == nil {
		r.Activities = make(map[string]ActivityEntry)
	}
	r.UserName = e.UserName
	r.LastActivity = e.Timestamp
	r.Activities[ActivityKey(e.RepoName, e.MachineName)] = e.Entry()
}
