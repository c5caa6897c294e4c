package types

import "strings"

// Entity is a person record undergoing resolution. ID, Name and Profile are
// fixed at creation; Homepage and Account are set once by the resolvers.
type Entity struct {
	ID       string
	Name     string
	Profile  string
	Homepage Resolution[string]
	Account  Resolution[string]
}

// NewEntity creates an entity with unset resolutions.
func NewEntity(id, name, profile string) Entity {
	return Entity{ID: id, Name: strings.TrimSpace(name), Profile: strings.TrimSpace(profile)}
}

// SetHomepage records the homepage resolution unless one is already set.
func (e *Entity) SetHomepage(r Resolution[string]) bool {
	return e.Homepage.set(r)
}

// SetAccount records the account resolution unless one is already set.
func (e *Entity) SetAccount(r Resolution[string]) bool {
	return e.Account.set(r)
}

// Repository is one entry of an account's repository listing.
type Repository struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	Fork          bool   `json:"fork"`
	DefaultBranch string `json:"default_branch,omitempty"`
	CloneURL      string `json:"clone_url,omitempty"`
}

// FullName returns owner/name.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Finding describes one detected credential occurrence. Repository and
// entity are held by value so a finding stays valid after the workspace that
// produced it is gone.
type Finding struct {
	Organization string   `json:"organization"`
	Repository   string   `json:"repository"`
	Person       string   `json:"person"`
	EntityID     string   `json:"entity_id"`
	RuleID       string   `json:"rule_id"`
	Secret       string   `json:"secret"`
	Match        string   `json:"match,omitempty"`
	File         string   `json:"file"`
	StartLine    int      `json:"start_line,omitempty"`
	EndLine      int      `json:"end_line,omitempty"`
	Commit       string   `json:"commit"`
	Author       string   `json:"author,omitempty"`
	Date         string   `json:"date,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// DiagnosticKind classifies a recorded, non-fatal failure.
type DiagnosticKind string

const (
	DiagTransient         DiagnosticKind = "TransientNetworkError"
	DiagRateLimited       DiagnosticKind = "RateLimited"
	DiagNotFound          DiagnosticKind = "NotFound"
	DiagEnumerationFailed DiagnosticKind = "EnumerationFailed"
	DiagCloneFailed       DiagnosticKind = "CloneFailed"
	DiagScanFailed        DiagnosticKind = "ScanInvocationFailed"
	DiagParseFailed       DiagnosticKind = "ParseFailed"
	DiagPrerequisite      DiagnosticKind = "PrerequisiteMissing"
)

// Diagnostic is a failure recorded at its own boundary.
type Diagnostic struct {
	Kind       DiagnosticKind `json:"kind"`
	Entity     string         `json:"entity,omitempty"`
	Account    string         `json:"account,omitempty"`
	Repository string         `json:"repository,omitempty"`
	Message    string         `json:"message"`
}
