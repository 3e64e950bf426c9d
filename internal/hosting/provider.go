// Package hosting provides a unified interface for git hosting forges
// (GitHub, GitLab). The policy engine consumes only the narrow capability
// set defined here; forge-specific fields stay inside the adapters.
package hosting

import (
	"context"
	"time"
)

// ProviderType identifies which hosting forge is in use.
type ProviderType string

const (
	ProviderGitHub  ProviderType = "github"
	ProviderGitLab  ProviderType = "gitlab"
	ProviderUnknown ProviderType = "unknown"
)

// Provider is the forge client consumed by the policy engine.
// Implementations exist for GitHub (go-github) and GitLab (client-go).
// Every method observes ctx for cancellation.
type Provider interface {
	// Repository content
	GetContent(ctx context.Context, path, ref string) ([]byte, error)
	CreateFile(ctx context.Context, path, branch, message string, content []byte) error

	// PRs / merge requests
	GetPR(ctx context.Context, number int) (*PR, error)
	ListOpenPRs(ctx context.Context) ([]*PR, error)
	ListPRFiles(ctx context.Context, number int) ([]PRFile, error)
	ListPRsForCommit(ctx context.Context, sha string) ([]*PR, error)

	// CI runs and artifacts
	ListWorkflowRuns(ctx context.Context, headSHA string) ([]WorkflowRun, error)
	ListRunArtifacts(ctx context.Context, runID int64) ([]Artifact, error)
	DownloadArtifact(ctx context.Context, artifactID int64, limit int64) ([]byte, error)

	// Checks
	CreateCheck(ctx context.Context, check CheckCreate) (int64, error)
	UpdateCheck(ctx context.Context, checkID int64, update CheckUpdate) error

	// Comments (optional surface; the lifecycle uses it sparingly)
	CreateComment(ctx context.Context, number int, body string) error

	// Branches (rerun PR resolution fallback)
	ListBranches(ctx context.Context) ([]Branch, error)

	// Metadata
	Name() ProviderType
	OwnerRepo() (string, string)
	FullName() string
}

// PR is the unified pull/merge request descriptor.
type PR struct {
	Number       int    `json:"number"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	State        string `json:"state"` // open, closed, merged
	HeadSHA      string `json:"head_sha"`
	BaseSHA      string `json:"base_sha"`
	HeadBranch   string `json:"head_branch"`
	BaseBranch   string `json:"base_branch"`
	ChangedFiles int    `json:"changed_files"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	HTMLURL      string `json:"html_url"`
}

// PRFile is one changed file in a PR.
type PRFile struct {
	Path      string `json:"path"`
	Status    string `json:"status"` // added, modified, removed, renamed
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// WorkflowRun is a CI run (GitHub workflow run / GitLab pipeline).
type WorkflowRun struct {
	ID         int64     `json:"id"`
	Event      string    `json:"event"` // triggering event, e.g. "pull_request"
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	HeadSHA    string    `json:"head_sha"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Artifact is a blob attached to a completed CI run.
type Artifact struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Expired   bool   `json:"expired"`
}

// Branch is a repository branch head.
type Branch struct {
	Name string `json:"name"`
	SHA  string `json:"sha"`
}

// Check statuses and conclusions (unified vocabulary).
const (
	CheckStatusQueued     = "queued"
	CheckStatusInProgress = "in_progress"
	CheckStatusCompleted  = "completed"

	CheckConclusionSuccess = "success"
	CheckConclusionFailure = "failure"
	CheckConclusionNeutral = "neutral"
)

// CheckAnnotation is an inline annotation attached to a check.
type CheckAnnotation struct {
	Path        string `json:"path"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	StartColumn int    `json:"start_column,omitempty"`
	EndColumn   int    `json:"end_column,omitempty"`
	Level       string `json:"annotation_level"` // notice, warning, failure
	Message     string `json:"message"`
}

// CheckOutput is the rendered body of a check.
type CheckOutput struct {
	Title       string            `json:"title"`
	Summary     string            `json:"summary"`
	Text        string            `json:"text"`
	Annotations []CheckAnnotation `json:"annotations,omitempty"`
}

// CheckCreate describes a new check run.
type CheckCreate struct {
	Name        string      `json:"name"`
	HeadSHA     string      `json:"head_sha"`
	Status      string      `json:"status"`
	Conclusion  string      `json:"conclusion,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at,omitzero"`
	Output      CheckOutput `json:"output"`
}

// CheckUpdate patches an existing check run.
// Name and HeadSHA repeat the values from the original CheckCreate: GitHub
// addresses checks by id alone, but GitLab commit statuses are upserts keyed
// by (sha, name), so the adapter needs both on update as well.
type CheckUpdate struct {
	Name        string      `json:"name"`
	HeadSHA     string      `json:"head_sha"`
	Status      string      `json:"status"`
	Conclusion  string      `json:"conclusion,omitempty"`
	CompletedAt time.Time   `json:"completed_at,omitzero"`
	Output      CheckOutput `json:"output"`
}
