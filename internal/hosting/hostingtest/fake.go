// Package hostingtest provides a configurable in-memory Provider for tests.
package hostingtest

import (
	"context"
	"fmt"

	"github.com/gatewright/gatewright/internal/hosting"
)

// Fake implements hosting.Provider with function hooks. Unset hooks fall
// back to the seeded maps, then to not-found errors.
type Fake struct {
	Owner string
	Repo  string

	// Seeded state keyed the way the engine looks things up.
	Files     map[string][]byte // "path@ref" -> content
	PRs       map[int]*hosting.PR
	PRFiles   map[int][]hosting.PRFile
	Runs      map[string][]hosting.WorkflowRun // headSHA -> runs
	Artifacts map[int64][]hosting.Artifact     // runID -> artifacts
	Blobs     map[int64][]byte                 // artifactID -> zip bytes
	Branches  []hosting.Branch

	// Recorded side effects.
	CreatedChecks  []hosting.CheckCreate
	UpdatedChecks  map[int64]hosting.CheckUpdate
	Comments       map[int][]string
	CreatedFiles   map[string][]byte
	NextCheckID    int64

	// Optional overrides.
	GetContentFn       func(ctx context.Context, path, ref string) ([]byte, error)
	ListWorkflowRunsFn func(ctx context.Context, headSHA string) ([]hosting.WorkflowRun, error)
	ListPRFilesFn      func(ctx context.Context, number int) ([]hosting.PRFile, error)
	ListPRsForCommitFn func(ctx context.Context, sha string) ([]*hosting.PR, error)
	DownloadFn         func(ctx context.Context, artifactID, limit int64) ([]byte, error)
	CreateCheckFn      func(ctx context.Context, check hosting.CheckCreate) (int64, error)
	UpdateCheckFn      func(ctx context.Context, checkID int64, update hosting.CheckUpdate) error
}

// New returns an empty Fake for owner/repo with initialized maps.
func New(owner, repo string) *Fake {
	return &Fake{
		Owner:         owner,
		Repo:          repo,
		Files:         map[string][]byte{},
		PRs:           map[int]*hosting.PR{},
		PRFiles:       map[int][]hosting.PRFile{},
		Runs:          map[string][]hosting.WorkflowRun{},
		Artifacts:     map[int64][]hosting.Artifact{},
		Blobs:         map[int64][]byte{},
		UpdatedChecks: map[int64]hosting.CheckUpdate{},
		Comments:      map[int][]string{},
		CreatedFiles:  map[string][]byte{},
		NextCheckID:   1000,
	}
}

// SetFile seeds content for GetContent at a given ref.
func (f *Fake) SetFile(path, ref string, content []byte) {
	f.Files[path+"@"+ref] = content
}

func (f *Fake) GetContent(ctx context.Context, path, ref string) ([]byte, error) {
	if f.GetContentFn != nil {
		return f.GetContentFn(ctx, path, ref)
	}
	if data, ok := f.Files[path+"@"+ref]; ok {
		return data, nil
	}
	return nil, hosting.ErrNotFound
}

func (f *Fake) CreateFile(ctx context.Context, path, branch, message string, content []byte) error {
	f.CreatedFiles[path] = content
	return nil
}

func (f *Fake) GetPR(ctx context.Context, number int) (*hosting.PR, error) {
	if pr, ok := f.PRs[number]; ok {
		return pr, nil
	}
	return nil, hosting.ErrNotFound
}

func (f *Fake) ListOpenPRs(ctx context.Context) ([]*hosting.PR, error) {
	var out []*hosting.PR
	for _, pr := range f.PRs {
		if pr.State == "open" {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (f *Fake) ListPRFiles(ctx context.Context, number int) ([]hosting.PRFile, error) {
	if f.ListPRFilesFn != nil {
		return f.ListPRFilesFn(ctx, number)
	}
	return f.PRFiles[number], nil
}

func (f *Fake) ListPRsForCommit(ctx context.Context, sha string) ([]*hosting.PR, error) {
	if f.ListPRsForCommitFn != nil {
		return f.ListPRsForCommitFn(ctx, sha)
	}
	var out []*hosting.PR
	for _, pr := range f.PRs {
		if pr.HeadSHA == sha && pr.State == "open" {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (f *Fake) ListWorkflowRuns(ctx context.Context, headSHA string) ([]hosting.WorkflowRun, error) {
	if f.ListWorkflowRunsFn != nil {
		return f.ListWorkflowRunsFn(ctx, headSHA)
	}
	return f.Runs[headSHA], nil
}

func (f *Fake) ListRunArtifacts(ctx context.Context, runID int64) ([]hosting.Artifact, error) {
	return f.Artifacts[runID], nil
}

func (f *Fake) DownloadArtifact(ctx context.Context, artifactID, limit int64) ([]byte, error) {
	if f.DownloadFn != nil {
		return f.DownloadFn(ctx, artifactID, limit)
	}
	data, ok := f.Blobs[artifactID]
	if !ok {
		return nil, hosting.ErrNotFound
	}
	if int64(len(data)) > limit {
		return nil, hosting.ErrTooLarge
	}
	return data, nil
}

func (f *Fake) CreateCheck(ctx context.Context, check hosting.CheckCreate) (int64, error) {
	if f.CreateCheckFn != nil {
		return f.CreateCheckFn(ctx, check)
	}
	f.CreatedChecks = append(f.CreatedChecks, check)
	f.NextCheckID++
	return f.NextCheckID, nil
}

func (f *Fake) UpdateCheck(ctx context.Context, checkID int64, update hosting.CheckUpdate) error {
	if f.UpdateCheckFn != nil {
		return f.UpdateCheckFn(ctx, checkID, update)
	}
	f.UpdatedChecks[checkID] = update
	return nil
}

func (f *Fake) CreateComment(ctx context.Context, number int, body string) error {
	f.Comments[number] = append(f.Comments[number], body)
	return nil
}

func (f *Fake) ListBranches(ctx context.Context) ([]hosting.Branch, error) {
	return f.Branches, nil
}

func (f *Fake) Name() hosting.ProviderType { return hosting.ProviderGitHub }

func (f *Fake) OwnerRepo() (string, string) { return f.Owner, f.Repo }

func (f *Fake) FullName() string { return fmt.Sprintf("%s/%s", f.Owner, f.Repo) }
