package gitlab

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"strings"
	"time"

	gogitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/gatewright/gatewright/internal/hosting"
)

// Compile-time interface check.
var _ hosting.Provider = (*Provider)(nil)

func init() {
	hosting.RegisterProvider(hosting.ProviderGitLab, newProvider)
}

// Provider implements hosting.Provider using the GitLab client-go library.
// Merge requests are exposed as PRs and pipelines as workflow runs; checks
// are translated to commit statuses.
type Provider struct {
	client    *gogitlab.Client
	projectID string // URL path "owner/repo" used as project identifier
	owner     string
	repo      string
}

// newProvider creates a Provider for the given "owner/repo" (or
// "group/subgroup/repo") full name.
func newProvider(fullName string, cfg hosting.Config) (hosting.Provider, error) {
	token, err := resolveToken(cfg)
	if err != nil {
		return nil, err
	}

	owner, repo, err := hosting.SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	var client *gogitlab.Client
	if cfg.BaseURL != "" {
		baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
		client, err = gogitlab.NewClient(token, gogitlab.WithBaseURL(baseURL+"/api/v4"))
	} else {
		client, err = gogitlab.NewClient(token)
	}
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	return &Provider{
		client:    client,
		projectID: owner + "/" + repo,
		owner:     owner,
		repo:      repo,
	}, nil
}

// Name returns the provider type.
func (g *Provider) Name() hosting.ProviderType {
	return hosting.ProviderGitLab
}

// OwnerRepo returns the owner and repository name.
// For nested GitLab groups, owner may be "group/subgroup".
func (g *Provider) OwnerRepo() (string, string) {
	return g.owner, g.repo
}

// FullName returns the full project path.
func (g *Provider) FullName() string {
	return g.projectID
}

// GetContent fetches a file's raw bytes at the given ref.
func (g *Provider) GetContent(ctx context.Context, path, ref string) ([]byte, error) {
	data, resp, err := g.client.RepositoryFiles.GetRawFile(g.projectID, path, &gogitlab.GetRawFileOptions{
		Ref: gogitlab.Ptr(ref),
	}, gogitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, fmt.Errorf("get %s@%s: %w", path, ref, hosting.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s@%s: %w", path, ref, err)
	}
	return data, nil
}

// CreateFile commits a new file to the given branch.
func (g *Provider) CreateFile(ctx context.Context, path, branch, message string, content []byte) error {
	_, _, err := g.client.RepositoryFiles.CreateFile(g.projectID, path, &gogitlab.CreateFileOptions{
		Branch:        gogitlab.Ptr(branch),
		Content:       gogitlab.Ptr(string(content)),
		CommitMessage: gogitlab.Ptr(message),
	}, gogitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create file %s: %w", path, err)
	}
	return nil
}

// GetPR gets a merge request by IID.
func (g *Provider) GetPR(ctx context.Context, number int) (*hosting.PR, error) {
	mr, _, err := g.client.MergeRequests.GetMergeRequest(g.projectID, int64(number), nil, gogitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get MR %d: %w", number, err)
	}
	return mapMR(mr), nil
}

// ListOpenPRs lists open merge requests.
func (g *Provider) ListOpenPRs(ctx context.Context) ([]*hosting.PR, error) {
	var all []*hosting.PR
	opts := &gogitlab.ListProjectMergeRequestsOptions{
		State:       gogitlab.Ptr("opened"),
		ListOptions: gogitlab.ListOptions{PerPage: 100},
	}

	for {
		mrs, resp, err := g.client.MergeRequests.ListProjectMergeRequests(g.projectID, opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list open MRs: %w", err)
		}
		for _, mr := range mrs {
			all = append(all, mapBasicMR(mr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListPRFiles lists the changed files in a merge request. Additions and
// deletions are counted from the unified diff text; GitLab does not report
// per-file counts directly.
func (g *Provider) ListPRFiles(ctx context.Context, number int) ([]hosting.PRFile, error) {
	var all []hosting.PRFile
	opts := &gogitlab.ListMergeRequestDiffsOptions{
		ListOptions: gogitlab.ListOptions{PerPage: 100},
	}

	for {
		diffs, resp, err := g.client.MergeRequests.ListMergeRequestDiffs(g.projectID, int64(number), opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list MR %d diffs: %w", number, err)
		}
		for _, d := range diffs {
			adds, dels := countDiffLines(d.Diff)
			all = append(all, hosting.PRFile{
				Path:      d.NewPath,
				Status:    mapDiffStatus(d),
				Additions: adds,
				Deletions: dels,
				Patch:     d.Diff,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListPRsForCommit lists open merge requests whose head matches the commit.
// GitLab has no direct commit→MR endpoint on this surface, so we filter the
// open MR list.
func (g *Provider) ListPRsForCommit(ctx context.Context, sha string) ([]*hosting.PR, error) {
	open, err := g.ListOpenPRs(ctx)
	if err != nil {
		return nil, err
	}

	var matched []*hosting.PR
	for _, pr := range open {
		if pr.HeadSHA == sha {
			matched = append(matched, pr)
		}
	}
	return matched, nil
}

// ListWorkflowRuns lists pipelines for the given head commit, mapped to the
// unified workflow-run shape. Pipeline sources for merge requests are
// normalized to "pull_request".
func (g *Provider) ListWorkflowRuns(ctx context.Context, headSHA string) ([]hosting.WorkflowRun, error) {
	pipelines, _, err := g.client.Pipelines.ListProjectPipelines(g.projectID, &gogitlab.ListProjectPipelinesOptions{
		SHA:         gogitlab.Ptr(headSHA),
		ListOptions: gogitlab.ListOptions{PerPage: 100},
	}, gogitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list pipelines for %s: %w", headSHA, err)
	}

	out := make([]hosting.WorkflowRun, 0, len(pipelines))
	for _, p := range pipelines {
		status, conclusion := mapPipelineStatus(p.Status)
		event := p.Source
		if event == "merge_request_event" {
			event = "pull_request"
		}
		var updated time.Time
		if p.UpdatedAt != nil {
			updated = *p.UpdatedAt
		}
		out = append(out, hosting.WorkflowRun{
			ID:         int64(p.ID),
			Event:      event,
			Status:     status,
			Conclusion: conclusion,
			HeadSHA:    p.SHA,
			UpdatedAt:  updated,
		})
	}
	return out, nil
}

// ListRunArtifacts lists pipeline jobs that carry an artifacts archive.
// The job name doubles as the artifact name.
func (g *Provider) ListRunArtifacts(ctx context.Context, runID int64) ([]hosting.Artifact, error) {
	var all []hosting.Artifact
	opts := &gogitlab.ListJobsOptions{
		ListOptions: gogitlab.ListOptions{PerPage: 100},
	}

	for {
		jobs, resp, err := g.client.Jobs.ListPipelineJobs(g.projectID, runID, opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list jobs for pipeline %d: %w", runID, err)
		}
		for _, job := range jobs {
			if job.ArtifactsFile.Filename == "" {
				continue
			}
			all = append(all, hosting.Artifact{
				ID:        int64(job.ID),
				Name:      job.Name,
				SizeBytes: int64(job.ArtifactsFile.Size),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// DownloadArtifact downloads a job's artifacts archive, refusing bodies
// larger than limit bytes.
func (g *Provider) DownloadArtifact(ctx context.Context, artifactID int64, limit int64) ([]byte, error) {
	reader, resp, err := g.client.Jobs.GetJobArtifacts(g.projectID, artifactID, gogitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, fmt.Errorf("download artifacts for job %d: %w", artifactID, hosting.ErrNotFound)
		}
		return nil, fmt.Errorf("download artifacts for job %d: %w", artifactID, err)
	}

	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read artifacts for job %d: %w", artifactID, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("download artifacts for job %d: %w", artifactID, hosting.ErrTooLarge)
	}
	return data, nil
}

// CreateCheck publishes a commit status for the head commit. The returned id
// is a stable hash of (sha, name); GitLab statuses are addressed by those
// two values, not by id.
func (g *Provider) CreateCheck(ctx context.Context, check hosting.CheckCreate) (int64, error) {
	if err := g.setStatus(ctx, check.HeadSHA, check.Name, check.Status, check.Conclusion, check.Output.Summary); err != nil {
		return 0, err
	}
	return statusID(check.HeadSHA, check.Name), nil
}

// UpdateCheck re-publishes the commit status. Commit statuses are upserts,
// so an update is the same call as a create.
func (g *Provider) UpdateCheck(ctx context.Context, _ int64, update hosting.CheckUpdate) error {
	return g.setStatus(ctx, update.HeadSHA, update.Name, update.Status, update.Conclusion, update.Output.Summary)
}

func (g *Provider) setStatus(ctx context.Context, sha, name, status, conclusion, description string) error {
	state := mapCheckState(status, conclusion)

	// GitLab caps status descriptions well below check-body sizes.
	if len(description) > 240 {
		description = description[:237] + "..."
	}

	_, _, err := g.client.Commits.SetCommitStatus(g.projectID, sha, &gogitlab.SetCommitStatusOptions{
		State:       state,
		Name:        gogitlab.Ptr(name),
		Description: gogitlab.Ptr(description),
	}, gogitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("set commit status %q on %s: %w", name, sha, err)
	}
	return nil
}

// CreateComment creates a note on a merge request.
func (g *Provider) CreateComment(ctx context.Context, number int, body string) error {
	_, _, err := g.client.Notes.CreateMergeRequestNote(g.projectID, int64(number), &gogitlab.CreateMergeRequestNoteOptions{
		Body: gogitlab.Ptr(body),
	}, gogitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("create comment on MR %d: %w", number, err)
	}
	return nil
}

// ListBranches lists repository branches.
func (g *Provider) ListBranches(ctx context.Context) ([]hosting.Branch, error) {
	var all []hosting.Branch
	opts := &gogitlab.ListBranchesOptions{
		ListOptions: gogitlab.ListOptions{PerPage: 100},
	}

	for {
		branches, resp, err := g.client.Branches.ListBranches(g.projectID, opts, gogitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list branches: %w", err)
		}
		for _, b := range branches {
			sha := ""
			if b.Commit != nil {
				sha = b.Commit.ID
			}
			all = append(all, hosting.Branch{Name: b.Name, SHA: sha})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// mapMR converts a GitLab MergeRequest to a hosting.PR.
func mapMR(mr *gogitlab.MergeRequest) *hosting.PR {
	state := mr.State
	if state == "opened" {
		state = "open"
	}

	pr := &hosting.PR{
		Number:     int(mr.IID),
		Title:      mr.Title,
		Body:       mr.Description,
		State:      state,
		HeadSHA:    mr.SHA,
		HeadBranch: mr.SourceBranch,
		BaseBranch: mr.TargetBranch,
		HTMLURL:    mr.WebURL,
	}
	if mr.DiffRefs.BaseSha != "" {
		pr.BaseSHA = mr.DiffRefs.BaseSha
	}
	return pr
}

// mapBasicMR converts a GitLab BasicMergeRequest to a hosting.PR.
func mapBasicMR(mr *gogitlab.BasicMergeRequest) *hosting.PR {
	state := mr.State
	if state == "opened" {
		state = "open"
	}

	return &hosting.PR{
		Number:     int(mr.IID),
		Title:      mr.Title,
		Body:       mr.Description,
		State:      state,
		HeadSHA:    mr.SHA,
		HeadBranch: mr.SourceBranch,
		BaseBranch: mr.TargetBranch,
		HTMLURL:    mr.WebURL,
	}
}

// mapDiffStatus derives the unified file status from a GitLab diff entry.
func mapDiffStatus(d *gogitlab.MergeRequestDiff) string {
	switch {
	case d.NewFile:
		return "added"
	case d.DeletedFile:
		return "removed"
	case d.RenamedFile:
		return "renamed"
	default:
		return "modified"
	}
}

// countDiffLines counts added and deleted lines in a unified diff body.
func countDiffLines(diff string) (adds, dels int) {
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			adds++
		case strings.HasPrefix(line, "-"):
			dels++
		}
	}
	return adds, dels
}

// mapPipelineStatus converts a GitLab pipeline status to a unified
// (status, conclusion) pair.
func mapPipelineStatus(gitlabStatus string) (status, conclusion string) {
	switch gitlabStatus {
	case "success":
		return "completed", "success"
	case "failed":
		return "completed", "failure"
	case "canceled":
		return "completed", "cancelled"
	case "skipped":
		return "completed", "skipped"
	case "running":
		return "in_progress", ""
	default:
		return "queued", ""
	}
}

// mapCheckState converts unified check status+conclusion to a GitLab build state.
// GitLab has no neutral conclusion; neutral maps to success so a neutral
// engine verdict never blocks the merge train.
func mapCheckState(status, conclusion string) gogitlab.BuildStateValue {
	if status != hosting.CheckStatusCompleted {
		return gogitlab.Running
	}
	switch conclusion {
	case hosting.CheckConclusionFailure:
		return gogitlab.Failed
	default:
		return gogitlab.Success
	}
}

// statusID derives a stable synthetic check id from (sha, name).
func statusID(sha, name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(sha))
	h.Write([]byte{0})
	h.Write([]byte(name))
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
