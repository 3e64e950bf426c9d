package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v82/github"
	"golang.org/x/time/rate"

	"github.com/gatewright/gatewright/internal/hosting"
)

// Compile-time interface check.
var _ hosting.Provider = (*Provider)(nil)

func init() {
	hosting.RegisterProvider(hosting.ProviderGitHub, newProvider)
}

// Provider implements hosting.Provider using the go-github library.
type Provider struct {
	client *gogithub.Client
	owner  string
	repo   string
}

// newProvider creates a Provider for the given "owner/repo" full name.
func newProvider(fullName string, cfg hosting.Config) (hosting.Provider, error) {
	token, err := resolveToken(cfg)
	if err != nil {
		return nil, err
	}

	owner, repo, err := hosting.SplitFullName(fullName)
	if err != nil {
		return nil, err
	}

	transport := http.RoundTripper(&authTransport{token: token})
	if cfg.RequestsPerSecond > 0 {
		transport = &rateLimitTransport{
			limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
			base:    transport,
		}
	}
	httpClient := &http.Client{Transport: transport}

	client := gogithub.NewClient(httpClient)

	// GitHub Enterprise: override base URL.
	if cfg.BaseURL != "" {
		baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
		var parseErr error
		client.BaseURL, parseErr = client.BaseURL.Parse(baseURL + "/api/v3/")
		if parseErr != nil {
			return nil, fmt.Errorf("parse base URL %q: %w", cfg.BaseURL, parseErr)
		}
		client.UploadURL, parseErr = client.UploadURL.Parse(baseURL + "/api/uploads/")
		if parseErr != nil {
			return nil, fmt.Errorf("parse upload URL %q: %w", cfg.BaseURL, parseErr)
		}
	}

	return &Provider{
		client: client,
		owner:  owner,
		repo:   repo,
	}, nil
}

// authTransport adds an Authorization header to every request.
type authTransport struct {
	token string
	base  http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "Bearer "+t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req2)
}

// rateLimitTransport waits on a token bucket before each request.
type rateLimitTransport struct {
	limiter *rate.Limiter
	base    http.RoundTripper
}

func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}

// Name returns the provider type.
func (g *Provider) Name() hosting.ProviderType {
	return hosting.ProviderGitHub
}

// OwnerRepo returns the owner and repository name.
func (g *Provider) OwnerRepo() (string, string) {
	return g.owner, g.repo
}

// FullName returns "owner/repo".
func (g *Provider) FullName() string {
	return g.owner + "/" + g.repo
}

// GetContent fetches a file's bytes at the given ref.
func (g *Provider) GetContent(ctx context.Context, path, ref string) ([]byte, error) {
	file, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, &gogithub.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get %s@%s: %w", path, ref, hosting.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s@%s: %w", path, ref, err)
	}
	if file == nil {
		// Path resolved to a directory.
		return nil, fmt.Errorf("get %s@%s: %w", path, ref, hosting.ErrNotFound)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s@%s: %w", path, ref, err)
	}
	return []byte(content), nil
}

// CreateFile commits a new file to the given branch.
func (g *Provider) CreateFile(ctx context.Context, path, branch, message string, content []byte) error {
	opts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.Ptr(message),
		Content: content,
	}
	if branch != "" {
		opts.Branch = gogithub.Ptr(branch)
	}
	_, _, err := g.client.Repositories.CreateFile(ctx, g.owner, g.repo, path, opts)
	if err != nil {
		return fmt.Errorf("create file %s: %w", path, err)
	}
	return nil
}

// GetPR gets a pull request by number.
func (g *Provider) GetPR(ctx context.Context, number int) (*hosting.PR, error) {
	pr, _, err := g.client.PullRequests.Get(ctx, g.owner, g.repo, number)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("get PR %d: %w", number, hosting.ErrNoPRFound)
		}
		return nil, fmt.Errorf("get PR %d: %w", number, err)
	}
	return mapPR(pr), nil
}

// ListOpenPRs lists open pull requests.
func (g *Provider) ListOpenPRs(ctx context.Context) ([]*hosting.PR, error) {
	var all []*hosting.PR
	opts := &gogithub.PullRequestListOptions{
		State:       "open",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	for {
		prs, resp, err := g.client.PullRequests.List(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list open PRs: %w", err)
		}
		for _, pr := range prs {
			all = append(all, mapPR(pr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListPRFiles lists the changed files in a PR, including patches.
func (g *Provider) ListPRFiles(ctx context.Context, number int) ([]hosting.PRFile, error) {
	var all []hosting.PRFile
	opts := &gogithub.ListOptions{PerPage: 100}

	for {
		files, resp, err := g.client.PullRequests.ListFiles(ctx, g.owner, g.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("list PR %d files: %w", number, err)
		}
		for _, f := range files {
			all = append(all, hosting.PRFile{
				Path:      f.GetFilename(),
				Status:    f.GetStatus(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				Patch:     f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListPRsForCommit lists PRs associated with a commit.
func (g *Provider) ListPRsForCommit(ctx context.Context, sha string) ([]*hosting.PR, error) {
	var all []*hosting.PR
	opts := &gogithub.ListOptions{PerPage: 100}

	for {
		prs, resp, err := g.client.PullRequests.ListPullRequestsWithCommit(ctx, g.owner, g.repo, sha, opts)
		if err != nil {
			return nil, fmt.Errorf("list PRs for commit %s: %w", sha, err)
		}
		for _, pr := range prs {
			all = append(all, mapPR(pr))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// ListWorkflowRuns lists workflow runs for the given head commit.
func (g *Provider) ListWorkflowRuns(ctx context.Context, headSHA string) ([]hosting.WorkflowRun, error) {
	runs, _, err := g.client.Actions.ListRepositoryWorkflowRuns(ctx, g.owner, g.repo, &gogithub.ListWorkflowRunsOptions{
		HeadSHA:     headSHA,
		ListOptions: gogithub.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, fmt.Errorf("list workflow runs for %s: %w", headSHA, err)
	}

	out := make([]hosting.WorkflowRun, 0, len(runs.WorkflowRuns))
	for _, r := range runs.WorkflowRuns {
		out = append(out, hosting.WorkflowRun{
			ID:         r.GetID(),
			Event:      r.GetEvent(),
			Status:     r.GetStatus(),
			Conclusion: r.GetConclusion(),
			HeadSHA:    r.GetHeadSHA(),
			UpdatedAt:  r.GetUpdatedAt().Time,
		})
	}
	return out, nil
}

// ListRunArtifacts lists artifacts attached to a workflow run.
func (g *Provider) ListRunArtifacts(ctx context.Context, runID int64) ([]hosting.Artifact, error) {
	var all []hosting.Artifact
	opts := &gogithub.ListOptions{PerPage: 100}

	for {
		list, resp, err := g.client.Actions.ListWorkflowRunArtifacts(ctx, g.owner, g.repo, runID, opts)
		if err != nil {
			return nil, fmt.Errorf("list artifacts for run %d: %w", runID, err)
		}
		for _, a := range list.Artifacts {
			all = append(all, hosting.Artifact{
				ID:        a.GetID(),
				Name:      a.GetName(),
				SizeBytes: a.GetSizeInBytes(),
				Expired:   a.GetExpired(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// DownloadArtifact downloads an artifact ZIP, refusing bodies larger than limit bytes.
func (g *Provider) DownloadArtifact(ctx context.Context, artifactID int64, limit int64) ([]byte, error) {
	loc, _, err := g.client.Actions.DownloadArtifact(ctx, g.owner, g.repo, artifactID, 4)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("download artifact %d: %w", artifactID, hosting.ErrNotFound)
		}
		return nil, fmt.Errorf("download artifact %d: %w", artifactID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("download artifact %d: %w", artifactID, err)
	}

	// The redirect target is pre-signed; fetch with a plain client so the
	// Authorization header is not forwarded to external storage.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download artifact %d: %w", artifactID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download artifact %d: unexpected status %d", artifactID, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("download artifact %d: %w", artifactID, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("download artifact %d: %w", artifactID, hosting.ErrTooLarge)
	}
	return data, nil
}

// CreateCheck creates a check run and returns its id.
func (g *Provider) CreateCheck(ctx context.Context, check hosting.CheckCreate) (int64, error) {
	opts := gogithub.CreateCheckRunOptions{
		Name:    check.Name,
		HeadSHA: check.HeadSHA,
		Status:  gogithub.Ptr(check.Status),
		Output:  mapOutput(check.Output),
	}
	if !check.StartedAt.IsZero() {
		opts.StartedAt = &gogithub.Timestamp{Time: check.StartedAt}
	}
	if check.Conclusion != "" {
		opts.Conclusion = gogithub.Ptr(check.Conclusion)
	}
	if !check.CompletedAt.IsZero() {
		opts.CompletedAt = &gogithub.Timestamp{Time: check.CompletedAt}
	}

	created, _, err := g.client.Checks.CreateCheckRun(ctx, g.owner, g.repo, opts)
	if err != nil {
		return 0, fmt.Errorf("create check %q on %s: %w", check.Name, check.HeadSHA, err)
	}
	return created.GetID(), nil
}

// UpdateCheck patches an existing check run.
func (g *Provider) UpdateCheck(ctx context.Context, checkID int64, update hosting.CheckUpdate) error {
	opts := gogithub.UpdateCheckRunOptions{
		Status: gogithub.Ptr(update.Status),
		Output: mapOutput(update.Output),
	}
	if update.Conclusion != "" {
		opts.Conclusion = gogithub.Ptr(update.Conclusion)
	}
	if !update.CompletedAt.IsZero() {
		opts.CompletedAt = &gogithub.Timestamp{Time: update.CompletedAt}
	}

	_, _, err := g.client.Checks.UpdateCheckRun(ctx, g.owner, g.repo, checkID, opts)
	if err != nil {
		return fmt.Errorf("update check %d: %w", checkID, err)
	}
	return nil
}

// CreateComment creates an issue comment on a PR.
func (g *Provider) CreateComment(ctx context.Context, number int, body string) error {
	_, _, err := g.client.Issues.CreateComment(ctx, g.owner, g.repo, number, &gogithub.IssueComment{
		Body: gogithub.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("create comment on PR %d: %w", number, err)
	}
	return nil
}

// ListBranches lists repository branches.
func (g *Provider) ListBranches(ctx context.Context) ([]hosting.Branch, error) {
	var all []hosting.Branch
	opts := &gogithub.BranchListOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	for {
		branches, resp, err := g.client.Repositories.ListBranches(ctx, g.owner, g.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list branches: %w", err)
		}
		for _, b := range branches {
			all = append(all, hosting.Branch{
				Name: b.GetName(),
				SHA:  b.GetCommit().GetSHA(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// mapPR converts a go-github PullRequest to a hosting.PR.
func mapPR(pr *gogithub.PullRequest) *hosting.PR {
	return &hosting.PR{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		State:        pr.GetState(),
		HeadSHA:      pr.GetHead().GetSHA(),
		BaseSHA:      pr.GetBase().GetSHA(),
		HeadBranch:   pr.GetHead().GetRef(),
		BaseBranch:   pr.GetBase().GetRef(),
		ChangedFiles: pr.GetChangedFiles(),
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		HTMLURL:      pr.GetHTMLURL(),
	}
}

// mapOutput converts a hosting.CheckOutput to go-github's shape.
func mapOutput(out hosting.CheckOutput) *gogithub.CheckRunOutput {
	mapped := &gogithub.CheckRunOutput{
		Title:   gogithub.Ptr(out.Title),
		Summary: gogithub.Ptr(out.Summary),
		Text:    gogithub.Ptr(out.Text),
	}
	for _, a := range out.Annotations {
		ann := &gogithub.CheckRunAnnotation{
			Path:            gogithub.Ptr(a.Path),
			StartLine:       gogithub.Ptr(a.StartLine),
			EndLine:         gogithub.Ptr(a.EndLine),
			AnnotationLevel: gogithub.Ptr(a.Level),
			Message:         gogithub.Ptr(a.Message),
		}
		// GitHub rejects columns on multi-line annotations.
		if a.StartLine == a.EndLine && a.StartColumn > 0 {
			ann.StartColumn = gogithub.Ptr(a.StartColumn)
			if a.EndColumn > 0 {
				ann.EndColumn = gogithub.Ptr(a.EndColumn)
			} else {
				ann.EndColumn = gogithub.Ptr(a.StartColumn)
			}
		}
		mapped.Annotations = append(mapped.Annotations, ann)
	}
	return mapped
}

// isNotFound reports whether err is a GitHub 404.
func isNotFound(err error) bool {
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
