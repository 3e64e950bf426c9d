package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gogithub "github.com/google/go-github/v82/github"

	"github.com/gatewright/gatewright/internal/hosting"
)

// newTestProvider returns a Provider backed by an httptest server.
func newTestProvider(t *testing.T, handler http.Handler) (*Provider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := gogithub.NewClient(srv.Client())
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("parse test URL: %v", err)
	}
	client.BaseURL = base

	return &Provider{client: client, owner: "acme", repo: "widgets"}, srv
}

func TestGetContentNotFound(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))

	_, err := p.GetContent(context.Background(), ".gatewright/repo-spec.yaml", "abc123")
	if !errors.Is(err, hosting.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetContent(t *testing.T) {
	body := "intent:\n  goals: [ship]\n"
	encoded := base64.StdEncoding.EncodeToString([]byte(body))

	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ref") != "abc123" {
			t.Errorf("missing ref query param, got %q", r.URL.RawQuery)
		}
		fmt.Fprintf(w, `{"type": "file", "encoding": "base64", "content": %q}`, encoded)
	}))

	data, err := p.GetContent(context.Background(), ".gatewright/repo-spec.yaml", "abc123")
	if err != nil {
		t.Fatalf("GetContent: %v", err)
	}
	if string(data) != body {
		t.Errorf("GetContent = %q, want %q", data, body)
	}
}

func TestCreateCheckReturnsID(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		fmt.Fprint(w, `{"id": 4242, "status": "in_progress"}`)
	}))

	id, err := p.CreateCheck(context.Background(), hosting.CheckCreate{
		Name:    "Gatewright Review",
		HeadSHA: "abc123",
		Status:  hosting.CheckStatusInProgress,
	})
	if err != nil {
		t.Fatalf("CreateCheck: %v", err)
	}
	if id != 4242 {
		t.Errorf("CreateCheck id = %d, want 4242", id)
	}
}

func TestListRunArtifacts(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("per_page"); got != "100" {
			t.Errorf("per_page = %q, want 100", got)
		}
		fmt.Fprint(w, `{"total_count": 2, "artifacts": [
			{"id": 1, "name": "eslint-report", "size_in_bytes": 512, "expired": false},
			{"id": 2, "name": "ruff-report", "size_in_bytes": 256, "expired": true}
		]}`)
	}))

	arts, err := p.ListRunArtifacts(context.Background(), 99)
	if err != nil {
		t.Fatalf("ListRunArtifacts: %v", err)
	}
	if len(arts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(arts))
	}
	if arts[0].Name != "eslint-report" || arts[0].SizeBytes != 512 {
		t.Errorf("artifact[0] = %+v", arts[0])
	}
	if !arts[1].Expired {
		t.Error("artifact[1] should be expired")
	}
}

func TestMapPR(t *testing.T) {
	pr := &gogithub.PullRequest{
		Number:       gogithub.Ptr(12),
		Title:        gogithub.Ptr("Add widget cache"),
		Body:         gogithub.Ptr("caches widgets"),
		State:        gogithub.Ptr("open"),
		ChangedFiles: gogithub.Ptr(3),
		Additions:    gogithub.Ptr(40),
		Deletions:    gogithub.Ptr(10),
		Head: &gogithub.PullRequestBranch{
			SHA: gogithub.Ptr("headsha"),
			Ref: gogithub.Ptr("feature/cache"),
		},
		Base: &gogithub.PullRequestBranch{
			SHA: gogithub.Ptr("basesha"),
			Ref: gogithub.Ptr("main"),
		},
	}

	got := mapPR(pr)
	if got.Number != 12 || got.HeadSHA != "headsha" || got.BaseBranch != "main" {
		t.Errorf("mapPR = %+v", got)
	}
	if got.ChangedFiles != 3 || got.Additions != 40 || got.Deletions != 10 {
		t.Errorf("mapPR counts = %+v", got)
	}
}

func TestMapOutputColumnRules(t *testing.T) {
	out := hosting.CheckOutput{
		Title:   "t",
		Summary: "s",
		Text:    "b",
		Annotations: []hosting.CheckAnnotation{
			{Path: "a.go", StartLine: 3, EndLine: 3, StartColumn: 5, Level: "failure", Message: "m"},
			{Path: "b.go", StartLine: 1, EndLine: 9, StartColumn: 5, Level: "warning", Message: "m"},
		},
	}

	mapped := mapOutput(out)
	if len(mapped.Annotations) != 2 {
		t.Fatalf("annotations = %d, want 2", len(mapped.Annotations))
	}
	if mapped.Annotations[0].StartColumn == nil {
		t.Error("single-line annotation should keep its column")
	}
	if mapped.Annotations[1].StartColumn != nil {
		t.Error("multi-line annotation must not carry columns")
	}
}
