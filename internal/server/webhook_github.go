package server

import (
	"context"
	"net/http"

	gogithub "github.com/google/go-github/v82/github"

	"github.com/gatewright/gatewright/internal/checks"
	"github.com/gatewright/gatewright/internal/hosting"
)

// prActions are the pull request actions that start a gate run.
var prActions = map[string]bool{
	"opened":           true,
	"synchronize":      true,
	"reopened":         true,
	"ready_for_review": true,
	"edited":           true,
}

func (s *Server) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := gogithub.ValidatePayload(r, []byte(s.cfg.GitHubWebhookSecret))
	if err != nil {
		s.metrics.webhooksRejected.WithLabelValues("github", "signature").Inc()
		s.log.Warn("github webhook signature rejected", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := gogithub.WebHookType(r)
	s.metrics.webhooksReceived.WithLabelValues("github", eventType).Inc()

	event, err := gogithub.ParseWebHook(eventType, payload)
	if err != nil {
		s.metrics.webhooksRejected.WithLabelValues("github", "malformed").Inc()
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	switch e := event.(type) {
	case *gogithub.PullRequestEvent:
		s.onGitHubPullRequest(e)
	case *gogithub.WorkflowRunEvent:
		s.onGitHubWorkflowRun(e)
	case *gogithub.CheckSuiteEvent:
		s.onGitHubCheckSuite(e)
	case *gogithub.CheckRunEvent:
		s.onGitHubCheckRun(e)
	case *gogithub.InstallationRepositoriesEvent:
		s.onGitHubInstallation(e)
	case *gogithub.PingEvent:
		// Delivery test from GitHub, nothing to do.
	default:
		s.log.Debug("ignoring github event", "event", eventType)
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) onGitHubPullRequest(e *gogithub.PullRequestEvent) {
	if !prActions[e.GetAction()] {
		return
	}
	fullName := e.GetRepo().GetFullName()
	number := e.GetPullRequest().GetNumber()
	s.dispatch("github", fullName, func(ctx context.Context, forge hosting.Provider) error {
		return s.lifecycle.HandlePREvent(ctx, forge, number)
	})
}

func (s *Server) onGitHubWorkflowRun(e *gogithub.WorkflowRunEvent) {
	if e.GetAction() != "completed" {
		return
	}
	run := e.GetWorkflowRun()
	fullName := e.GetRepo().GetFullName()
	headSHA := run.GetHeadSHA()
	runID := run.GetID()
	s.dispatch("github", fullName, func(ctx context.Context, forge hosting.Provider) error {
		return s.lifecycle.HandleCICompleted(ctx, forge, headSHA, runID)
	})
}

func (s *Server) onGitHubCheckSuite(e *gogithub.CheckSuiteEvent) {
	if e.GetAction() != "rerequested" {
		return
	}
	suite := e.GetCheckSuite()
	target := checks.RerunTarget{
		HeadSHA: suite.GetHeadSHA(),
		Branch:  suite.GetHeadBranch(),
	}
	if len(suite.PullRequests) > 0 {
		target.PRNumber = suite.PullRequests[0].GetNumber()
	}
	fullName := e.GetRepo().GetFullName()
	s.dispatch("github", fullName, func(ctx context.Context, forge hosting.Provider) error {
		return s.lifecycle.HandleRerun(ctx, forge, target)
	})
}

func (s *Server) onGitHubCheckRun(e *gogithub.CheckRunEvent) {
	if e.GetAction() != "rerequested" {
		return
	}
	checkRun := e.GetCheckRun()
	target := checks.RerunTarget{
		HeadSHA: checkRun.GetHeadSHA(),
		Branch:  checkRun.GetCheckSuite().GetHeadBranch(),
	}
	if len(checkRun.PullRequests) > 0 {
		target.PRNumber = checkRun.PullRequests[0].GetNumber()
	}
	fullName := e.GetRepo().GetFullName()
	s.dispatch("github", fullName, func(ctx context.Context, forge hosting.Provider) error {
		return s.lifecycle.HandleRerun(ctx, forge, target)
	})
}

func (s *Server) onGitHubInstallation(e *gogithub.InstallationRepositoriesEvent) {
	if s.seeder == nil || e.GetAction() != "added" {
		return
	}
	for _, repo := range e.RepositoriesAdded {
		fullName := repo.GetFullName()
		branch := repo.GetDefaultBranch()
		s.dispatch("github", fullName, func(ctx context.Context, forge hosting.Provider) error {
			return s.seeder.Seed(ctx, forge, branch)
		})
	}
}
