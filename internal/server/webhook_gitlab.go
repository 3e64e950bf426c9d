package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gatewright/gatewright/internal/hosting"
)

// GitLab webhook payloads, trimmed to the fields the dispatcher reads.
// GitLab has no typed webhook parser in its client library, so these are
// decoded by hand.
type gitlabMergeRequestHook struct {
	ObjectKind string `json:"object_kind"`
	Project    struct {
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	ObjectAttributes struct {
		IID    int    `json:"iid"`
		Action string `json:"action"`
		State  string `json:"state"`
	} `json:"object_attributes"`
}

type gitlabPipelineHook struct {
	ObjectKind string `json:"object_kind"`
	Project    struct {
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	ObjectAttributes struct {
		ID     int64  `json:"id"`
		SHA    string `json:"sha"`
		Status string `json:"status"`
	} `json:"object_attributes"`
}

// mrActions are the merge request actions that start a gate run.
var mrActions = map[string]bool{
	"open":   true,
	"reopen": true,
	"update": true,
}

// pipelineTerminalStatuses are the pipeline states worth reconciling on.
var pipelineTerminalStatuses = map[string]bool{
	"success": true,
	"failed":  true,
}

func (s *Server) handleGitLabWebhook(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Gitlab-Token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.GitLabWebhookToken)) != 1 {
		s.metrics.webhooksRejected.WithLabelValues("gitlab", "token").Inc()
		s.log.Warn("gitlab webhook token rejected")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	eventType := r.Header.Get("X-Gitlab-Event")
	s.metrics.webhooksReceived.WithLabelValues("gitlab", eventType).Inc()

	switch eventType {
	case "Merge Request Hook":
		var hook gitlabMergeRequestHook
		if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
			s.metrics.webhooksRejected.WithLabelValues("gitlab", "malformed").Inc()
			http.Error(w, "malformed payload", http.StatusBadRequest)
			return
		}
		s.onGitLabMergeRequest(&hook)
	case "Pipeline Hook":
		var hook gitlabPipelineHook
		if err := json.NewDecoder(r.Body).Decode(&hook); err != nil {
			s.metrics.webhooksRejected.WithLabelValues("gitlab", "malformed").Inc()
			http.Error(w, "malformed payload", http.StatusBadRequest)
			return
		}
		s.onGitLabPipeline(&hook)
	default:
		s.log.Debug("ignoring gitlab event", "event", eventType)
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) onGitLabMergeRequest(hook *gitlabMergeRequestHook) {
	if hook.ObjectKind != "merge_request" || !mrActions[hook.ObjectAttributes.Action] {
		return
	}
	fullName := hook.Project.PathWithNamespace
	number := hook.ObjectAttributes.IID
	s.dispatch("gitlab", fullName, func(ctx context.Context, forge hosting.Provider) error {
		return s.lifecycle.HandlePREvent(ctx, forge, number)
	})
}

func (s *Server) onGitLabPipeline(hook *gitlabPipelineHook) {
	if hook.ObjectKind != "pipeline" || !pipelineTerminalStatuses[hook.ObjectAttributes.Status] {
		return
	}
	fullName := hook.Project.PathWithNamespace
	sha := hook.ObjectAttributes.SHA
	pipelineID := hook.ObjectAttributes.ID
	s.dispatch("gitlab", fullName, func(ctx context.Context, forge hosting.Provider) error {
		return s.lifecycle.HandleCICompleted(ctx, forge, sha, pipelineID)
	})
}
