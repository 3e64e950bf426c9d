package gitlab

import (
	"testing"

	gogitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/gatewright/gatewright/internal/hosting"
)

func TestCountDiffLines(t *testing.T) {
	diff := `--- a/src/widget.go
+++ b/src/widget.go
@@ -1,4 +1,5 @@
 package widget
+// new line
+// another
-// removed
 func f() {}
`
	adds, dels := countDiffLines(diff)
	if adds != 2 || dels != 1 {
		t.Errorf("countDiffLines = (%d, %d), want (2, 1)", adds, dels)
	}
}

func TestMapMR(t *testing.T) {
	mr := &gogitlab.MergeRequest{
		BasicMergeRequest: gogitlab.BasicMergeRequest{
			IID:          12,
			Title:        "Add widget cache",
			State:        "opened",
			SHA:          "headsha",
			SourceBranch: "feature/cache",
			TargetBranch: "main",
		},
		DiffRefs: gogitlab.MergeRequestDiffRefs{BaseSha: "basesha"},
	}

	got := mapMR(mr)
	if got.Number != 12 || got.HeadSHA != "headsha" || got.BaseBranch != "main" {
		t.Errorf("mapMR = %+v", got)
	}
	if got.State != "open" {
		t.Errorf("state = %q, want open", got.State)
	}
	if got.BaseSHA != "basesha" {
		t.Errorf("base SHA = %q, want basesha", got.BaseSHA)
	}

	mr.DiffRefs = gogitlab.MergeRequestDiffRefs{}
	if got := mapMR(mr); got.BaseSHA != "" {
		t.Errorf("base SHA without diff refs = %q, want empty", got.BaseSHA)
	}
}

func TestMapDiffStatus(t *testing.T) {
	tests := []struct {
		diff *gogitlab.MergeRequestDiff
		want string
	}{
		{&gogitlab.MergeRequestDiff{NewFile: true}, "added"},
		{&gogitlab.MergeRequestDiff{DeletedFile: true}, "removed"},
		{&gogitlab.MergeRequestDiff{RenamedFile: true}, "renamed"},
		{&gogitlab.MergeRequestDiff{}, "modified"},
	}
	for _, tt := range tests {
		if got := mapDiffStatus(tt.diff); got != tt.want {
			t.Errorf("mapDiffStatus(%+v) = %q, want %q", tt.diff, got, tt.want)
		}
	}
}

func TestMapPipelineStatus(t *testing.T) {
	tests := []struct {
		in         string
		status     string
		conclusion string
	}{
		{"success", "completed", "success"},
		{"failed", "completed", "failure"},
		{"canceled", "completed", "cancelled"},
		{"running", "in_progress", ""},
		{"pending", "queued", ""},
	}
	for _, tt := range tests {
		status, conclusion := mapPipelineStatus(tt.in)
		if status != tt.status || conclusion != tt.conclusion {
			t.Errorf("mapPipelineStatus(%q) = (%q, %q), want (%q, %q)",
				tt.in, status, conclusion, tt.status, tt.conclusion)
		}
	}
}

func TestMapCheckState(t *testing.T) {
	tests := []struct {
		status     string
		conclusion string
		want       gogitlab.BuildStateValue
	}{
		{hosting.CheckStatusInProgress, "", gogitlab.Running},
		{hosting.CheckStatusCompleted, hosting.CheckConclusionFailure, gogitlab.Failed},
		{hosting.CheckStatusCompleted, hosting.CheckConclusionSuccess, gogitlab.Success},
		// Neutral must not block the merge train.
		{hosting.CheckStatusCompleted, hosting.CheckConclusionNeutral, gogitlab.Success},
	}
	for _, tt := range tests {
		if got := mapCheckState(tt.status, tt.conclusion); got != tt.want {
			t.Errorf("mapCheckState(%q, %q) = %q, want %q", tt.status, tt.conclusion, got, tt.want)
		}
	}
}

func TestStatusIDStable(t *testing.T) {
	a := statusID("abc123", "Gatewright Review")
	b := statusID("abc123", "Gatewright Review")
	c := statusID("def456", "Gatewright Review")

	if a != b {
		t.Error("statusID must be deterministic for the same (sha, name)")
	}
	if a == c {
		t.Error("statusID should differ across commits")
	}
	if a < 0 {
		t.Error("statusID must be non-negative")
	}
}
