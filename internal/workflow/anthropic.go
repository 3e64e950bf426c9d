package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"

	"github.com/gatewright/gatewright/internal/run"
)

// DefaultWorkflowID is the workflow rule documents get when they do not
// name one explicitly.
const DefaultWorkflowID = "review-evaluator"

const defaultMaxTokens = 4096

// Matches a fenced code block, with or without a language tag.
var codeFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// AnthropicWorkflow scores rule evaluation statements with a single
// Anthropic messages call and parses the model's JSON reply into the
// provider-result shape.
type AnthropicWorkflow struct {
	id        string
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicWorkflow builds a workflow around an Anthropic client.
func NewAnthropicWorkflow(id string, client *anthropic.Client, model string) *AnthropicWorkflow {
	if id == "" {
		id = DefaultWorkflowID
	}
	return &AnthropicWorkflow{
		id:        id,
		client:    client,
		model:     model,
		maxTokens: defaultMaxTokens,
	}
}

func (w *AnthropicWorkflow) ID() string { return w.id }

// Evaluate prompts the model once and expects a JSON object with a score
// and observations per metric.
func (w *AnthropicWorkflow) Evaluate(ctx context.Context, in Input) (*run.ProviderResult, error) {
	start := time.Now()

	resp, err := w.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(w.model),
		MaxTokens: w.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(in))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	result, err := parseModelReply(text.String())
	if err != nil {
		return nil, err
	}

	result.Provenance = run.Provenance{
		Provider:   "anthropic",
		Model:      w.model,
		RunID:      uuid.NewString(),
		WorkflowID: w.id,
		WallTimeMS: time.Since(start).Milliseconds(),
	}
	return result, nil
}

func buildPrompt(in Input) string {
	var b strings.Builder

	b.WriteString("You are reviewing a pull request against explicit evaluation statements.\n\n")
	fmt.Fprintf(&b, "## Pull request\nTitle: %s\n\nDescription:\n%s\n", in.PRTitle, in.PRBody)

	if in.DiffSummary != "" {
		b.WriteString("\n## Changed files\n")
		b.WriteString(in.DiffSummary)
	}
	for _, p := range in.Patches {
		fmt.Fprintf(&b, "\n## Patch: %s\n```diff\n%s\n```\n", p.Path, p.Body)
	}

	b.WriteString("\n## Evaluation statements\n")
	b.WriteString("Score each statement from 0.0 (clearly violated) to 1.0 (clearly satisfied), with short factual observations citing the PR.\n\n")
	metrics := make([]string, 0, len(in.Evaluations))
	for metric := range in.Evaluations {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)
	for _, metric := range metrics {
		fmt.Fprintf(&b, "- %s: %s\n", metric, in.Evaluations[metric])
	}

	b.WriteString(`
Respond with ONLY a JSON object of this exact shape:
{
  "metrics": {"<metric-id>": {"value": 0.0, "observations": ["..."]}},
  "summary": "one-paragraph overall assessment"
}
`)
	return b.String()
}

// parseModelReply strips an optional code fence and decodes the metrics
// object. The provenance block is stamped by the caller, not the model.
func parseModelReply(text string) (*run.ProviderResult, error) {
	trimmed := strings.TrimSpace(text)
	if m := codeFenceRegex.FindStringSubmatch(trimmed); m != nil {
		trimmed = strings.TrimSpace(m[1])
	}

	var result run.ProviderResult
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
		return nil, fmt.Errorf("workflow reply is not valid JSON: %w", err)
	}
	if len(result.Metrics) == 0 {
		return nil, fmt.Errorf("workflow reply contains no metrics")
	}
	return &result, nil
}
