package rule

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Comparison operators.
const (
	OpGTE = "gte"
	OpGT  = "gt"
	OpLTE = "lte"
	OpLT  = "lt"
	OpEQ  = "eq"
)

// OpSymbol maps an operator to its rendered symbol.
func OpSymbol(op string) string {
	switch op {
	case OpGTE:
		return ">="
	case OpGT:
		return ">"
	case OpLTE:
		return "<="
	case OpLT:
		return "<"
	case OpEQ:
		return "="
	default:
		return op
	}
}

// Comparison is one criterion: a metric related to a numeric threshold
// under exactly one operator.
type Comparison struct {
	Metric    string
	Op        string
	Threshold float64
}

// UnmarshalYAML decodes the wire shape {metric: <id>, <op>: <threshold>}.
// Exactly one operator key must be present; the legacy
// {metric, threshold} shorthand is rejected.
func (c *Comparison) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}

	metric, ok := raw["metric"].(string)
	if !ok || metric == "" {
		return fmt.Errorf("comparison requires a metric id")
	}
	c.Metric = metric

	if _, legacy := raw["threshold"]; legacy {
		return fmt.Errorf("metric %q uses the legacy threshold shorthand; use one of gte/gt/lte/lt/eq", metric)
	}

	found := 0
	for _, op := range []string{OpGTE, OpGT, OpLTE, OpLT, OpEQ} {
		v, present := raw[op]
		if !present {
			continue
		}
		threshold, err := toFloat(v)
		if err != nil {
			return fmt.Errorf("metric %q: operator %s: %w", metric, op, err)
		}
		c.Op = op
		c.Threshold = threshold
		found++
	}

	switch found {
	case 0:
		return fmt.Errorf("metric %q has no operator (want one of gte/gt/lte/lt/eq)", metric)
	case 1:
		return nil
	default:
		return fmt.Errorf("metric %q has %d operators, want exactly one", metric, found)
	}
}

// Satisfied reports whether value relates to the threshold under the operator.
func (c Comparison) Satisfied(value float64) bool {
	switch c.Op {
	case OpGTE:
		return value >= c.Threshold
	case OpGT:
		return value > c.Threshold
	case OpLTE:
		return value <= c.Threshold
	case OpLT:
		return value < c.Threshold
	case OpEQ:
		return value == c.Threshold
	default:
		return false
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("threshold must be numeric, got %T", v)
	}
}

// Criteria is a rule's success-criteria matrix.
type Criteria struct {
	Require                 []Comparison `yaml:"require"`
	AnyOf                   []Comparison `yaml:"any_of"`
	NeutralOnMissingMetrics bool         `yaml:"neutral_on_missing_metrics"`
}

// validate enforces load-time invariants: at least one of require/any_of.
// Per-comparison invariants are enforced during unmarshal.
func (c Criteria) validate() error {
	if len(c.Require) == 0 && len(c.AnyOf) == 0 {
		return fmt.Errorf("at least one of require or any_of must be present")
	}
	return nil
}
