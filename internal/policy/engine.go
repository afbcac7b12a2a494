// Package policy evaluates organizer start commands against an OPA policy.
package policy

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/rego"
)

const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// StartInput is the document the policy sees for a start command.
type StartInput struct {
	OrganizerID       string `json:"organizer_id"`
	ReadyThreshold    int    `json:"ready_threshold"`
	NotReadyThreshold int    `json:"not_ready_threshold"`
	TimeoutSeconds    int64  `json:"timeout_seconds"`
	MaxTimeoutSeconds int64  `json:"max_timeout_seconds"`
	MaxThreshold      int    `json:"max_threshold"`
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Decision string
	Reasons  []string
}

// Allowed reports whether the command may proceed.
func (d Decision) Allowed() bool {
	return d.Decision != DecisionBlock
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.readyup_policy"),
		rego.Module("readyup_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// LoadPolicy reads a policy module from path, or returns DefaultPolicy when
// path is empty.
func LoadPolicy(path string) (string, error) {
	if path == "" {
		return DefaultPolicy, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	return string(data), nil
}

// Evaluate checks a start command.
func (e *Engine) Evaluate(ctx context.Context, input StartInput) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	// An empty package evaluates to nothing; allow in that case.
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Decision: DecisionAllow}, nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{Decision: DecisionAllow}, nil
	}

	d := Decision{Decision: DecisionAllow}
	if s, ok := doc["decision"].(string); ok {
		d.Decision = s
	}
	if reasons, ok := doc["reasons"].([]interface{}); ok {
		for _, r := range reasons {
			if s, ok := r.(string); ok {
				d.Reasons = append(d.Reasons, s)
			}
		}
		sort.Strings(d.Reasons)
	}
	return d, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package readyup_policy

import rego.v1

default decision := "allow"

decision := "block" if count(reasons) > 0

reasons contains msg if {
	input.max_timeout_seconds > 0
	input.timeout_seconds > input.max_timeout_seconds
	msg := sprintf("timeout of %ds exceeds the maximum of %ds", [input.timeout_seconds, input.max_timeout_seconds])
}

reasons contains msg if {
	input.max_threshold > 0
	input.ready_threshold > input.max_threshold
	msg := sprintf("ready threshold %d exceeds the maximum of %d", [input.ready_threshold, input.max_threshold])
}

reasons contains msg if {
	input.max_threshold > 0
	input.not_ready_threshold > input.max_threshold
	msg := sprintf("not ready threshold %d exceeds the maximum of %d", [input.not_ready_threshold, input.max_threshold])
}
`
