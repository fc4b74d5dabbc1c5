// Package guard bounds what an agent may do while browsing a history.
package guard

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy defines the limits and scopes for a question answering session.
type Policy struct {
	MaxSteps        int      `json:"max_steps" mapstructure:"max_steps" validate:"gt=0"`
	MaxPromptTokens int      `json:"max_prompt_tokens" mapstructure:"max_prompt_tokens" validate:"gte=0"`
	MaxOutputTokens int      `json:"max_output_tokens" mapstructure:"max_output_tokens" validate:"gte=0"`
	MaxSearches     int      `json:"max_searches" mapstructure:"max_searches" validate:"gte=0"`
	AllowedTools    []string `json:"allowed_tools" mapstructure:"allowed_tools"`
}

// DefaultPolicy provides safe defaults. Token and search limits of zero
// are not enforced.
var DefaultPolicy = Policy{
	MaxSteps:        20,
	MaxPromptTokens: 200000,
	MaxOutputTokens: 8000,
	AllowedTools:    []string{"*"},
}

// Violation represents a specific breach of policy.
type Violation struct {
	Rule    string
	Message string
	Fatal   bool
}

func (v *Violation) Error() string {
	return v.Rule + ": " + v.Message
}

// Guard enforces the policy.
type Guard struct {
	policy Policy
}

func New(p Policy) *Guard {
	return &Guard{policy: p}
}

// Policy returns the guard's current policy configuration.
func (g *Guard) Policy() Policy {
	return g.policy
}

// CheckBudget verifies if the usage is within limits.
func (g *Guard) CheckBudget(steps, promptTokens, outputTokens int) *Violation {
	if steps > g.policy.MaxSteps {
		return &Violation{Rule: "max_steps", Message: fmt.Sprintf("Step limit of %d exceeded", g.policy.MaxSteps), Fatal: true}
	}
	if g.policy.MaxPromptTokens > 0 && promptTokens > g.policy.MaxPromptTokens {
		return &Violation{Rule: "max_prompt_tokens", Message: "Prompt token budget exceeded", Fatal: true}
	}
	if g.policy.MaxOutputTokens > 0 && outputTokens > g.policy.MaxOutputTokens {
		return &Violation{Rule: "max_output_tokens", Message: "Output token budget exceeded", Fatal: true}
	}
	return nil
}

// CheckSearches limits the number of semantic searches, which cost an
// embedding call each. The violation is not fatal: the agent can keep
// browsing by index and time.
func (g *Guard) CheckSearches(searches int) *Violation {
	if g.policy.MaxSearches > 0 && searches > g.policy.MaxSearches {
		return &Violation{
			Rule:    "max_searches",
			Message: fmt.Sprintf("Search limit of %d reached. Use expand and collapse to navigate instead.", g.policy.MaxSearches),
		}
	}
	return nil
}

// CheckTool verifies that a tool name matches one of the allowed globs.
func (g *Guard) CheckTool(name string) *Violation {
	for _, pattern := range g.policy.AllowedTools {
		match, err := doublestar.Match(pattern, name)
		if err == nil && match {
			return nil
		}
	}
	return &Violation{Rule: "allowed_tools", Message: "Tool not allowed: " + name}
}
