// Package catalog maps gated banking tools to the capability required to
// invoke them. The guardrail core never executes a tool; it only decides
// whether a named tool may be authorized for an actor and target.
package catalog

import (
	"sort"

	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/rbac"
)

// Tool describes one gated domain operation.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Capability  rbac.Capability `json:"capability"`

	// TargetRequired marks tools that act on a specific account owner and
	// therefore go through the gate's ownership rule.
	TargetRequired bool `json:"target_required"`
}

var builtins = []Tool{
	{
		Name:           "balance_lookup",
		Description:    "Look up the current balance of an account",
		Capability:     rbac.CapViewOwnAccount,
		TargetRequired: true,
	},
	{
		Name:           "transaction_history",
		Description:    "List recent transactions for an account",
		Capability:     rbac.CapViewOwnAccount,
		TargetRequired: true,
	},
	{
		Name:           "funds_transfer",
		Description:    "Transfer funds between the actor's own accounts",
		Capability:     rbac.CapTransferOwnFunds,
		TargetRequired: true,
	},
	{
		Name:           "fraud_report",
		Description:    "File a fraud report against an account",
		Capability:     rbac.CapFileFraudReport,
		TargetRequired: true,
	},
	{
		Name:        "account_profile",
		Description: "View the actor's own profile and contact details",
		Capability:  rbac.CapViewOwnAccount,
	},
}

// Catalog is a static tool registry.
type Catalog struct {
	tools map[string]Tool
}

// New creates the built-in banking catalog.
func New() *Catalog {
	c := &Catalog{tools: make(map[string]Tool, len(builtins))}
	for _, t := range builtins {
		c.tools[t.Name] = t
	}
	return c
}

// Lookup returns the tool descriptor for a name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// RequiredCapability returns the capability gating a tool, or NotFound for
// an unknown tool name.
func (c *Catalog) RequiredCapability(name string) (rbac.Capability, error) {
	t, ok := c.tools[name]
	if !ok {
		return "", domain.ErrNotFound("unknown tool " + name)
	}
	return t.Capability, nil
}

// ToolsFor lists the tools whose capability the role holds, sorted by name.
func (c *Catalog) ToolsFor(role domain.Role) []Tool {
	var out []Tool
	for _, t := range c.tools {
		if rbac.HasCapability(role, t.Capability) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
