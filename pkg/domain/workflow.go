package domain

type Workflow string

const (
	WorkflowSaleable   Workflow = "SALEABLE"
	WorkflowSubsidized Workflow = "SUBSIDIZED"
	WorkflowSlum       Workflow = "SLUM"
	WorkflowClearland  Workflow = "CLEARLAND"
)

// Capabilities declares what a workflow supports. The gating engine is driven
// entirely by this table; adding a workflow means adding a row, not code.
type Capabilities struct {
	HasValuer       bool `yaml:"hasValuer" json:"has_valuer"`
	HasRounds       bool `yaml:"hasRounds" json:"has_rounds"`
	HasAsk          bool `yaml:"hasAsk" json:"has_ask"`
	HasQuote        bool `yaml:"hasQuote" json:"has_quote"`
	HasSettlement   bool `yaml:"hasSettlement" json:"has_settlement"`
	RoleBasedAccess bool `yaml:"roleBasedAccess" json:"role_based_access"`
}

type Catalog map[Workflow]Capabilities

func DefaultCatalog() Catalog {
	return Catalog{
		WorkflowSaleable:   {HasValuer: true, HasRounds: true, HasAsk: true, HasQuote: true, HasSettlement: true, RoleBasedAccess: true},
		WorkflowSubsidized: {HasRounds: true, HasAsk: true, HasQuote: true, HasSettlement: true, RoleBasedAccess: true},
		WorkflowSlum:       {HasRounds: true, HasAsk: true, HasSettlement: true, RoleBasedAccess: true},
		WorkflowClearland:  {HasValuer: true, HasRounds: true, HasAsk: true, HasQuote: true, RoleBasedAccess: true},
	}
}

func (c Catalog) Lookup(w Workflow) (Capabilities, bool) {
	caps, ok := c[w]
	return caps, ok
}
