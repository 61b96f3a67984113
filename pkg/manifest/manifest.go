package manifest

import (
	v "github.com/cohesivestack/valgo"
)

// Input types a manifest may declare.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeNumber  = "number"
)

/*
InputSpec declares one accepted parameter of a tool.
*/
type InputSpec struct {
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
}

/*
Auth declares the authorization scopes a caller must hold to invoke
the tool. Access is granted when any held scope matches.
*/
type Auth struct {
	Scope []string `json:"scope"`
}

/*
Tool is a read-only capability descriptor loaded from a manifest file.
An update is a reload of the whole set, individual entries never mutate.
*/
type Tool struct {
	ToolID           string               `json:"tool_id"`
	Description      string               `json:"description,omitempty"`
	Inputs           map[string]InputSpec `json:"inputs"`
	Constraints      map[string]float64   `json:"constraints,omitempty"`
	ApprovalRequired bool                 `json:"approval_required"`
	Auth             Auth                 `json:"auth"`
}

/*
Validate checks that a parsed manifest is well-formed enough to serve.
*/
func (tool Tool) Validate() error {
	validation := v.Is(v.String(tool.ToolID, "tool_id").Not().Blank())

	for name, spec := range tool.Inputs {
		validation.Is(v.String(spec.Type, "inputs."+name+".type").InSlice([]string{
			TypeString, TypeInteger, TypeBoolean, TypeNumber,
		}))
	}

	if !validation.Valid() {
		return validation.Error()
	}

	return nil
}
