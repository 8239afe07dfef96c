package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// LegacyTokenPrefix marks flow tokens minted before categories were
// embedded in the token. The remainder is the lead id alone.
const LegacyTokenPrefix = "lead_generate~"

// FlowToken is the correlation token round-tripped through an outbound
// flow-form request and its eventual reply. The channel returns only this
// string, so it is the sole link back to the lead.
//
// Two wire shapes exist and both must parse:
//
//	{leadID}~{categoryID}
//	lead_generate~{leadID}
type FlowToken struct {
	LeadID     uuid.UUID
	CategoryID uuid.UUID // uuid.Nil for legacy tokens
	Legacy     bool
}

// ParseFlowToken decodes both token formats. An unparsable token is a
// permanent error for the message that carried it.
func ParseFlowToken(s string) (FlowToken, error) {
	if rest, ok := strings.CutPrefix(s, LegacyTokenPrefix); ok {
		leadID, err := uuid.Parse(rest)
		if err != nil {
			return FlowToken{}, fmt.Errorf("legacy flow token %q: bad lead id: %w", s, err)
		}
		return FlowToken{LeadID: leadID, Legacy: true}, nil
	}

	parts := strings.SplitN(s, "~", 2)
	if len(parts) != 2 {
		return FlowToken{}, fmt.Errorf("flow token %q: expected {leadID}~{categoryID}", s)
	}
	leadID, err := uuid.Parse(parts[0])
	if err != nil {
		return FlowToken{}, fmt.Errorf("flow token %q: bad lead id: %w", s, err)
	}
	categoryID, err := uuid.Parse(parts[1])
	if err != nil {
		return FlowToken{}, fmt.Errorf("flow token %q: bad category id: %w", s, err)
	}
	return FlowToken{LeadID: leadID, CategoryID: categoryID}, nil
}

// String renders the wire form of the token.
func (t FlowToken) String() string {
	if t.Legacy {
		return LegacyTokenPrefix + t.LeadID.String()
	}
	return t.LeadID.String() + "~" + t.CategoryID.String()
}
