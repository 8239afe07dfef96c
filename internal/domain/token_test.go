package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseFlowToken_CategoryForm(t *testing.T) {
	leadID := uuid.MustParse("018f3b7a-0000-7000-8000-000000000001")
	catID := uuid.MustParse("018f3b7a-0000-7000-8000-000000000002")

	tok, err := ParseFlowToken(leadID.String() + "~" + catID.String())
	if err != nil {
		t.Fatalf("ParseFlowToken: %v", err)
	}
	if tok.Legacy {
		t.Error("category-form token parsed as legacy")
	}
	if tok.LeadID != leadID || tok.CategoryID != catID {
		t.Errorf("got %+v, want lead=%s category=%s", tok, leadID, catID)
	}
}

func TestParseFlowToken_LegacyForm(t *testing.T) {
	leadID := uuid.MustParse("018f3b7a-0000-7000-8000-000000000003")

	tok, err := ParseFlowToken("lead_generate~" + leadID.String())
	if err != nil {
		t.Fatalf("ParseFlowToken: %v", err)
	}
	if !tok.Legacy {
		t.Error("legacy token not flagged as legacy")
	}
	if tok.LeadID != leadID {
		t.Errorf("lead id = %s, want %s", tok.LeadID, leadID)
	}
	if tok.CategoryID != uuid.Nil {
		t.Errorf("legacy token carried category %s", tok.CategoryID)
	}
}

func TestParseFlowToken_RoundTrip(t *testing.T) {
	tokens := []FlowToken{
		{LeadID: uuid.New(), CategoryID: uuid.New()},
		{LeadID: uuid.New(), Legacy: true},
	}
	for _, want := range tokens {
		got, err := ParseFlowToken(want.String())
		if err != nil {
			t.Fatalf("round trip %q: %v", want.String(), err)
		}
		if got != want {
			t.Errorf("round trip %q: got %+v, want %+v", want.String(), got, want)
		}
	}
}

func TestParseFlowToken_Invalid(t *testing.T) {
	bad := []string{
		"",
		"not-a-token",
		"abc~def",
		uuid.New().String(),               // no separator
		uuid.New().String() + "~not-uuid", // bad category
		"lead_generate~not-uuid",          // bad legacy lead
	}
	for _, s := range bad {
		if _, err := ParseFlowToken(s); err == nil {
			t.Errorf("ParseFlowToken(%q) succeeded, want error", s)
		}
	}
}
