package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/domain"
	"github.com/leadworks/leadgate/internal/store"
)

func TestScore_WholeWordAndSubstring(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		keywords    []string
		wantScore   int
		wantMatched []string
	}{
		{
			name:        "whole word",
			content:     "I need a quotation for steel pipes",
			keywords:    []string{"pipes"},
			wantScore:   2,
			wantMatched: []string{"pipes"},
		},
		{
			name:        "substring only",
			content:     "looking for pipeline work",
			keywords:    []string{"pipe"},
			wantScore:   1,
			wantMatched: []string{"pipe"},
		},
		{
			name:        "mixed",
			content:     "steel pipes and pipeline fittings",
			keywords:    []string{"pipes", "pipeline", "cement"},
			wantScore:   4,
			wantMatched: []string{"pipes", "pipeline"},
		},
		{
			name:      "no match",
			content:   "hello there",
			keywords:  []string{"cement"},
			wantScore: 0,
		},
		{
			name:        "punctuation is a word boundary",
			content:     "need pipes, urgently",
			keywords:    []string{"pipes"},
			wantScore:   2,
			wantMatched: []string{"pipes"},
		},
		{
			name:        "multi word keyword",
			content:     "interested in steel   pipes today",
			keywords:    []string{"Steel Pipes"},
			wantScore:   2,
			wantMatched: []string{"Steel Pipes"},
		},
		{
			name:        "non-ascii letter is not a word boundary",
			content:     "la pipeé est cassée",
			keywords:    []string{"pipe"},
			wantScore:   1,
			wantMatched: []string{"pipe"},
		},
		{
			name:        "whole word between non-ascii neighbors",
			content:     "señor needs pipes aquí",
			keywords:    []string{"pipes"},
			wantScore:   2,
			wantMatched: []string{"pipes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, matched := Score(tt.content, tt.keywords)
			if score != tt.wantScore {
				t.Errorf("score = %d, want %d", score, tt.wantScore)
			}
			if len(matched) != len(tt.wantMatched) {
				t.Fatalf("matched = %v, want %v", matched, tt.wantMatched)
			}
			for i := range matched {
				if matched[i] != tt.wantMatched[i] {
					t.Errorf("matched = %v, want %v", matched, tt.wantMatched)
					break
				}
			}
		})
	}
}

func TestScore_CaseInsensitive(t *testing.T) {
	content := "I Need STEEL Pipes"
	keywords := []string{"steel", "pipes"}

	base, _ := Score(content, keywords)
	upper, _ := Score(strings.ToUpper(content), keywords)
	lower, _ := Score(strings.ToLower(content), keywords)
	if base != upper || base != lower {
		t.Errorf("scores differ by case: base=%d upper=%d lower=%d", base, upper, lower)
	}
}

func TestScore_ZeroFloor(t *testing.T) {
	for _, content := range []string{"", "anything at all", "   "} {
		score, matched := Score(content, nil)
		if score != 0 || len(matched) != 0 {
			t.Errorf("Score(%q, nil) = %d, %v; want 0, []", content, score, matched)
		}
	}
	score, matched := Score("", []string{"pipes"})
	if score != 0 || len(matched) != 0 {
		t.Errorf("empty content scored %d with %v", score, matched)
	}
	score, matched = Score("pipes", []string{"", "   "})
	if score != 0 || len(matched) != 0 {
		t.Errorf("blank keywords scored %d with %v", score, matched)
	}
}

func TestScore_ExactBeatsPartial(t *testing.T) {
	exact, _ := Score("steel pipes here", []string{"pipes"})
	partial, _ := Score("steel pipeswork here", []string{"pipes"})
	if exact < partial {
		t.Errorf("whole-word score %d < substring score %d", exact, partial)
	}
}

func TestScore_MonotonicInMatchedKeywords(t *testing.T) {
	content := "cement steel pipes tiles"
	full := []string{"cement", "steel", "pipes", "tiles"}

	fullScore, _ := Score(content, full)
	for cut := range full {
		subset := append([]string{}, full[:cut]...)
		subScore, _ := Score(content, subset)
		if subScore > fullScore {
			t.Errorf("subset %v scored %d > full set %d", subset, subScore, fullScore)
		}
	}
}

// catalogStub serves a fixed category list in a fixed order.
type catalogStub struct {
	cats []domain.Category
}

func (c *catalogStub) FindActiveByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	for i := range c.cats {
		if c.cats[i].ID == id {
			return &c.cats[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (c *catalogStub) FindAllActive(ctx context.Context) ([]domain.Category, error) {
	return c.cats, nil
}

func TestDetect_HighestScoreWins(t *testing.T) {
	pipes := domain.Category{ID: uuid.New(), Name: "Pipes", Keywords: []string{"pipes", "pipe"}}
	cement := domain.Category{ID: uuid.New(), Name: "Cement", Keywords: []string{"cement"}}
	det := NewDetector(&catalogStub{cats: []domain.Category{cement, pipes}})

	got, err := det.Detect(context.Background(), "need steel pipes and a pipe bend")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got == nil || got.ID != pipes.ID {
		t.Errorf("Detect picked %+v, want Pipes", got)
	}
}

func TestDetect_ZeroScoreNeverReturned(t *testing.T) {
	only := domain.Category{ID: uuid.New(), Name: "General", Keywords: []string{"cement"}}
	det := NewDetector(&catalogStub{cats: []domain.Category{only}})

	got, err := det.Detect(context.Background(), "hello, anyone there?")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got != nil {
		t.Errorf("Detect returned %q for unmatchable content", got.Name)
	}
}

func TestDetect_TieKeepsFetchOrder(t *testing.T) {
	first := domain.Category{ID: uuid.New(), Name: "First", Keywords: []string{"steel"}}
	second := domain.Category{ID: uuid.New(), Name: "Second", Keywords: []string{"steel"}}
	det := NewDetector(&catalogStub{cats: []domain.Category{first, second}})

	got, err := det.Detect(context.Background(), "steel enquiry")
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Errorf("tie broken to %+v, want first-fetched", got)
	}
}
