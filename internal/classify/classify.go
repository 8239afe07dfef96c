// Package classify scores message content against category keyword lists
// and picks the best-matching category for a new lead.
package classify

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leadworks/leadgate/internal/domain"
	"github.com/leadworks/leadgate/internal/store"
)

const (
	wholeWordPoints = 2
	substringPoints = 1
)

// Normalize lowercases, trims, and collapses internal whitespace runs to
// single spaces. Applied to content and keywords alike before comparison.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Score rates content against a keyword list. A keyword appearing as a
// whole token scores 2, as a mere substring 1, otherwise 0. Every keyword
// that matched by either rule appears once in the matched list. Empty
// content or keywords never error; they simply score 0.
func Score(content string, keywords []string) (int, []string) {
	c := Normalize(content)
	var score int
	var matched []string

	for _, kw := range keywords {
		k := Normalize(kw)
		if k == "" || c == "" {
			continue
		}
		switch {
		case containsWord(c, k):
			score += wholeWordPoints
			matched = append(matched, kw)
		case strings.Contains(c, k):
			score += substringPoints
			matched = append(matched, kw)
		}
	}
	return score, matched
}

// containsWord reports whether needle occurs in haystack bounded on both
// sides by the string edges or by runes that are neither letters nor digits.
func containsWord(haystack, needle string) bool {
	for from := 0; ; {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(needle)
		if boundaryBefore(haystack, start) && boundaryAfter(haystack, end) {
			return true
		}
		from = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Detector classifies content against the active category catalog.
type Detector struct {
	categories store.CategoryStore
}

func NewDetector(categories store.CategoryStore) *Detector {
	return &Detector{categories: categories}
}

// Detect returns the active category with the strictly highest score for
// content, or nil when nothing scores above zero. Ties keep the first
// category in fetch order.
func (d *Detector) Detect(ctx context.Context, content string) (*domain.Category, error) {
	cats, err := d.categories.FindAllActive(ctx)
	if err != nil {
		return nil, err
	}

	var best *domain.Category
	bestScore := 0
	for i := range cats {
		score, _ := Score(content, cats[i].Keywords)
		if score > bestScore {
			best = &cats[i]
			bestScore = score
		}
	}
	return best, nil
}
