// Package dedupe suppresses redelivered inbound messages. The check is
// best-effort: identical content for the same lead within a short window,
// not a strict idempotency key (the provider message id is persisted on
// inbound records but deliberately not used here).
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadworks/leadgate/internal/store"
)

// DefaultWindow is how far back identical content counts as a duplicate.
const DefaultWindow = 60 * time.Second

// Guard checks inbound content against the lead's recent messages.
type Guard struct {
	leads    store.LeadStore
	messages store.MessageStore
	window   time.Duration
	now      func() time.Time
}

func NewGuard(leads store.LeadStore, messages store.MessageStore, window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{leads: leads, messages: messages, window: window, now: time.Now}
}

// IsDuplicate reports whether an identical inbound message for this phone
// number was stored within the window. An unknown phone number can never
// be a duplicate.
func (g *Guard) IsDuplicate(ctx context.Context, phone, content string) (bool, error) {
	lead, err := g.leads.FindByPhone(ctx, phone)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup lead for dedupe: %w", err)
	}

	since := g.now().Add(-g.window)
	recent, err := g.messages.RecentInboundByLead(ctx, lead.ID, since)
	if err != nil {
		return false, fmt.Errorf("fetch recent messages for dedupe: %w", err)
	}

	for _, m := range recent {
		if m.Content == content {
			return true, nil
		}
	}
	return false, nil
}
