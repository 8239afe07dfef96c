// Package autoreply sends a category's canned reply (template text plus any
// attached media) to a lead. Everything here is best-effort: a failed send is
// logged and swallowed so intake keeps moving.
package autoreply

import (
	"context"
	"log/slog"

	"github.com/leadworks/leadgate/internal/channel"
	"github.com/leadworks/leadgate/internal/domain"
	"github.com/leadworks/leadgate/internal/store"
)

type Responder struct {
	sender   channel.Sender
	messages store.MessageStore
	logger   *slog.Logger
}

func NewResponder(sender channel.Sender, messages store.MessageStore, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{sender: sender, messages: messages, logger: logger}
}

// SendForLead delivers cat's reply template and media to lead. Each piece is
// attempted independently; failures are logged per piece and never returned.
// Every successful send is recorded as an outbound message.
func (r *Responder) SendForLead(ctx context.Context, lead *domain.Lead, cat *domain.Category) {
	if cat.ReplyTemplate != "" {
		if err := r.sender.SendText(ctx, lead.Phone, cat.ReplyTemplate); err != nil {
			r.logger.Warn("autoreply text send failed",
				"lead_id", lead.ID, "category_id", cat.ID, "error", err)
		} else {
			r.record(ctx, lead, cat.ReplyTemplate, "")
		}
	}

	for _, url := range cat.MediaURLs {
		if err := r.sender.SendMedia(ctx, lead.Phone, url, "image", ""); err != nil {
			r.logger.Warn("autoreply media send failed",
				"lead_id", lead.ID, "category_id", cat.ID, "url", url, "error", err)
			continue
		}
		r.record(ctx, lead, url, "image")
	}
}

func (r *Responder) record(ctx context.Context, lead *domain.Lead, content, mediaKind string) {
	msg := &domain.Message{
		LeadID:    lead.ID,
		Content:   content,
		MediaKind: mediaKind,
	}
	if err := r.messages.CreateOutbound(ctx, msg); err != nil {
		r.logger.Warn("autoreply message record failed", "lead_id", lead.ID, "error", err)
	}
}
