// Package channel defines the outbound messaging surface. Implementations
// talk to a concrete provider (WhatsApp Cloud API today); callers only see
// this interface so the pipeline stays provider-agnostic.
package channel

import (
	"context"

	"github.com/leadworks/leadgate/internal/domain"
)

// Sender delivers outbound messages to a lead's phone number.
type Sender interface {
	// SendText delivers a plain text message.
	SendText(ctx context.Context, phone, body string) error

	// SendMedia delivers a single media attachment by URL. kind is one of
	// image, video or document.
	SendMedia(ctx context.Context, phone, url, kind, caption string) error

	// SendCategoryList delivers an interactive list of categories for the
	// lead to pick from. Row ids carry the category_select~ prefix so the
	// reply can be routed back.
	SendCategoryList(ctx context.Context, phone string, categories []domain.Category) error

	// SendFlowForm delivers the lead-details flow form carrying token so the
	// submission can be tied back to the lead (and category, when known).
	SendFlowForm(ctx context.Context, phone string, token domain.FlowToken) error
}

// ListRowPrefix tags interactive list row ids so category replies are
// distinguishable from other list replies.
const ListRowPrefix = "category_select~"
