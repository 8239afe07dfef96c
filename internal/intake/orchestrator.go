// Package intake is the heart of the pipeline: it takes one parsed inbound
// message and drives it through duplicate suppression, lead lookup/creation,
// category detection, the onboarding conversation and agent assignment.
//
// Error discipline: a returned error means the message should be redelivered.
// Everything that cannot be fixed by retrying (missing lead, bad token,
// unknown category) is logged and swallowed so the queue drains.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/channel"
	"github.com/leadworks/leadgate/internal/domain"
	"github.com/leadworks/leadgate/internal/notify"
	"github.com/leadworks/leadgate/internal/sla"
	"github.com/leadworks/leadgate/internal/store"
	"github.com/leadworks/leadgate/internal/wire"
)

// Classifier picks the best-matching category for a piece of text, or nil
// when nothing matches.
type Classifier interface {
	Detect(ctx context.Context, content string) (*domain.Category, error)
}

// AgentSelector picks the least-loaded active agent for a category.
type AgentSelector interface {
	SelectForCategory(ctx context.Context, categoryID *uuid.UUID) (uuid.UUID, bool, error)
}

// DuplicateGuard reports whether content repeats a recent inbound message
// from the same phone.
type DuplicateGuard interface {
	IsDuplicate(ctx context.Context, phone, content string) (bool, error)
}

// AutoResponder sends a category's canned reply to a lead.
type AutoResponder interface {
	SendForLead(ctx context.Context, lead *domain.Lead, cat *domain.Category)
}

// Orchestrator wires the pipeline stages together. All collaborators are
// required except notifier and autoreply, which default to no-ops.
type Orchestrator struct {
	leads      store.LeadStore
	categories store.CategoryStore
	messages   store.MessageStore

	classifier Classifier
	selector   AgentSelector
	guard      DuplicateGuard
	slaInit    sla.Initializer
	sender     channel.Sender
	autoreply  AutoResponder
	notifier   notify.Notifier
	logger     *slog.Logger

	now func() time.Time
}

type Options struct {
	Leads      store.LeadStore
	Categories store.CategoryStore
	Messages   store.MessageStore
	Classifier Classifier
	Selector   AgentSelector
	Guard      DuplicateGuard
	SLA        sla.Initializer
	Sender     channel.Sender
	AutoReply  AutoResponder
	Notifier   notify.Notifier
	Logger     *slog.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		leads:      opts.Leads,
		categories: opts.Categories,
		messages:   opts.Messages,
		classifier: opts.Classifier,
		selector:   opts.Selector,
		guard:      opts.Guard,
		slaInit:    opts.SLA,
		sender:     opts.Sender,
		autoreply:  opts.AutoReply,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// Handle processes one parsed inbound message end to end.
func (o *Orchestrator) Handle(ctx context.Context, msg *wire.ParsedMessage) error {
	dup, err := o.guard.IsDuplicate(ctx, msg.Phone, msg.Content)
	if err != nil {
		// Suppression is best-effort: when the check itself fails, process
		// the message rather than drop it.
		o.logger.Warn("duplicate check failed", "phone", msg.Phone, "error", err)
	}
	if dup {
		o.logger.Info("duplicate message suppressed", "phone", msg.Phone)
		return nil
	}

	switch msg.Subtype {
	case domain.SubtypeListReply:
		if strings.HasPrefix(msg.ListReplyID, channel.ListRowPrefix) {
			return o.handleCategorySelection(ctx, msg)
		}
		return o.handleContent(ctx, msg)
	case domain.SubtypeFlowReply:
		return o.handleFlowReply(ctx, msg)
	case domain.SubtypeText, domain.SubtypeImage, domain.SubtypeVideo,
		domain.SubtypeDocument, domain.SubtypeButtonReply, domain.SubtypeOther:
		return o.handleContent(ctx, msg)
	default:
		o.logger.Warn("unhandled message subtype", "subtype", msg.Subtype, "phone", msg.Phone)
		return nil
	}
}

// handleContent covers plain messages: text, media, button replies and list
// replies that are not category picks. Known leads just get the message
// recorded; unknown phones start the onboarding conversation.
func (o *Orchestrator) handleContent(ctx context.Context, msg *wire.ParsedMessage) error {
	lead, err := o.leads.FindByPhone(ctx, msg.Phone)
	switch {
	case err == nil:
		if err := o.recordInbound(ctx, lead, msg); err != nil {
			return err
		}
		o.publish(notify.KindLeadMessage, lead, msg.Content)
		return nil
	case errors.Is(err, store.ErrNotFound):
		return o.onboardNewLead(ctx, msg)
	default:
		return fmt.Errorf("lead lookup for %s: %w", msg.Phone, err)
	}
}

func (o *Orchestrator) onboardNewLead(ctx context.Context, msg *wire.ParsedMessage) error {
	cat, err := o.classifier.Detect(ctx, msg.Content)
	if err != nil {
		return fmt.Errorf("category detect: %w", err)
	}

	lead := &domain.Lead{Phone: msg.Phone}
	if cat != nil {
		id := cat.ID
		lead.CategoryID = &id
	}

	err = o.leads.Create(ctx, lead)
	if errors.Is(err, store.ErrDuplicatePhone) {
		// Another worker created the lead between our lookup and insert.
		// Fall back to the existing-lead path.
		existing, ferr := o.leads.FindByPhone(ctx, msg.Phone)
		if ferr != nil {
			return fmt.Errorf("refetch after duplicate phone: %w", ferr)
		}
		if rerr := o.recordInbound(ctx, existing, msg); rerr != nil {
			return rerr
		}
		o.publish(notify.KindLeadMessage, existing, msg.Content)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lead create: %w", err)
	}

	if err := o.recordInbound(ctx, lead, msg); err != nil {
		return err
	}
	o.publish(notify.KindLeadCreated, lead, msg.Content)

	if o.slaInit != nil {
		if err := o.slaInit.InitializeForLead(ctx, lead.ID); err != nil {
			o.logger.Warn("sla initialize failed", "lead_id", lead.ID, "error", err)
		}
	}

	// From here on the lead exists and the message is stored; a send failure
	// must not trigger redelivery, which would duplicate the lead's history.
	// The category reply template waits until the details form comes back.
	if cat != nil {
		o.sendFlowForm(ctx, lead, cat.ID)
		return nil
	}
	o.sendCategoryList(ctx, lead)
	return nil
}

// handleCategorySelection applies a category picked from the interactive
// list: tag the lead and ask for details via the flow form. Assignment and
// the category auto-reply wait for the form submission.
func (o *Orchestrator) handleCategorySelection(ctx context.Context, msg *wire.ParsedMessage) error {
	raw := strings.TrimPrefix(msg.ListReplyID, channel.ListRowPrefix)
	catID, err := uuid.Parse(raw)
	if err != nil {
		o.logger.Warn("malformed category selection", "row_id", msg.ListReplyID, "phone", msg.Phone)
		return nil
	}

	lead, err := o.leads.FindByPhone(ctx, msg.Phone)
	if errors.Is(err, store.ErrNotFound) {
		o.logger.Warn("category selection from unknown phone", "phone", msg.Phone)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lead lookup for %s: %w", msg.Phone, err)
	}

	cat, err := o.categories.FindActiveByID(ctx, catID)
	if errors.Is(err, store.ErrNotFound) {
		o.logger.Warn("selected category not active", "category_id", catID, "lead_id", lead.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("category lookup: %w", err)
	}

	lead.CategoryID = &cat.ID
	if err := o.leads.Save(ctx, lead); err != nil {
		return fmt.Errorf("lead save: %w", err)
	}

	if err := o.recordInbound(ctx, lead, msg); err != nil {
		return err
	}
	o.publish(notify.KindLeadMessage, lead, msg.Content)

	o.sendFlowForm(ctx, lead, cat.ID)
	return nil
}

// handleFlowReply applies a submitted details form. The flow token is the
// only correlation back to the lead; anything unparsable is dropped with a
// warning because redelivery cannot repair it.
func (o *Orchestrator) handleFlowReply(ctx context.Context, msg *wire.ParsedMessage) error {
	if msg.FlowToken == "" {
		o.logger.Warn("flow reply without token", "phone", msg.Phone)
		return nil
	}
	token, err := domain.ParseFlowToken(msg.FlowToken)
	if err != nil {
		o.logger.Warn("unparsable flow token", "token", msg.FlowToken, "phone", msg.Phone)
		return nil
	}

	lead, err := o.leads.FindByID(ctx, token.LeadID)
	if errors.Is(err, store.ErrNotFound) {
		o.logger.Warn("flow token references missing lead", "lead_id", token.LeadID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("lead lookup by id: %w", err)
	}

	if msg.FlowFields != nil {
		applyFlowFields(lead, msg.FlowFields)
	}

	if lead.CategoryID == nil {
		if id, ok := o.resolveFlowCategory(ctx, token, msg.FlowFields); ok {
			lead.CategoryID = &id
		}
	}

	assigned := o.tryAssign(ctx, lead)
	if err := o.leads.Save(ctx, lead); err != nil {
		return fmt.Errorf("lead save: %w", err)
	}

	content := msg.Content
	if content == "" {
		content = "Submitted details form"
	}
	record := *msg
	record.Content = content
	if err := o.recordInbound(ctx, lead, &record); err != nil {
		return err
	}
	o.publish(notify.KindLeadMessage, lead, content)
	if assigned {
		o.publish(notify.KindLeadAssigned, lead, "")
	}

	if o.autoreply != nil && lead.CategoryID != nil {
		if cat, cerr := o.categories.FindActiveByID(ctx, *lead.CategoryID); cerr == nil {
			o.autoreply.SendForLead(ctx, lead, cat)
		}
	}
	return nil
}

// resolveFlowCategory picks a category for a lead that still has none: the
// form's own category field wins, then the one embedded in the token. Either
// must still be an active category.
func (o *Orchestrator) resolveFlowCategory(ctx context.Context, token domain.FlowToken, fields *wire.FlowFields) (uuid.UUID, bool) {
	candidates := make([]uuid.UUID, 0, 2)
	if fields != nil && fields.CategoryID != "" {
		if id, err := uuid.Parse(fields.CategoryID); err == nil {
			candidates = append(candidates, id)
		} else {
			o.logger.Warn("flow reply carries malformed category id", "category_id", fields.CategoryID)
		}
	}
	if token.CategoryID != uuid.Nil {
		candidates = append(candidates, token.CategoryID)
	}
	for _, id := range candidates {
		if _, err := o.categories.FindActiveByID(ctx, id); err == nil {
			return id, true
		}
	}
	return uuid.Nil, false
}

// tryAssign picks an agent for an unassigned, categorized lead. Assignment
// is best-effort: selector failures are logged and the lead stays queued.
func (o *Orchestrator) tryAssign(ctx context.Context, lead *domain.Lead) bool {
	if lead.AssignedTo != nil || lead.CategoryID == nil {
		return false
	}
	agentID, ok, err := o.selector.SelectForCategory(ctx, lead.CategoryID)
	if err != nil {
		o.logger.Warn("agent selection failed", "lead_id", lead.ID, "error", err)
		return false
	}
	if !ok {
		o.logger.Info("no agent available for category", "lead_id", lead.ID, "category_id", *lead.CategoryID)
		return false
	}
	at := o.now().UTC()
	lead.AssignedTo = &agentID
	lead.AssignedAt = &at
	return true
}

func (o *Orchestrator) recordInbound(ctx context.Context, lead *domain.Lead, msg *wire.ParsedMessage) error {
	m := &domain.Message{
		LeadID:            lead.ID,
		Content:           msg.Content,
		ProviderMessageID: msg.ProviderMessageID,
		MediaID:           msg.MediaID,
		MediaKind:         msg.MediaKind,
		SentAt:            msg.Timestamp,
	}
	if err := o.messages.CreateInbound(ctx, m); err != nil {
		return fmt.Errorf("record inbound message: %w", err)
	}
	return nil
}

func (o *Orchestrator) sendFlowForm(ctx context.Context, lead *domain.Lead, categoryID uuid.UUID) {
	token := domain.FlowToken{LeadID: lead.ID, CategoryID: categoryID}
	if err := o.sender.SendFlowForm(ctx, lead.Phone, token); err != nil {
		o.logger.Warn("flow form send failed", "lead_id", lead.ID, "error", err)
		return
	}
	o.recordOutbound(ctx, lead, "Sent details form")
}

func (o *Orchestrator) sendCategoryList(ctx context.Context, lead *domain.Lead) {
	cats, err := o.categories.FindAllActive(ctx)
	if err != nil {
		o.logger.Warn("category list fetch failed", "lead_id", lead.ID, "error", err)
		return
	}
	if len(cats) == 0 {
		o.logger.Warn("no active categories to offer", "lead_id", lead.ID)
		return
	}
	if err := o.sender.SendCategoryList(ctx, lead.Phone, cats); err != nil {
		o.logger.Warn("category list send failed", "lead_id", lead.ID, "error", err)
		return
	}
	o.recordOutbound(ctx, lead, "Sent category list")
}

func (o *Orchestrator) recordOutbound(ctx context.Context, lead *domain.Lead, content string) {
	m := &domain.Message{LeadID: lead.ID, Content: content}
	if err := o.messages.CreateOutbound(ctx, m); err != nil {
		o.logger.Warn("record outbound message failed", "lead_id", lead.ID, "error", err)
	}
}

func (o *Orchestrator) publish(kind string, lead *domain.Lead, content string) {
	o.notifier.Publish(notify.Event{
		Kind:       kind,
		LeadID:     lead.ID,
		Phone:      lead.Phone,
		Content:    content,
		CategoryID: lead.CategoryID,
		AgentID:    lead.AssignedTo,
		At:         o.now().UTC(),
	})
}

// applyFlowFields copies non-empty form fields onto the lead. A full name
// field wins over first/last when both are present.
func applyFlowFields(lead *domain.Lead, f *wire.FlowFields) {
	switch {
	case f.Name != "":
		lead.Name = f.Name
	case f.FirstName != "" || f.LastName != "":
		lead.Name = strings.TrimSpace(f.FirstName + " " + f.LastName)
	}
	if f.BusinessName != "" {
		lead.BusinessName = f.BusinessName
	}
	if f.Email != "" {
		lead.Email = f.Email
	}
	if f.Pincode != "" {
		lead.Pincode = f.Pincode
	}
}
