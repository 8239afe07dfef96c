// Package wire turns raw queue-message bytes (webhook-relayed WhatsApp
// Cloud events) into a canonical ParsedMessage for the intake pipeline.
package wire

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/leadworks/leadgate/internal/domain"
)

// ErrorKind distinguishes the permanent parse failures. All of them mean
// the message should be dropped, not redelivered.
type ErrorKind string

const (
	ErrInvalidEncoding  ErrorKind = "invalid_encoding"
	ErrMissingField     ErrorKind = "missing_field"
	ErrInvalidTimestamp ErrorKind = "invalid_timestamp"
)

// ParseError reports why a payload could not be parsed.
type ParseError struct {
	Kind  ErrorKind
	Field string
	cause error
}

func (e *ParseError) Error() string {
	switch {
	case e.Field != "" && e.cause != nil:
		return fmt.Sprintf("parse %s (%s): %v", e.Field, e.Kind, e.cause)
	case e.Field != "":
		return fmt.Sprintf("parse %s: %s", e.Field, e.Kind)
	case e.cause != nil:
		return fmt.Sprintf("parse: %s: %v", e.Kind, e.cause)
	default:
		return fmt.Sprintf("parse: %s", e.Kind)
	}
}

func (e *ParseError) Unwrap() error { return e.cause }

// FlowFields is the field map submitted through a flow form. Only the
// fields present in the form response are populated.
type FlowFields struct {
	Name         string
	BusinessName string
	Email        string
	Pincode      string
	FirstName    string
	LastName     string
	AcceptTerms  bool
	AcceptOffers bool
	CategoryID   string
}

// ParsedMessage is the canonical form of one inbound chat event. It lives
// only for the duration of one orchestrator pass; derived records are
// persisted, the ParsedMessage itself never is.
type ParsedMessage struct {
	Phone             string
	Content           string
	Timestamp         time.Time
	MediaID           string
	MediaKind         string
	Subtype           domain.Subtype
	ListReplyID       string
	ListReplyTitle    string
	FlowToken         string
	FlowFields        *FlowFields
	ProviderMessageID string
}

// Wire shapes of the provider payload. Only the fields the pipeline reads
// are declared; everything else passes through json.Unmarshal untouched.

type payload struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *textBody    `json:"text"`
	Image       *mediaBody   `json:"image"`
	Video       *mediaBody   `json:"video"`
	Document    *mediaBody   `json:"document"`
	Interactive *interactive `json:"interactive"`
}

type textBody struct {
	Body string `json:"body"`
}

type mediaBody struct {
	ID       string `json:"id"`
	Caption  string `json:"caption"`
	MimeType string `json:"mime_type"`
}

type interactive struct {
	Type        string    `json:"type"`
	ListReply   *replyRef `json:"list_reply"`
	ButtonReply *replyRef `json:"button_reply"`
	NfmReply    *nfmReply `json:"nfm_reply"`
}

type replyRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type nfmReply struct {
	Name         string `json:"name"`
	Body         string `json:"body"`
	ResponseJSON string `json:"response_json"`
}

// Parse transforms one raw payload into a ParsedMessage. All failures are
// *ParseError; nothing here panics on malformed input.
func Parse(body []byte) (*ParsedMessage, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &ParseError{Kind: ErrInvalidEncoding, cause: err}
	}

	if p.From == "" {
		return nil, &ParseError{Kind: ErrMissingField, Field: "from"}
	}
	if p.Timestamp == "" {
		return nil, &ParseError{Kind: ErrMissingField, Field: "timestamp"}
	}
	if p.Type == "" {
		return nil, &ParseError{Kind: ErrMissingField, Field: "type"}
	}

	secs, err := strconv.ParseInt(p.Timestamp, 10, 64)
	if err != nil {
		return nil, &ParseError{Kind: ErrInvalidTimestamp, Field: "timestamp", cause: err}
	}

	msg := &ParsedMessage{
		Phone:             NormalizePhone(p.From),
		Timestamp:         time.UnixMilli(secs * 1000).UTC(),
		ProviderMessageID: p.ID,
	}

	switch p.Type {
	case "text":
		msg.Subtype = domain.SubtypeText
		if p.Text != nil {
			msg.Content = p.Text.Body
		}
	case "image":
		fillMedia(msg, domain.SubtypeImage, p.Image, "[Image]")
	case "video":
		fillMedia(msg, domain.SubtypeVideo, p.Video, "[Video]")
	case "document":
		fillMedia(msg, domain.SubtypeDocument, p.Document, "[Document]")
	case "interactive":
		fillInteractive(msg, p.Interactive)
	default:
		msg.Subtype = domain.SubtypeOther
		msg.Content = placeholder(p.Type)
	}

	return msg, nil
}

func fillMedia(msg *ParsedMessage, subtype domain.Subtype, m *mediaBody, fallback string) {
	msg.Subtype = subtype
	msg.Content = fallback
	msg.MediaKind = string(subtype)
	if m == nil {
		return
	}
	msg.MediaID = m.ID
	if m.Caption != "" {
		msg.Content = m.Caption
	}
}

func fillInteractive(msg *ParsedMessage, in *interactive) {
	if in == nil {
		msg.Subtype = domain.SubtypeOther
		msg.Content = placeholder("interactive")
		return
	}

	switch in.Type {
	case "list_reply":
		msg.Subtype = domain.SubtypeListReply
		if in.ListReply != nil {
			msg.ListReplyID = in.ListReply.ID
			msg.ListReplyTitle = in.ListReply.Title
		}
		label := msg.ListReplyTitle
		if label == "" {
			label = msg.ListReplyID
		}
		msg.Content = "Selected: " + label
	case "button_reply":
		msg.Subtype = domain.SubtypeButtonReply
		if in.ButtonReply != nil {
			msg.Content = in.ButtonReply.Title
		}
	case "nfm_reply":
		msg.Subtype = domain.SubtypeFlowReply
		if in.NfmReply != nil {
			msg.Content = in.NfmReply.Body
			parseFlowResponse(msg, in.NfmReply.ResponseJSON)
		}
	default:
		// Unknown interactive subtypes fall through to the plain
		// content branch downstream.
		msg.Subtype = domain.SubtypeOther
		msg.Content = placeholder(in.Type)
	}
}

// parseFlowResponse extracts the correlation token and field map from the
// JSON document embedded in an nfm_reply. A broken document is logged and
// treated as "no structured data"; it never fails the whole message.
func parseFlowResponse(msg *ParsedMessage, responseJSON string) {
	if responseJSON == "" {
		return
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(responseJSON), &raw); err != nil {
		slog.Warn("wire: unreadable flow response document, ignoring", "error", err)
		return
	}

	fields := &FlowFields{
		Name:         stringField(raw, "name"),
		BusinessName: stringField(raw, "business_name"),
		Email:        stringField(raw, "email"),
		Pincode:      stringField(raw, "pincode"),
		FirstName:    stringField(raw, "first_name"),
		LastName:     stringField(raw, "last_name"),
		AcceptTerms:  boolField(raw, "accept_terms"),
		AcceptOffers: boolField(raw, "accept_offers"),
		CategoryID:   stringField(raw, "category_id"),
	}

	msg.FlowToken = stringField(raw, "flow_token")
	msg.FlowFields = fields
}

// stringField reads a value that providers send either as a string or a
// number (pincodes in particular arrive both ways).
func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func boolField(raw map[string]any, key string) bool {
	switch v := raw[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	default:
		return false
	}
}

// NormalizePhone strips everything except digits and ensures a single
// leading +. Already-normalized numbers pass through unchanged.
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + 1)
	b.WriteByte('+')
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// placeholder renders the bracketed stand-in content for non-text types,
// e.g. "sticker" → "[Sticker]".
func placeholder(rawType string) string {
	if rawType == "" {
		return "[Unknown]"
	}
	r, size := utf8.DecodeRuneInString(rawType)
	if r == utf8.RuneError && size <= 1 {
		return "[Unknown]"
	}
	return "[" + string(unicode.ToUpper(r)) + rawType[size:] + "]"
}
