// Package whatsapp implements channel.Sender on the WhatsApp Cloud API.
// All sends go through one rate limiter so bursts of onboarding messages
// stay under the per-number throughput cap.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/leadworks/leadgate/internal/channel"
	"github.com/leadworks/leadgate/internal/domain"
)

const (
	defaultBaseURL = "https://graph.facebook.com/v21.0"
	// Cloud API truncates longer row titles.
	maxRowTitle = 24
	maxListRows = 10
)

type Config struct {
	BaseURL       string
	PhoneNumberID string
	AccessToken   string
	// FlowID identifies the published lead-details flow.
	FlowID string
	// RatePerSecond caps outbound sends. Zero means 10/s.
	RatePerSecond float64
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

var _ channel.Sender = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}
}

// Wire shapes for POST /{phone-number-id}/messages.

type outbound struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *textBody    `json:"text,omitempty"`
	Image            *mediaLink   `json:"image,omitempty"`
	Video            *mediaLink   `json:"video,omitempty"`
	Document         *mediaLink   `json:"document,omitempty"`
	Interactive      *interactive `json:"interactive,omitempty"`
}

type textBody struct {
	Body string `json:"body"`
}

type mediaLink struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type interactive struct {
	Type   string      `json:"type"`
	Header *itxHeader  `json:"header,omitempty"`
	Body   itxBody     `json:"body"`
	Action interface{} `json:"action"`
}

type itxHeader struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type itxBody struct {
	Text string `json:"text"`
}

type listAction struct {
	Button   string        `json:"button"`
	Sections []listSection `json:"sections"`
}

type listSection struct {
	Title string    `json:"title"`
	Rows  []listRow `json:"rows"`
}

type listRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type flowAction struct {
	Name       string         `json:"name"`
	Parameters flowParameters `json:"parameters"`
}

type flowParameters struct {
	FlowMessageVersion string `json:"flow_message_version"`
	FlowID             string `json:"flow_id"`
	FlowToken          string `json:"flow_token"`
	FlowCTA            string `json:"flow_cta"`
	FlowAction         string `json:"flow_action"`
}

func (c *Client) SendText(ctx context.Context, phone, body string) error {
	return c.send(ctx, &outbound{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

func (c *Client) SendMedia(ctx context.Context, phone, url, kind, caption string) error {
	msg := &outbound{MessagingProduct: "whatsapp", To: phone, Type: kind}
	link := &mediaLink{Link: url, Caption: caption}
	switch kind {
	case "image":
		msg.Image = link
	case "video":
		msg.Video = link
	case "document":
		msg.Document = link
	default:
		return fmt.Errorf("whatsapp: unsupported media kind %q", kind)
	}
	return c.send(ctx, msg)
}

func (c *Client) SendCategoryList(ctx context.Context, phone string, categories []domain.Category) error {
	rows := make([]listRow, 0, len(categories))
	for _, cat := range categories {
		if len(rows) == maxListRows {
			break
		}
		rows = append(rows, listRow{
			ID:          channel.ListRowPrefix + cat.ID.String(),
			Title:       truncate(cat.Name, maxRowTitle),
			Description: cat.Description,
		})
	}
	if len(rows) == 0 {
		return fmt.Errorf("whatsapp: no categories to list")
	}

	return c.send(ctx, &outbound{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "interactive",
		Interactive: &interactive{
			Type:   "list",
			Header: &itxHeader{Type: "text", Text: "How can we help?"},
			Body:   itxBody{Text: "Pick the service you are looking for."},
			Action: listAction{
				Button:   "View services",
				Sections: []listSection{{Title: "Services", Rows: rows}},
			},
		},
	})
}

func (c *Client) SendFlowForm(ctx context.Context, phone string, token domain.FlowToken) error {
	return c.send(ctx, &outbound{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "interactive",
		Interactive: &interactive{
			Type: "flow",
			Body: itxBody{Text: "Share a few details so we can connect you with the right person."},
			Action: flowAction{
				Name: "flow",
				Parameters: flowParameters{
					FlowMessageVersion: "3",
					FlowID:             c.cfg.FlowID,
					FlowToken:          token.String(),
					FlowCTA:            "Share details",
					FlowAction:         "navigate",
				},
			},
		},
	})
}

func (c *Client) send(ctx context.Context, msg *outbound) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("whatsapp: encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.BaseURL, c.cfg.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send to %s: %w", msg.To, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp: send to %s: status %d: %s", msg.To, resp.StatusCode, body)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
