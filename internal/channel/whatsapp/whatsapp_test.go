package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/leadworks/leadgate/internal/channel"
	"github.com/leadworks/leadgate/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *[]map[string]any) {
	t.Helper()
	var requests []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Authorization = %q", got)
		}
		if !strings.HasSuffix(r.URL.Path, "/pnid-1/messages") {
			t.Errorf("path = %q, want .../pnid-1/messages", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		if err := json.Unmarshal(body, &m); err != nil {
			t.Errorf("request body not json: %v", err)
		}
		requests = append(requests, m)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c := New(Config{
		BaseURL:       srv.URL,
		PhoneNumberID: "pnid-1",
		AccessToken:   "token-123",
		FlowID:        "flow-9",
	})
	return c, &requests
}

func TestSendText(t *testing.T) {
	c, reqs := newTestClient(t)
	if err := c.SendText(context.Background(), "+919876543210", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	got := (*reqs)[0]
	if got["type"] != "text" || got["to"] != "+919876543210" {
		t.Errorf("payload = %v", got)
	}
	text := got["text"].(map[string]any)
	if text["body"] != "hello" {
		t.Errorf("text body = %v", text["body"])
	}
}

func TestSendCategoryList_RowIDsCarryPrefix(t *testing.T) {
	c, reqs := newTestClient(t)
	cats := []domain.Category{
		{ID: uuid.New(), Name: "Plumbing", Description: "Pipes and taps"},
		{ID: uuid.New(), Name: "A very long category name that exceeds the cap"},
	}
	if err := c.SendCategoryList(context.Background(), "+919876543210", cats); err != nil {
		t.Fatalf("SendCategoryList: %v", err)
	}

	got := (*reqs)[0]
	itx := got["interactive"].(map[string]any)
	if itx["type"] != "list" {
		t.Fatalf("interactive type = %v", itx["type"])
	}
	action := itx["action"].(map[string]any)
	sections := action["sections"].([]any)
	rows := sections[0].(map[string]any)["rows"].([]any)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	first := rows[0].(map[string]any)
	wantID := channel.ListRowPrefix + cats[0].ID.String()
	if first["id"] != wantID {
		t.Errorf("row id = %v, want %v", first["id"], wantID)
	}
	second := rows[1].(map[string]any)
	if title := second["title"].(string); len(title) > maxRowTitle {
		t.Errorf("row title not truncated: %q", title)
	}
}

func TestSendCategoryList_CapsAtTenRows(t *testing.T) {
	c, reqs := newTestClient(t)
	cats := make([]domain.Category, 14)
	for i := range cats {
		cats[i] = domain.Category{ID: uuid.New(), Name: "Cat"}
	}
	if err := c.SendCategoryList(context.Background(), "+919876543210", cats); err != nil {
		t.Fatalf("SendCategoryList: %v", err)
	}
	itx := (*reqs)[0]["interactive"].(map[string]any)
	action := itx["action"].(map[string]any)
	rows := action["sections"].([]any)[0].(map[string]any)["rows"].([]any)
	if len(rows) != maxListRows {
		t.Errorf("rows = %d, want %d", len(rows), maxListRows)
	}
}

func TestSendFlowForm_TokenRoundTrips(t *testing.T) {
	c, reqs := newTestClient(t)
	token := domain.FlowToken{LeadID: uuid.New(), CategoryID: uuid.New()}
	if err := c.SendFlowForm(context.Background(), "+919876543210", token); err != nil {
		t.Fatalf("SendFlowForm: %v", err)
	}

	itx := (*reqs)[0]["interactive"].(map[string]any)
	if itx["type"] != "flow" {
		t.Fatalf("interactive type = %v", itx["type"])
	}
	params := itx["action"].(map[string]any)["parameters"].(map[string]any)
	if params["flow_token"] != token.String() {
		t.Errorf("flow_token = %v, want %v", params["flow_token"], token.String())
	}
	if params["flow_id"] != "flow-9" {
		t.Errorf("flow_id = %v", params["flow_id"])
	}
}

func TestSendMedia_UnsupportedKind(t *testing.T) {
	c, _ := newTestClient(t)
	if err := c.SendMedia(context.Background(), "+919876543210", "https://x/y.gif", "sticker", ""); err == nil {
		t.Fatal("expected error for unsupported kind")
	}
}

func TestSend_ErrorStatusSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, PhoneNumberID: "pnid-1", AccessToken: "nope"})
	err := c.SendText(context.Background(), "+919876543210", "hello")
	if err == nil || !strings.Contains(err.Error(), "status 401") {
		t.Fatalf("err = %v, want status 401", err)
	}
}
