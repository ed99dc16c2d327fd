package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *TelegramClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewTelegramClient("test-token")
	c.baseURL = server.URL
	return c
}

func TestSendMessage(t *testing.T) {
	var gotPath, gotChatID, gotText string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = r.ParseForm()
		gotChatID = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
		w.Write([]byte(`{"ok":true,"result":{}}`))
	})

	if err := c.SendMessage(context.Background(), 12345, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotChatID != "12345" || gotText != "hello" {
		t.Errorf("form = chat_id %q text %q", gotChatID, gotText)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
	})

	err := c.SendMessage(context.Background(), 12345, "hello")
	if err == nil {
		t.Fatal("expected error for blocked bot")
	}
	if !strings.Contains(err.Error(), "bot was blocked") {
		t.Errorf("error should carry the API description, got %v", err)
	}
}

func TestProbeChat(t *testing.T) {
	var gotPath string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"ok":true,"result":{"id":12345,"type":"private"}}`))
	})

	if err := c.ProbeChat(context.Background(), 12345); err != nil {
		t.Fatalf("ProbeChat: %v", err)
	}
	if gotPath != "/bottest-token/getChat" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestEmptyTokenFailsFast(t *testing.T) {
	c := NewTelegramClient("")
	if err := c.SendMessage(context.Background(), 1, "x"); err == nil {
		t.Fatal("expected misconfiguration error")
	}
}
