package bot

import (
	"context"
	"net/http"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestParseNumberOrSkip(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{btnSkip, 0, true},
		{"Пропустити", 0, true},
		{"2015", 2015, true},
		{"0", 0, true},
		{"не число", 0, false},
		{"-5", 0, false},
	}
	for _, c := range cases {
		got, ok := parseNumberOrSkip(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("parseNumberOrSkip(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestCallbackParsing(t *testing.T) {
	if got := parseID("brand:79"); got != 79 {
		t.Fatalf("parseID = %d, want 79", got)
	}
	if got := parseID("model:0"); got != 0 {
		t.Fatalf("parseID = %d, want 0", got)
	}
	if got := parseID("garbage"); got != 0 {
		t.Fatalf("parseID on malformed data = %d, want 0", got)
	}
	if got := parsePage("brand_page:3"); got != 3 {
		t.Fatalf("parsePage = %d, want 3", got)
	}
}

// Telegram sends callback queries without a source message when the
// message is older than 48h or the button came from an inline result.
// Such a tap must be answered and ignored, never crash the process.
func TestHandleCallback_NoSourceMessage(t *testing.T) {
	api := &tgbotapi.BotAPI{Client: &http.Client{Timeout: time.Second}}
	b := New(api, nil, nil)
	b.sessions.put(1, &session{step: stepBrand})

	cb := &tgbotapi.CallbackQuery{
		ID:   "stale",
		From: &tgbotapi.User{ID: 1},
		Data: "brand:79",
	}
	b.handleCallback(context.Background(), cb)
}

func TestSessionStore(t *testing.T) {
	store := newSessionStore()
	if store.get(10) != nil {
		t.Fatal("expected no session for a new user")
	}

	sess := &session{step: stepBrand}
	store.put(10, sess)
	if got := store.get(10); got != sess {
		t.Fatal("expected the stored session back")
	}

	store.clear(10)
	if store.get(10) != nil {
		t.Fatal("expected the session gone after clear")
	}
}
