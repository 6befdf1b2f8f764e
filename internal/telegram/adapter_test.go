package telegram

import (
	"strings"
	"testing"

	"github.com/user/voxchat/internal/types"
)

func TestSplitMessage(t *testing.T) {
	short := "Hello world"
	parts := splitMessage(short)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != short {
		t.Errorf("expected %q, got %q", short, parts[0])
	}
}

func TestSplitMessageLong(t *testing.T) {
	long := strings.Repeat("a", 5000)
	parts := splitMessage(long)
	if len(parts) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(parts))
	}
	if len(parts[0]) != maxTelegramMessage {
		t.Errorf("expected first part length %d, got %d", maxTelegramMessage, len(parts[0]))
	}
}

func TestChatSessionMapping(t *testing.T) {
	a := &Adapter{byChat: make(map[int64]types.SessionID)}

	if got := a.sessionFor(42); got != "" {
		t.Fatalf("expected no session for new chat, got %q", got)
	}

	a.remember(42, "sess-1")
	if got := a.sessionFor(42); got != "sess-1" {
		t.Errorf("expected sess-1, got %q", got)
	}
	if got := a.sessionFor(43); got != "" {
		t.Errorf("expected no session for other chat, got %q", got)
	}
}
