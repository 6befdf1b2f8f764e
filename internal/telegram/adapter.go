package telegram

import (
	"context"
	"fmt"
	"log"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/voxchat/internal/gateway"
	"github.com/user/voxchat/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram to the gateway. Each chat maps to one
// session; the mapping lives for the process lifetime.
type Adapter struct {
	bot       *tgbotapi.BotAPI
	gateway   *gateway.Gateway
	sessions  types.SessionStore
	artifacts types.ArtifactStore

	mu     sync.Mutex
	byChat map[int64]types.SessionID
}

// New creates a Telegram adapter.
func New(token string, gw *gateway.Gateway, sessions types.SessionStore, artifacts types.ArtifactStore) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:       bot,
		gateway:   gw,
		sessions:  sessions,
		artifacts: artifacts,
		byChat:    make(map[int64]types.SessionID),
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

// sessionFor returns the chat's session id, or empty if none yet. The
// gateway allocates a fresh session for an empty id; remember assigns it
// back to the chat so later turns reuse it.
func (a *Adapter) sessionFor(chatID int64) types.SessionID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.byChat[chatID]
}

func (a *Adapter) remember(chatID int64, id types.SessionID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byChat[chatID] = id
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// Handle commands
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	turn := &types.InboundTurn{
		Source:    "telegram",
		SessionID: a.sessionFor(chatID),
		Text:      msg.Text,
	}

	sid, err := a.gateway.HandleInbound(ctx, turn,
		gateway.WithOnComplete(func(result *types.TurnResult) {
			a.sendResponse(chatID, result.Text)
			if result.AudioID != "" {
				a.sendVoice(ctx, chatID, result.AudioID)
			}
		}),
		gateway.WithOnError(func(err error) {
			log.Printf("turn failed: %v", err)
			a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
		}),
	)
	if err != nil {
		log.Printf("handle inbound error: %v", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
		return
	}
	a.remember(chatID, sid)
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I'm Voxchat, your voice-enabled assistant. Send me a message to get started.")

	case "new":
		if sid := a.sessionFor(chatID); sid != "" {
			if err := a.sessions.Clear(ctx, sid); err != nil {
				a.sendResponse(chatID, "Error clearing the session.")
				return
			}
		}
		a.sendResponse(chatID, "Starting fresh. Previous conversation has been cleared.")

	case "status":
		sid := a.sessionFor(chatID)
		if sid == "" {
			a.sendResponse(chatID, "No active session yet. Send a message to start one.")
			return
		}
		turns, err := a.sessions.History(ctx, sid)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Session: %s\nTurns: %d", sid, len(turns)))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /new, /status")
	}
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	parts := splitMessage(text)
	for _, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.bot.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.bot.Send(msg); err != nil {
				log.Printf("send message error: %v", err)
			}
		}
	}
}

func (a *Adapter) sendVoice(ctx context.Context, chatID int64, id types.ArtifactID) {
	artifact, err := a.artifacts.Get(ctx, id)
	if err != nil {
		log.Printf("fetch audio artifact error: %v", err)
		return
	}
	voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{
		Name:  "reply.mp3",
		Bytes: artifact.Data,
	})
	if _, err := a.bot.Send(voice); err != nil {
		log.Printf("send voice error: %v", err)
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
