package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"img2tex/api/internal/extract"
	"img2tex/api/internal/logger"
	"img2tex/api/internal/util"
)

const maxReplyLen = 3900

// BotAPI is the part of *tgbotapi.BotAPI the router needs.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot     BotAPI
	Service *extract.Service
	// Credential is sent as the x-api-key equivalent and picks the tier.
	Credential string
	HTTP       *http.Client
	Log        *slog.Logger
	// Timeout bounds download plus extraction of one photo.
	Timeout time.Duration

	inflight sync.WaitGroup
}

func (r *Router) log() *slog.Logger {
	if r.Log == nil {
		return logger.Discard()
	}
	return r.Log
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, "Send a photo of a formula and I will reply with LaTeX.\nCommands: /health, /model")
	case "health":
		r.send(cid, "✅ OK")
	case "model":
		model, tier := r.Service.SelectModel(r.Credential)
		p := r.Service.Profile()
		r.send(cid, fmt.Sprintf("Provider: %s\nProfile: %s\nModel: %s (%s)",
			r.Service.Provider(), p.Name, model, tier))
	default:
		r.send(cid, "Unknown command")
	}
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		r.HandleCommand(msg)
		return
	}

	switch {
	case len(msg.Photo) > 0:
		ph := msg.Photo[len(msg.Photo)-1]
		r.acceptPhoto(ctx, msg.Chat.ID, ph.FileID, "")
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		r.acceptPhoto(ctx, msg.Chat.ID, msg.Document.FileID, msg.Document.MimeType)
	default:
		r.send(msg.Chat.ID, "Please send a photo of a formula.")
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.log().Warn("telegram send failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func (r *Router) SendResult(chatID int64, res extract.Result) {
	if res.Empty {
		r.send(chatID, "The model returned no content. Try a sharper photo.")
		return
	}
	r.send(chatID, util.Truncate(res.Text, maxReplyLen))
}

func (r *Router) SendError(chatID int64, err error) {
	outcome, _ := extract.Classify(err)
	switch outcome {
	case extract.OutcomeRateLimited:
		r.send(chatID, "Rate limit reached, try again in a minute.")
	case extract.OutcomeTimeout:
		r.send(chatID, "The model took too long to answer, try again.")
	default:
		r.send(chatID, "Could not recognise the formula, try again later.")
	}
}
