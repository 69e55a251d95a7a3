package telegram

import (
	"context"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// WebhookHandler acknowledges an update right away and processes it in the
// background so Telegram does not redeliver while the model is thinking.
func (r *Router) WebhookHandler(parse func(*http.Request) (*tgbotapi.Update, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		upd, err := parse(req)
		if err != nil {
			r.log().Warn("bad webhook update", slog.String("error", err.Error()))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)

		ctx := context.WithoutCancel(req.Context())
		r.inflight.Add(1)
		go func() {
			defer r.inflight.Done()
			r.HandleUpdate(ctx, *upd)
		}()
	})
}

// Wait blocks until every update accepted by the webhook has been handled,
// or until ctx is done.
func (r *Router) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WebhookPath derives a stable secret path from the bot token.
func WebhookPath(token string) string {
	return "/telegram/" + shortHash(token)
}

func shortHash(s string) string {
	h := uint64(1469598103934665603)
	const prime = 1099511628211
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		out[i] = hexdigits[h&0xF]
		h >>= 4
	}
	return string(out)
}
