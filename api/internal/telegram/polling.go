package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type UpdateSource interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") {
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

// RunPolling long-polls until ctx is done, backing off on errors.
func RunPolling(ctx context.Context, src UpdateSource, log *slog.Logger, handle func(tgbotapi.Update)) {
	offset := 0
	baseDelay := 1 * time.Second
	maxDelay := 15 * time.Second

	for {
		select {
		case <-ctx.Done():
			log.Info("polling stopped")
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		updates, err := src.GetUpdates(u)
		if err != nil {
			d := min(max(retryDelayFromError(err), baseDelay), maxDelay)
			log.Warn("polling error", slog.String("error", err.Error()), slog.Duration("retry_in", d))
			if !sleep(ctx, d) {
				return
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 && !sleep(ctx, 200*time.Millisecond) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
