package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"img2tex/api/internal/util"
)

// Telegram bots may download files up to 20 MB.
const maxPhotoBytes = 20 << 20

func (r *Router) acceptPhoto(ctx context.Context, chatID int64, fileID, mime string) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.log().Error("telegram get file", slog.String("error", err.Error()))
		r.SendError(chatID, err)
		return
	}
	imgBytes, err := r.download(ctx, url)
	if err != nil {
		r.log().Error("telegram download", slog.String("error", err.Error()))
		r.SendError(chatID, err)
		return
	}

	dataURL := util.MakeDataURL(util.PickMIME(mime, "", imgBytes), imgBytes)
	res, err := r.Service.Extract(ctx, r.Credential, dataURL)
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	r.SendResult(chatID, res)
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	client := r.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download: %s", resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxPhotoBytes {
		return nil, fmt.Errorf("download: file larger than %d bytes", maxPhotoBytes)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("download: empty file")
	}
	return b, nil
}
