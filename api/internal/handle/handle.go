package handle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"img2tex/api/internal/extract"
	"img2tex/api/internal/logger"
	"img2tex/api/internal/ocr"
)

const (
	HeaderAPIKey = "x-api-key"

	NoImageMessage    = "No image provided"
	NoContentMessage  = "Error: AI returned no content."
	RateLimitMessage  = "Error: OpenRouter rate limit exceeded."
	TimeoutMessage    = "Error: Upstream request timed out."
	InternalMessage   = "Error: Internal server error."
	preflightResponse = "CORS OK"
)

// corsHeaders go out on every response, errors included.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type, x-api-key",
	"Access-Control-Allow-Methods": "OPTIONS,POST",
	"Content-Type":                 "application/json",
}

// Event is the transport-neutral inbound request.
type Event struct {
	Method  string
	Headers map[string]string
	Body    string
}

type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

type resultBody struct {
	Result string `json:"result"`
}

type Handle struct {
	svc *extract.Service
	log *slog.Logger
}

func New(svc *extract.Service, log *slog.Logger) *Handle {
	if log == nil {
		log = logger.Discard()
	}
	return &Handle{svc: svc, log: log}
}

// Process answers one event. It never returns an error: every failure is
// mapped to a status code and a {"result": ...} body.
func (h *Handle) Process(ctx context.Context, ev Event) Response {
	if strings.EqualFold(ev.Method, http.MethodOptions) {
		b, _ := json.Marshal(preflightResponse)
		return respond(http.StatusOK, string(b))
	}

	image, err := parseImage(ev.Body)
	if err != nil {
		h.log.Error("bad request body", slog.String("error", err.Error()))
		return result(http.StatusInternalServerError, InternalMessage)
	}

	res, err := h.svc.Extract(ctx, lookupHeader(ev.Headers, HeaderAPIKey), image)
	if err != nil {
		return h.mapError(err)
	}
	if res.Empty {
		return result(http.StatusOK, NoContentMessage)
	}
	return result(http.StatusOK, res.Text)
}

func (h *Handle) mapError(err error) Response {
	outcome, status := extract.Classify(err)
	switch outcome {
	case extract.OutcomeNoImage:
		return result(status, NoImageMessage)
	case extract.OutcomeRateLimited:
		return result(status, RateLimitMessage)
	case extract.OutcomeTimeout:
		return result(status, TimeoutMessage)
	case extract.OutcomeUpstream:
		return result(status, upstreamMessage(err))
	default:
		return result(http.StatusInternalServerError, InternalMessage)
	}
}

// parseImage returns "" when image is missing, empty or not a string. Only a
// body that is not JSON at all is an error. A blank body counts as {}.
func parseImage(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", nil
	}
	var in map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		return "", err
	}
	raw, ok := in["image"]
	if !ok {
		return "", nil
	}
	var image string
	if err := json.Unmarshal(raw, &image); err != nil {
		return "", nil
	}
	return image, nil
}

func lookupHeader(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// result encodes {"result": text} without HTML escaping.
func result(status int, text string) Response {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resultBody{Result: text}); err != nil {
		return respond(status, `{"result":"`+InternalMessage+`"}`)
	}
	return respond(status, strings.TrimSuffix(buf.String(), "\n"))
}

func respond(status int, body string) Response {
	headers := make(map[string]string, len(corsHeaders))
	for k, v := range corsHeaders {
		headers[k] = v
	}
	return Response{StatusCode: status, Headers: headers, Body: body}
}

func upstreamMessage(err error) string {
	var ue *ocr.UpstreamError
	if !errors.As(err, &ue) {
		return InternalMessage
	}
	msg := "Error: " + ue.ReasonPhrase()
	if m := strings.TrimSpace(ue.Message); m != "" {
		msg += ": " + m
	}
	return msg
}
