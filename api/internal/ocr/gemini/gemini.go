package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"img2tex/api/internal/ocr"
	"img2tex/api/internal/ocr/types"
	"img2tex/api/internal/util"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const providerName = "gemini"

type Engine struct {
	APIKey string
	opts   []option.ClientOption
}

// New builds an engine talking to the Generative Language API. Extra client
// options are appended after the API key.
func New(apiKey string, opts ...option.ClientOption) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		opts:   opts,
	}
}

func (e *Engine) Name() string { return providerName }

func (e *Engine) Extract(ctx context.Context, in types.ExtractRequest) (types.ExtractResponse, error) {
	if e.APIKey == "" {
		return types.ExtractResponse{}, errors.New("GEMINI_API_KEY is empty")
	}

	imgBytes, mimeFromDataURL, err := util.DecodeBase64MaybeDataURL(in.Image)
	if err != nil {
		return types.ExtractResponse{}, fmt.Errorf("gemini extract: bad base64: %w", err)
	}
	finalMIME := util.PickMIME("", mimeFromDataURL, imgBytes)

	opts := append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return types.ExtractResponse{}, err
	}
	defer cl.Close()

	m := cl.GenerativeModel(strings.TrimSpace(in.Model))
	if m == nil {
		return types.ExtractResponse{}, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(float32(in.Temperature)),
	}
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(in.SystemPrompt)},
	}

	resp, err := m.GenerateContent(ctx, &genai.Blob{MIMEType: finalMIME, Data: imgBytes})
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return types.ExtractResponse{Empty: true}, nil
		}
		return types.ExtractResponse{}, mapError(err)
	}

	txt := firstText(resp)
	if txt == "" {
		return types.ExtractResponse{Empty: true}, nil
	}
	return types.ExtractResponse{Text: txt}, nil
}

// mapError converts client errors into the provider-neutral error types so
// the handler can answer with the upstream status.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ocr.TransportError{Provider: providerName, Timeout: true, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &ocr.TransportError{Provider: providerName, Err: err}
	}

	ae, ok := apierror.FromError(err)
	if !ok {
		return fmt.Errorf("gemini: %w", err)
	}

	code := ae.HTTPCode()
	var msg string
	var herr *googleapi.Error
	if errors.As(err, &herr) {
		msg = herr.Message
	}
	if st := ae.GRPCStatus(); st != nil {
		if st.Code() == codes.DeadlineExceeded {
			return &ocr.TransportError{Provider: providerName, Timeout: true, Err: err}
		}
		if code <= 0 {
			code = httpCodeFromGRPC(st.Code())
		}
		if msg == "" {
			msg = st.Message()
		}
	}
	if code <= 0 {
		if st, ok := status.FromError(err); ok {
			code = httpCodeFromGRPC(st.Code())
		} else {
			code = http.StatusBadGateway
		}
	}

	return &ocr.UpstreamError{
		Provider:   providerName,
		StatusCode: code,
		Status:     http.StatusText(code),
		Message:    msg,
	}
}

func httpCodeFromGRPC(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusBadGateway
	}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
