package handle

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// HandleAPIGateway is the Lambda entry point for API Gateway proxy events.
func (h *Handle) HandleAPIGateway(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := req.Body
	if req.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			h.log.Error("bad base64 body from gateway", slog.String("error", err.Error()))
			resp := result(http.StatusInternalServerError, InternalMessage)
			return events.APIGatewayProxyResponse{StatusCode: resp.StatusCode, Headers: resp.Headers, Body: resp.Body}, nil
		}
		body = string(b)
	}

	resp := h.Process(ctx, Event{
		Method:  req.HTTPMethod,
		Headers: flattenHeaders(req.Headers, req.MultiValueHeaders),
		Body:    body,
	})
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}, nil
}

func flattenHeaders(single map[string]string, multi map[string][]string) map[string]string {
	out := make(map[string]string, len(single)+len(multi))
	for k, vs := range multi {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	for k, v := range single {
		out[k] = v
	}
	return out
}
