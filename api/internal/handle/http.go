package handle

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

func (h *Handle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("panic in handler", slog.String("panic", fmt.Sprint(rec)), slog.String("path", r.URL.Path))
			writeResponse(w, result(http.StatusInternalServerError, InternalMessage))
		}
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Error("read request body", slog.String("error", err.Error()))
		writeResponse(w, result(http.StatusInternalServerError, InternalMessage))
		return
	}

	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}
	writeResponse(w, h.Process(r.Context(), Event{
		Method:  r.Method,
		Headers: headers,
		Body:    string(body),
	}))
}

// StatusHandler answers every request with code and the CORS headers.
func StatusHandler(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, result(code, "Error: "+http.StatusText(code)+"."))
	}
}

func writeResponse(w http.ResponseWriter, resp Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
