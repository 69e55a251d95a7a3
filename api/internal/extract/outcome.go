package extract

import (
	"errors"
	"net/http"

	"img2tex/api/internal/ocr"
)

type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeEmpty       Outcome = "empty"
	OutcomeNoImage     Outcome = "no_image"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeUpstream    Outcome = "upstream_error"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeInternal    Outcome = "internal_error"
)

// Classify maps an extraction error to its outcome and the HTTP status the
// caller should see. A nil error is OutcomeOK with 200.
func Classify(err error) (Outcome, int) {
	if err == nil {
		return OutcomeOK, http.StatusOK
	}
	if errors.Is(err, ErrNoImage) {
		return OutcomeNoImage, http.StatusBadRequest
	}

	var ue *ocr.UpstreamError
	if errors.As(err, &ue) {
		if ue.RateLimited() {
			return OutcomeRateLimited, http.StatusTooManyRequests
		}
		if ue.StatusCode < 400 || ue.StatusCode > 599 {
			return OutcomeUpstream, http.StatusBadGateway
		}
		return OutcomeUpstream, ue.StatusCode
	}

	var te *ocr.TransportError
	if errors.As(err, &te) && te.Timeout {
		return OutcomeTimeout, http.StatusGatewayTimeout
	}
	return OutcomeInternal, http.StatusInternalServerError
}
