package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"img2tex/api/internal/ocr"
	"img2tex/api/internal/ocr/types"
)

var _ = Describe("Engine", func() {
	It("refuses to run without an API key", func() {
		_, err := New("  ").Extract(context.Background(), types.ExtractRequest{Image: "aGk="})
		Expect(err).To(MatchError(ContainSubstring("GEMINI_API_KEY")))
	})

	It("rejects images that are not base64", func() {
		_, err := New("k").Extract(context.Background(), types.ExtractRequest{Image: "https://example.com/a.png"})
		Expect(err).To(MatchError(ContainSubstring("bad base64")))
	})

	It("reports its name", func() {
		Expect(New("k").Name()).To(Equal("gemini"))
	})
})

var _ = Describe("mapError", func() {
	DescribeTable("gRPC status codes",
		func(c codes.Code, wantStatus int) {
			err := mapError(status.Error(c, "upstream said no"))
			var ue *ocr.UpstreamError
			Expect(errors.As(err, &ue)).To(BeTrue())
			Expect(ue.StatusCode).To(Equal(wantStatus))
			Expect(ue.Status).To(Equal(http.StatusText(wantStatus)))
			Expect(ue.Message).To(Equal("upstream said no"))
			Expect(ue.Provider).To(Equal("gemini"))
		},
		Entry("quota", codes.ResourceExhausted, http.StatusTooManyRequests),
		Entry("bad request", codes.InvalidArgument, http.StatusBadRequest),
		Entry("auth", codes.Unauthenticated, http.StatusUnauthorized),
		Entry("forbidden", codes.PermissionDenied, http.StatusForbidden),
		Entry("unknown model", codes.NotFound, http.StatusNotFound),
		Entry("unavailable", codes.Unavailable, http.StatusServiceUnavailable),
		Entry("internal", codes.Internal, http.StatusBadGateway),
	)

	It("keeps the HTTP code of REST errors", func() {
		err := mapError(&googleapi.Error{Code: http.StatusTooManyRequests, Message: "slow down"})
		var ue *ocr.UpstreamError
		Expect(errors.As(err, &ue)).To(BeTrue())
		Expect(ue.StatusCode).To(Equal(http.StatusTooManyRequests))
		Expect(ue.RateLimited()).To(BeTrue())
		Expect(ue.Message).To(Equal("slow down"))
	})

	It("treats deadlines as timeouts", func() {
		for _, in := range []error{
			fmt.Errorf("call: %w", context.DeadlineExceeded),
			status.Error(codes.DeadlineExceeded, "too slow"),
		} {
			var te *ocr.TransportError
			Expect(errors.As(mapError(in), &te)).To(BeTrue())
			Expect(te.Timeout).To(BeTrue())
		}
	})

	It("wraps everything else", func() {
		base := errors.New("dial tcp: refused")
		err := mapError(base)
		Expect(errors.Is(err, base)).To(BeTrue())
		var ue *ocr.UpstreamError
		Expect(errors.As(err, &ue)).To(BeFalse())
	})
})

var _ = Describe("firstText", func() {
	It("returns the first text part", func() {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{
				&genai.Blob{MIMEType: "image/png"},
				genai.Text(`\frac{a}{b}`),
			}}},
		}}
		Expect(firstText(resp)).To(Equal(`\frac{a}{b}`))
	})

	It("is empty for empty responses", func() {
		Expect(firstText(nil)).To(BeEmpty())
		Expect(firstText(&genai.GenerateContentResponse{})).To(BeEmpty())
	})
})
