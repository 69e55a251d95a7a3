package extract_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"img2tex/api/internal/extract"
	"img2tex/api/internal/ocr"
	"img2tex/api/internal/ocr/types"
	"img2tex/api/internal/prompt"
)

type fakeEngine struct {
	got  []types.ExtractRequest
	resp types.ExtractResponse
	err  error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Extract(_ context.Context, in types.ExtractRequest) (types.ExtractResponse, error) {
	f.got = append(f.got, in)
	return f.resp, f.err
}

type deadlineEngine struct {
	hadDeadline bool
	left        time.Duration
}

func (d *deadlineEngine) Name() string { return "deadline" }

func (d *deadlineEngine) Extract(ctx context.Context, _ types.ExtractRequest) (types.ExtractResponse, error) {
	dl, ok := ctx.Deadline()
	d.hadDeadline = ok
	d.left = time.Until(dl)
	return types.ExtractResponse{Text: "x"}, nil
}

type memRecorder struct {
	mu       sync.Mutex
	attempts []extract.Attempt
	err      error
}

func (m *memRecorder) Record(_ context.Context, a extract.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return m.err
}

type countingObserver struct{ outcomes []extract.Outcome }

func (c *countingObserver) Observe(a extract.Attempt) { c.outcomes = append(c.outcomes, a.Outcome) }

var profile = prompt.Profile{
	Name:          "default",
	SystemPrompt:  "convert to LaTeX",
	Temperature:   0.01,
	GuestModel:    "guest/model",
	StandardModel: "standard/model",
}

var _ = Describe("Service", func() {
	var (
		engine   *fakeEngine
		recorder *memRecorder
		observer *countingObserver
		svc      *extract.Service
	)

	BeforeEach(func() {
		engine = &fakeEngine{resp: types.ExtractResponse{Text: `\[ x \]`}}
		recorder = &memRecorder{}
		observer = &countingObserver{}
		svc = extract.New(extract.Options{
			Profile:         profile,
			Engine:          engine,
			GuestCredential: "guest-key",
			Surface:         "lambda",
			Recorder:        recorder,
			Observer:        observer,
		})
	})

	Describe("SelectModel", func() {
		DescribeTable("tiers",
			func(credential, wantModel string, wantTier extract.Tier) {
				model, tier := svc.SelectModel(credential)
				Expect(model).To(Equal(wantModel))
				Expect(tier).To(Equal(wantTier))
			},
			Entry("guest key", "guest-key", "guest/model", extract.TierGuest),
			Entry("guest key with spaces", "  guest-key\t", "guest/model", extract.TierGuest),
			Entry("other key", "paid-key", "standard/model", extract.TierStandard),
			Entry("no key", "", "standard/model", extract.TierStandard),
			Entry("case differs", "GUEST-KEY", "standard/model", extract.TierStandard),
		)

		It("never matches when no guest credential is configured", func() {
			s := extract.New(extract.Options{Profile: profile, Engine: engine})
			model, tier := s.SelectModel("")
			Expect(model).To(Equal("standard/model"))
			Expect(tier).To(Equal(extract.TierStandard))
		})
	})

	It("passes the profile and image through to the engine", func() {
		res, err := svc.Extract(context.Background(), "guest-key", "data:image/png;base64,AAAA")
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(extract.Result{Text: `\[ x \]`, Model: "guest/model", Tier: extract.TierGuest}))

		Expect(engine.got).To(HaveLen(1))
		Expect(engine.got[0]).To(Equal(types.ExtractRequest{
			Model:        "guest/model",
			Image:        "data:image/png;base64,AAAA",
			SystemPrompt: "convert to LaTeX",
			Temperature:  0.01,
		}))
	})

	It("records successful attempts with a digest, never the image", func() {
		_, err := svc.Extract(context.Background(), "k", "abc")
		Expect(err).NotTo(HaveOccurred())

		Expect(recorder.attempts).To(HaveLen(1))
		a := recorder.attempts[0]
		Expect(a.Surface).To(Equal("lambda"))
		Expect(a.Provider).To(Equal("fake"))
		Expect(a.Outcome).To(Equal(extract.OutcomeOK))
		Expect(a.Status).To(Equal(http.StatusOK))
		Expect(a.ImageBytes).To(Equal(3))
		Expect(a.ImageSHA256).To(Equal("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"))
		Expect(observer.outcomes).To(Equal([]extract.Outcome{extract.OutcomeOK}))
	})

	It("rejects an empty image without calling the engine", func() {
		_, err := svc.Extract(context.Background(), "k", "")
		Expect(err).To(MatchError(extract.ErrNoImage))
		Expect(engine.got).To(BeEmpty())
		Expect(recorder.attempts[0].Outcome).To(Equal(extract.OutcomeNoImage))
		Expect(recorder.attempts[0].Status).To(Equal(http.StatusBadRequest))
	})

	It("flags empty answers", func() {
		engine.resp = types.ExtractResponse{Empty: true}
		res, err := svc.Extract(context.Background(), "k", "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Empty).To(BeTrue())
		Expect(observer.outcomes).To(Equal([]extract.Outcome{extract.OutcomeEmpty}))
	})

	It("returns engine errors unchanged", func() {
		upstream := &ocr.UpstreamError{Provider: "fake", StatusCode: 429, Status: "Too Many Requests"}
		engine.err = upstream
		_, err := svc.Extract(context.Background(), "k", "abc")
		Expect(err).To(BeIdenticalTo(upstream))
		Expect(recorder.attempts[0].Outcome).To(Equal(extract.OutcomeRateLimited))
	})

	It("does not surface audit failures", func() {
		recorder.err = errors.New("db down")
		_, err := svc.Extract(context.Background(), "k", "abc")
		Expect(err).NotTo(HaveOccurred())
	})

	It("records even when the caller's context is already cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _ = svc.Extract(ctx, "k", "abc")
		Expect(recorder.attempts).To(HaveLen(1))
	})

	It("bounds the engine call with the configured timeout", func() {
		timed := &deadlineEngine{}
		s := extract.New(extract.Options{Profile: profile, Engine: timed, Timeout: 5 * time.Second})
		_, err := s.Extract(context.Background(), "k", "abc")
		Expect(err).NotTo(HaveOccurred())
		Expect(timed.hadDeadline).To(BeTrue())
		Expect(timed.left).To(BeNumerically("<=", 5*time.Second))
	})

	It("fails without an engine", func() {
		s := extract.New(extract.Options{Profile: profile})
		_, err := s.Extract(context.Background(), "k", "abc")
		Expect(err).To(HaveOccurred())
		outcome, status := extract.Classify(err)
		Expect(outcome).To(Equal(extract.OutcomeInternal))
		Expect(status).To(Equal(http.StatusInternalServerError))
	})
})

var _ = Describe("Classify", func() {
	DescribeTable("errors",
		func(err error, wantOutcome extract.Outcome, wantStatus int) {
			outcome, status := extract.Classify(err)
			Expect(outcome).To(Equal(wantOutcome))
			Expect(status).To(Equal(wantStatus))
		},
		Entry("nil", nil, extract.OutcomeOK, 200),
		Entry("no image", fmt.Errorf("handler: %w", extract.ErrNoImage), extract.OutcomeNoImage, 400),
		Entry("rate limit", &ocr.UpstreamError{StatusCode: 429}, extract.OutcomeRateLimited, 429),
		Entry("payment", &ocr.UpstreamError{StatusCode: 402}, extract.OutcomeUpstream, 402),
		Entry("bad gateway", &ocr.UpstreamError{StatusCode: 502}, extract.OutcomeUpstream, 502),
		Entry("odd 3xx", &ocr.UpstreamError{StatusCode: 302}, extract.OutcomeUpstream, 502),
		Entry("timeout", &ocr.TransportError{Timeout: true, Err: context.DeadlineExceeded}, extract.OutcomeTimeout, 504),
		Entry("transport", &ocr.TransportError{Err: errors.New("reset")}, extract.OutcomeInternal, 500),
		Entry("other", errors.New("boom"), extract.OutcomeInternal, 500),
	)
})
