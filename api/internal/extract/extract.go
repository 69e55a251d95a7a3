package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"img2tex/api/internal/logger"
	"img2tex/api/internal/ocr"
	"img2tex/api/internal/ocr/types"
	"img2tex/api/internal/prompt"
)

var ErrNoImage = errors.New("no image provided")

type Tier string

const (
	TierGuest    Tier = "guest"
	TierStandard Tier = "standard"
)

type Result struct {
	Text  string
	Model string
	Tier  Tier
	// Empty is set when the provider answered without any content.
	Empty bool
}

// Attempt describes one finished extraction for the audit log and metrics.
type Attempt struct {
	Surface     string
	Provider    string
	Model       string
	Tier        Tier
	Outcome     Outcome
	Status      int
	Latency     time.Duration
	ImageSHA256 string
	ImageBytes  int
}

type Recorder interface {
	Record(ctx context.Context, a Attempt) error
}

type Observer interface {
	Observe(a Attempt)
}

type Options struct {
	Profile         prompt.Profile
	Engine          ocr.Engine
	GuestCredential string
	// Surface names the entry point (lambda, http, bot, cli) in audit rows.
	Surface  string
	Recorder Recorder
	Observer Observer
	Logger   *slog.Logger
	// Timeout bounds each engine call when positive.
	Timeout time.Duration
}

type Service struct {
	profile  prompt.Profile
	engine   ocr.Engine
	guest    string
	surface  string
	recorder Recorder
	observer Observer
	log      *slog.Logger
	timeout  time.Duration
}

const recordTimeout = 2 * time.Second

func New(opt Options) *Service {
	log := opt.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		profile:  opt.Profile,
		engine:   opt.Engine,
		guest:    strings.TrimSpace(opt.GuestCredential),
		surface:  opt.Surface,
		recorder: opt.Recorder,
		observer: opt.Observer,
		log:      log,
		timeout:  opt.Timeout,
	}
}

func (s *Service) Profile() prompt.Profile { return s.profile }

func (s *Service) Provider() string {
	if s.engine == nil {
		return ""
	}
	return s.engine.Name()
}

// SelectModel picks the guest model only for an exact match of the configured
// guest credential. An empty guest credential matches nothing.
func (s *Service) SelectModel(credential string) (string, Tier) {
	credential = strings.TrimSpace(credential)
	if s.guest != "" && credential == s.guest {
		return s.profile.GuestModel, TierGuest
	}
	return s.profile.StandardModel, TierStandard
}

func (s *Service) Extract(ctx context.Context, credential, image string) (Result, error) {
	start := time.Now()
	model, tier := s.SelectModel(credential)
	res := Result{Model: model, Tier: tier}

	sum := sha256.Sum256([]byte(image))
	attempt := Attempt{
		Surface:     s.surface,
		Provider:    s.Provider(),
		Model:       model,
		Tier:        tier,
		ImageSHA256: hex.EncodeToString(sum[:]),
		ImageBytes:  len(image),
	}

	if image == "" {
		attempt.ImageSHA256 = ""
		s.finish(ctx, attempt, start, ErrNoImage)
		return res, ErrNoImage
	}
	if s.engine == nil {
		err := errors.New("extract: no engine configured")
		s.finish(ctx, attempt, start, err)
		return res, err
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	out, err := s.engine.Extract(callCtx, types.ExtractRequest{
		Model:        model,
		Image:        image,
		SystemPrompt: s.profile.SystemPrompt,
		Temperature:  s.profile.Temperature,
	})
	if err != nil {
		s.finish(ctx, attempt, start, err)
		return res, err
	}

	res.Text = out.Text
	res.Empty = out.Empty
	if out.Empty {
		attempt.Outcome = OutcomeEmpty
	}
	s.finish(ctx, attempt, start, nil)
	return res, nil
}

func (s *Service) finish(ctx context.Context, a Attempt, start time.Time, err error) {
	a.Latency = time.Since(start)
	outcome, status := Classify(err)
	if a.Outcome == "" {
		a.Outcome = outcome
	}
	a.Status = status

	attrs := []any{
		slog.String("surface", a.Surface),
		slog.String("provider", a.Provider),
		slog.String("model", a.Model),
		slog.String("tier", string(a.Tier)),
		slog.String("outcome", string(a.Outcome)),
		slog.Int("status", a.Status),
		slog.Int64("latency_ms", a.Latency.Milliseconds()),
	}
	switch {
	case err == nil:
		s.log.Info("extraction finished", attrs...)
	case a.Status >= 500:
		s.log.Error("extraction failed", append(attrs, slog.String("error", err.Error()))...)
	default:
		s.log.Warn("extraction rejected", append(attrs, slog.String("error", err.Error()))...)
	}

	if s.observer != nil {
		s.observer.Observe(a)
	}
	if s.recorder != nil {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		if rerr := s.recorder.Record(rctx, a); rerr != nil {
			s.log.Warn("audit record failed", slog.String("error", rerr.Error()))
		}
	}
}
