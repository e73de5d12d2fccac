// Package translate drives the two translation backends: a stateless
// quality-optimized MT client (DeepL) and a persistent realtime LLM client
// (OpenAI). Partial translations always use the realtime backend; confirmed
// translations use DeepL in quality mode and the realtime backend in speed
// mode.
package translate

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lingostream/livecap/internal/tone"
)

// Mode selects the backend used for confirmed translations.
type Mode string

const (
	ModeQuality Mode = "quality"
	ModeSpeed   Mode = "speed"
)

// Pair is the most recently sealed source sentence and its translation,
// supplied as one-shot context to keep pronouns and terminology coherent.
type Pair struct {
	Source      string
	Translation string
}

// Request is one translation call.
type Request struct {
	Text       string
	PrevPair   Pair
	Tone       tone.Label
	TargetLang string
	// Summary is the rolling topic summary; filled in by the Service.
	Summary string
}

// Backend issues a single translation request.
type Backend interface {
	Translate(ctx context.Context, req Request) (string, error)
	Close() error
}

// callTimeout is the soft deadline for any single translation call.
const callTimeout = 5 * time.Second

// FatalError marks auth and quota failures that no retry can fix. The
// session surfaces these once to the client and keeps shipping transcripts.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Service routes confirmed and partial translations to the configured
// backends, applies the per-call deadline and the confirmed retry, and keeps
// the rolling topic summary fresh.
type Service struct {
	confirmed  Backend
	partial    Backend
	summarizer *Summarizer
	logger     *log.Logger
}

// NewService wires the backends for a session. quality may be nil when the
// session runs in speed mode.
func NewService(mode Mode, quality, speed Backend, summarizer *Summarizer, logger *log.Logger) *Service {
	confirmed := speed
	if mode == ModeQuality && quality != nil {
		confirmed = quality
	}
	return &Service{
		confirmed:  confirmed,
		partial:    speed,
		summarizer: summarizer,
		logger:     logger,
	}
}

// TranslateConfirmed translates a sealed sentence. Transient failures are
// retried once; the caller decides what to surface if both attempts fail.
func (s *Service) TranslateConfirmed(ctx context.Context, req Request) (string, error) {
	text, err := s.call(ctx, s.confirmed, req)
	if err != nil && ctx.Err() == nil && !IsFatal(err) {
		s.logger.Warn("confirmed translation failed, retrying", "error", err)
		text, err = s.call(ctx, s.confirmed, req)
	}
	if err != nil {
		return "", err
	}
	if s.summarizer != nil {
		s.summarizer.Record(req.Text)
	}
	return text, nil
}

// TranslatePartial translates the rolling unsealed text. Failures are the
// caller's to drop.
func (s *Service) TranslatePartial(ctx context.Context, req Request) (string, error) {
	return s.call(ctx, s.partial, req)
}

func (s *Service) call(ctx context.Context, b Backend, req Request) (string, error) {
	if s.summarizer != nil {
		req.Summary = s.summarizer.Summary()
	}
	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	return b.Translate(cctx, req)
}

// Close tears down both backends.
func (s *Service) Close() error {
	var err error
	if s.confirmed != nil {
		err = s.confirmed.Close()
	}
	if s.partial != nil && s.partial != s.confirmed {
		if perr := s.partial.Close(); err == nil {
			err = perr
		}
	}
	return err
}
