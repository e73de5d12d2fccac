package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lingostream/livecap/internal/asr"
	"github.com/lingostream/livecap/internal/tone"
	"github.com/lingostream/livecap/internal/translate"
)

const (
	// defaultSilence is how long a speaker may be quiet before the unsealed
	// tail is auto-confirmed.
	defaultSilence = 3 * time.Second

	outboundQueueSize = 256
	resultQueueSize   = 64
)

// DefaultPartialInterval is the partial translation cadence when the client
// does not override it.
const DefaultPartialInterval = 6

// Params are the per-session knobs taken from the connection query string.
type Params struct {
	SourceLang      string
	TargetLang      string
	Aggressiveness  int // 1 = seal on first punctuation mark, 2 = second
	PartialInterval int
	Mode            translate.Mode
}

func (p Params) confirmPunctCount() int {
	if p.Aggressiveness == 2 {
		return 2
	}
	return 1
}

// Translator is the slice of translate.Service the session needs.
type Translator interface {
	TranslateConfirmed(ctx context.Context, req translate.Request) (string, error)
	TranslatePartial(ctx context.Context, req translate.Request) (string, error)
	Close() error
}

// ToneDetector classifies the speaker's register from confirmed source text.
type ToneDetector interface {
	Detect(ctx context.Context, transcript string) (tone.Label, error)
}

// SentenceSplitter proposes boundaries for long unpunctuated runs.
type SentenceSplitter interface {
	Propose(ctx context.Context, words []string) ([]int, error)
}

type resultKind int

const (
	resultConfirmed resultKind = iota
	resultPartial
	resultTone
	resultSplit
)

// result is a completed worker task, posted back to the session loop so all
// speaker mutation stays on one goroutine.
type result struct {
	kind    resultKind
	speaker string
	seq     uint64
	text    string
	label   tone.Label
	bounds  []int
	err     error
}

// Session is one client connection's pipeline: ASR events in, caption and
// translation messages out.
type Session struct {
	ID     string
	params Params

	adapter    asr.Adapter
	translator Translator
	toneDet    ToneDetector
	splitter   SentenceSplitter
	logger     *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	speakers map[string]*speakerState
	timers   map[string]*time.Timer

	results   chan result
	silenceCh chan string
	out       chan Message

	// silence is a field so tests can run in milliseconds.
	silence time.Duration

	draining  bool
	fatalSent bool
}

// NewSession wires a session. toneDet and splitter may be nil when no OpenAI
// key is configured; the pipeline then runs without register detection or
// semantic splitting.
func NewSession(parent context.Context, params Params, adapter asr.Adapter, translator Translator, toneDet ToneDetector, splitter SentenceSplitter, logger *log.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	if params.PartialInterval < 1 {
		params.PartialInterval = DefaultPartialInterval
	}
	return &Session{
		ID:         id,
		params:     params,
		adapter:    adapter,
		translator: translator,
		toneDet:    toneDet,
		splitter:   splitter,
		logger:     logger.With("session", id),
		ctx:        ctx,
		cancel:     cancel,
		speakers:   make(map[string]*speakerState),
		timers:     make(map[string]*time.Timer),
		results:    make(chan result, resultQueueSize),
		silenceCh:  make(chan string, 16),
		out:        make(chan Message, outboundQueueSize),
		silence:    defaultSilence,
	}
}

// Out is the outbound message stream. It is closed when Run returns.
func (s *Session) Out() <-chan Message { return s.out }

// Stop cancels the session. In-flight worker results are discarded.
func (s *Session) Stop() { s.cancel() }

// Run is the orchestrator loop. It owns every speakerState; workers post
// completions to the result channel. Run returns when the ASR stream ends
// and pending confirmed translations have drained, or on cancellation.
func (s *Session) Run() {
	defer func() {
		s.cancel()
		for _, t := range s.timers {
			t.Stop()
		}
		if err := s.translator.Close(); err != nil {
			s.logger.Debug("translator close", "error", err)
		}
		if err := s.adapter.Close(); err != nil {
			s.logger.Debug("adapter close", "error", err)
		}
		close(s.out)
	}()

	events := s.adapter.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				s.flushAll()
				s.draining = true
				if s.drained() {
					return
				}
				continue
			}
			s.handleEvent(ev)
			if s.draining && s.drained() {
				return
			}
		case r := <-s.results:
			s.handleResult(r)
			if s.draining && s.drained() {
				return
			}
		case id := <-s.silenceCh:
			s.handleSilence(id)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) speaker(id string) *speakerState {
	sp, ok := s.speakers[id]
	if !ok {
		sp = newSpeaker(id)
		s.speakers[id] = sp
		s.logger.Debug("new speaker", "speaker", id)
	}
	return sp
}

func (s *Session) handleEvent(ev asr.Event) {
	if ev.Kind == asr.KindEOS {
		s.flushAll()
		s.draining = true
		return
	}
	sp := s.speaker(ev.Speaker)
	acts := sp.apply(ev.Words, s.params.confirmPunctCount(), s.params.PartialInterval)
	s.runActions(sp, acts)
}

func (s *Session) runActions(sp *speakerState, acts actions) {
	if acts.activity {
		s.resetSilenceTimer(sp.id)
	}
	for _, sentence := range acts.sealed {
		s.emit(confirmedTranscript(sp.id, sentence))
		s.dispatchConfirmed(sp, sentence)
	}
	if acts.emitTranscript {
		s.emit(partialTranscript(sp.id, acts.transcript))
	}
	if acts.partialText != "" {
		s.dispatchPartial(sp, acts.partialText, acts.partialSeq)
	}
	if len(acts.splitterWords) > 0 && s.splitter != nil {
		s.dispatchSplit(sp.id, acts.splitterWords)
	}
	if acts.toneText != "" && s.toneDet != nil {
		s.dispatchTone(sp.id, acts.toneText)
	}
}

// handleSilence fires the auto-confirm for a quiet speaker.
func (s *Session) handleSilence(id string) {
	sp, ok := s.speakers[id]
	if !ok {
		return
	}
	sentence, ok := sp.sealRemaining()
	if !ok {
		return
	}
	s.logger.Debug("silence auto-confirm", "speaker", id, "words", sentence)
	s.emit(confirmedTranscript(id, sentence))
	s.emit(partialTranscript(id, ""))
	s.dispatchConfirmed(sp, sentence)
	if text := sp.toneTextIfReady(); text != "" && s.toneDet != nil {
		s.dispatchTone(id, text)
	}
}

// flushAll seals every speaker's tail on end-of-stream.
func (s *Session) flushAll() {
	for id, sp := range s.speakers {
		if sentence, ok := sp.sealRemaining(); ok {
			s.emit(confirmedTranscript(id, sentence))
			s.dispatchConfirmed(sp, sentence)
		}
	}
}

// drained reports whether every confirmed translation has been delivered.
func (s *Session) drained() bool {
	for _, sp := range s.speakers {
		if sp.confirmedInFlight > 0 || len(sp.confirmReady) > 0 {
			return false
		}
	}
	return true
}

func (s *Session) handleResult(r result) {
	sp, ok := s.speakers[r.speaker]
	if !ok {
		return
	}
	switch r.kind {
	case resultConfirmed:
		if r.err != nil {
			s.logger.Warn("confirmed translation failed", "speaker", r.speaker, "error", r.err)
			if translate.IsFatal(r.err) && !s.fatalSent {
				s.fatalSent = true
				s.emit(ErrorMessage(ErrKindTranslationFatal, r.err.Error()))
			}
		}
		for _, m := range sp.completeConfirmed(r.seq, r.text, r.err != nil) {
			s.emit(m)
		}
	case resultPartial:
		if r.err != nil {
			s.logger.Debug("partial translation dropped", "speaker", r.speaker, "error", r.err)
			return
		}
		if sp.acceptPartial(r.seq) {
			s.emit(partialTranslation(r.speaker, r.text))
		}
	case resultTone:
		unclear := errors.Is(r.err, tone.ErrUnclear)
		if r.err != nil && !unclear {
			s.logger.Warn("tone detection failed", "speaker", r.speaker, "error", r.err)
		}
		sp.toneResult(r.label, unclear, r.err != nil && !unclear)
		if r.err == nil {
			s.logger.Info("tone detected", "speaker", r.speaker, "tone", r.label)
		}
	case resultSplit:
		if r.err != nil {
			sp.splitterBusy = false
			s.logger.Warn("splitter failed", "speaker", r.speaker, "error", r.err)
			return
		}
		sentence, ok := sp.applySplit(r.bounds)
		if !ok {
			return
		}
		s.emit(confirmedTranscript(r.speaker, sentence))
		s.emit(partialTranscript(r.speaker, strings.Join(sp.remaining(), " ")))
		s.dispatchConfirmed(sp, sentence)
		if text := sp.toneTextIfReady(); text != "" && s.toneDet != nil {
			s.dispatchTone(r.speaker, text)
		}
	}
}

func (s *Session) dispatchConfirmed(sp *speakerState, sentence string) {
	seq := sp.trackConfirmed(sentence)
	req := translate.Request{
		Text:       sentence,
		PrevPair:   sp.lastPair,
		Tone:       sp.tone,
		TargetLang: s.params.TargetLang,
	}
	speaker := sp.id
	go func() {
		text, err := s.translator.TranslateConfirmed(s.ctx, req)
		s.post(result{kind: resultConfirmed, speaker: speaker, seq: seq, text: text, err: err})
	}()
}

func (s *Session) dispatchPartial(sp *speakerState, text string, seq uint64) {
	req := translate.Request{
		Text:       text,
		PrevPair:   sp.lastPair,
		Tone:       sp.tone,
		TargetLang: s.params.TargetLang,
	}
	speaker := sp.id
	go func() {
		out, err := s.translator.TranslatePartial(s.ctx, req)
		s.post(result{kind: resultPartial, speaker: speaker, seq: seq, text: out, err: err})
	}()
}

func (s *Session) dispatchTone(speaker, transcript string) {
	go func() {
		label, err := s.toneDet.Detect(s.ctx, transcript)
		s.post(result{kind: resultTone, speaker: speaker, label: label, err: err})
	}()
}

func (s *Session) dispatchSplit(speaker string, words []string) {
	go func() {
		bounds, err := s.splitter.Propose(s.ctx, words)
		s.post(result{kind: resultSplit, speaker: speaker, bounds: bounds, err: err})
	}()
}

func (s *Session) post(r result) {
	select {
	case s.results <- r:
	case <-s.ctx.Done():
	}
}

// emit queues an outbound message. When the client cannot keep up, partial
// snapshots are droppable; confirmed messages and errors wait.
func (s *Session) emit(m Message) {
	select {
	case s.out <- m:
		return
	default:
	}
	switch m.Type {
	case TypePartialTranscript, TypePartialTranslation:
		s.logger.Debug("outbound queue full, dropping partial", "type", m.Type, "speaker", m.Speaker)
	default:
		select {
		case s.out <- m:
		case <-s.ctx.Done():
		}
	}
}

func (s *Session) resetSilenceTimer(id string) {
	if t, ok := s.timers[id]; ok {
		t.Reset(s.silence)
		return
	}
	s.timers[id] = time.AfterFunc(s.silence, func() {
		select {
		case s.silenceCh <- id:
		case <-s.ctx.Done():
		}
	})
}
