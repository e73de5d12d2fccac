package asr

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
)

const (
	dialAttempts = 3
	dialBackoff  = 500 * time.Millisecond
)

// DeepgramAdapter normalizes the Deepgram callback SDK stream. Diarization is
// enabled, so events are keyed by the vendor speaker index.
type DeepgramAdapter struct {
	client *listen.LiveClient
	pub    *publisher
	logger *log.Logger

	mu          sync.Mutex
	established bool
	closed      bool
}

// NewDeepgram connects to Deepgram live transcription and returns the adapter.
// Connection failures are retried before giving up (asr_transient).
func NewDeepgram(ctx context.Context, apiKey, sourceLang string, logger *log.Logger) (*DeepgramAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram: %w", ErrMissingKey)
	}

	a := &DeepgramAdapter{
		pub:    newPublisher(),
		logger: logger,
	}

	cOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          "nova-3",
		Language:       sourceLang,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		Diarize:        true,
		Encoding:       "linear16",
		SampleRate:     16000,
		Channels:       1,
	}

	client, err := listen.NewWebSocket(ctx, apiKey, cOptions, tOptions, &deepgramCallbacks{a: a})
	if err != nil {
		return nil, fmt.Errorf("create deepgram connection: %w", err)
	}
	a.client = client

	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		if client.Connect() {
			return a, nil
		}
		lastErr = fmt.Errorf("deepgram connect attempt %d failed", attempt)
		a.logger.Warn("deepgram connect failed", "attempt", attempt)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialBackoff * time.Duration(attempt)):
		}
	}
	return nil, lastErr
}

// Events implements Adapter.
func (a *DeepgramAdapter) Events() <-chan Event { return a.pub.events() }

// SendAudio implements Adapter.
func (a *DeepgramAdapter) SendAudio(frame []byte) error {
	return a.client.WriteBinary(frame)
}

// Dropped reports how many events were evicted from the bounded queue.
func (a *DeepgramAdapter) Dropped() uint64 { return a.pub.droppedCount() }

// Close implements Adapter. Safe to call more than once.
func (a *DeepgramAdapter) Close() error {
	a.client.Stop()
	a.finish()
	return nil
}

// finish publishes the synthetic eos and closes the event channel exactly once.
func (a *DeepgramAdapter) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.pub.publish(Event{Kind: KindEOS})
	close(a.pub.ch)
}

// handleResult converts one transcript result to per-speaker events.
func (a *DeepgramAdapter) handleResult(mr *api.MessageResponse) {
	// Publishing under the mutex keeps the channel open until finish().
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.established || a.closed {
		return
	}
	if len(mr.Channel.Alternatives) == 0 {
		return
	}
	alt := mr.Channel.Alternatives[0]
	if alt.Transcript == "" {
		// Keepalive-style empty result.
		return
	}

	// Diarized words arrive interleaved; split into runs per speaker so each
	// pipeline sees only its own tokens, in order.
	type run struct {
		speaker string
		words   []Word
	}
	var runs []run
	for _, w := range alt.Words {
		text := w.PunctuatedWord
		if text == "" {
			text = w.Word
		}
		sp := "0"
		if w.Speaker != nil {
			sp = strconv.Itoa(*w.Speaker)
		}
		if len(runs) == 0 || runs[len(runs)-1].speaker != sp {
			runs = append(runs, run{speaker: sp})
		}
		last := &runs[len(runs)-1]
		last.words = append(last.words, Word{Text: text, Final: mr.IsFinal})
	}
	for _, r := range runs {
		a.pub.publish(Event{Speaker: r.speaker, Words: r.words, Kind: KindUpdate})
	}
}

// deepgramCallbacks adapts the SDK callback interface onto the adapter. A
// separate receiver keeps the SDK's Close(*CloseResponse) away from
// Adapter.Close.
type deepgramCallbacks struct {
	a *DeepgramAdapter
}

func (c *deepgramCallbacks) Open(or *api.OpenResponse) error {
	c.a.mu.Lock()
	c.a.established = true
	c.a.mu.Unlock()
	c.a.logger.Info("deepgram session open")
	return nil
}

func (c *deepgramCallbacks) Message(mr *api.MessageResponse) error {
	c.a.handleResult(mr)
	return nil
}

func (c *deepgramCallbacks) Close(cr *api.CloseResponse) error {
	c.a.logger.Info("deepgram session closed", "type", cr.Type)
	c.a.finish()
	return nil
}

func (c *deepgramCallbacks) Metadata(md *api.MetadataResponse) error {
	c.a.logger.Debug("deepgram metadata", "request_id", md.RequestID)
	return nil
}

// SpeechStarted and UtteranceEnd are swallowed; end-of-sentence is the
// pipeline's decision.
func (c *deepgramCallbacks) SpeechStarted(ssr *api.SpeechStartedResponse) error { return nil }

func (c *deepgramCallbacks) UtteranceEnd(ur *api.UtteranceEndResponse) error { return nil }

func (c *deepgramCallbacks) Error(er *api.ErrorResponse) error {
	c.a.logger.Error("deepgram error", "type", er.Type, "description", er.Description)
	return nil
}

func (c *deepgramCallbacks) UnhandledEvent(raw []byte) error {
	c.a.logger.Debug("deepgram unhandled event", "data", string(raw))
	return nil
}
