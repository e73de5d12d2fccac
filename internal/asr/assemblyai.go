package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const assemblyAIBaseURL = "wss://streaming.assemblyai.com/v3/ws"

// AssemblyAI v3 streaming message shapes.
type aaiBeginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type aaiTurnMessage struct {
	Type          string `json:"type"`
	Transcript    string `json:"transcript"`
	EndOfTurn     bool   `json:"end_of_turn"`
	TurnFormatted bool   `json:"turn_is_formatted"`
}

type aaiTerminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

type aaiErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// AssemblyAIAdapter proxies client audio to AssemblyAI v3 streaming and
// normalizes the returned turn stream. The vendor has no diarization, so every
// event is attributed to the "default" speaker. Source language is
// autodetected by the vendor.
type AssemblyAIAdapter struct {
	conn   *websocket.Conn
	pub    *publisher
	logger *log.Logger

	writeMu sync.Mutex

	mu          sync.Mutex
	established bool
	closed      bool
}

// NewAssemblyAI dials the vendor and starts the read loop. Connection
// failures are retried before giving up (asr_transient).
func NewAssemblyAI(ctx context.Context, apiKey string, logger *log.Logger) (*AssemblyAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("assemblyai: %w", ErrMissingKey)
	}

	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("encoding", "pcm_s16le")
	params.Set("format_turns", "true")
	wsURL := fmt.Sprintf("%s?%s", assemblyAIBaseURL, params.Encode())

	headers := map[string][]string{"Authorization": {apiKey}}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	var conn *websocket.Conn
	var lastErr error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		c, resp, err := dialer.DialContext(ctx, wsURL, headers)
		if err == nil {
			conn = c
			break
		}
		if resp != nil {
			logger.Warn("assemblyai dial failed", "attempt", attempt, "status", resp.StatusCode)
		} else {
			logger.Warn("assemblyai dial failed", "attempt", attempt, "error", err)
		}
		lastErr = fmt.Errorf("connect to assemblyai: %w", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialBackoff * time.Duration(attempt)):
		}
	}
	if conn == nil {
		return nil, lastErr
	}

	a := &AssemblyAIAdapter{
		conn:   conn,
		pub:    newPublisher(),
		logger: logger,
	}
	go a.readLoop()
	return a, nil
}

// Events implements Adapter.
func (a *AssemblyAIAdapter) Events() <-chan Event { return a.pub.events() }

// SendAudio forwards one audio frame unchanged to the vendor.
func (a *AssemblyAIAdapter) SendAudio(frame []byte) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return fmt.Errorf("assemblyai connection closed")
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return a.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Dropped reports how many events were evicted from the bounded queue.
func (a *AssemblyAIAdapter) Dropped() uint64 { return a.pub.droppedCount() }

// Close requests session termination and tears down the socket.
func (a *AssemblyAIAdapter) Close() error {
	a.writeMu.Lock()
	_ = a.conn.WriteJSON(map[string]string{"type": "Terminate"})
	a.writeMu.Unlock()
	err := a.conn.Close()
	a.finish()
	return err
}

func (a *AssemblyAIAdapter) finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	a.pub.publish(Event{Kind: KindEOS})
	close(a.pub.ch)
}

func (a *AssemblyAIAdapter) readLoop() {
	defer a.finish()
	for {
		_, message, err := a.conn.ReadMessage()
		if err != nil {
			a.mu.Lock()
			closed := a.closed
			a.mu.Unlock()
			if !closed {
				a.logger.Warn("assemblyai read error", "error", err)
			}
			return
		}
		if done := a.processMessage(message); done {
			return
		}
	}
}

// processMessage handles one vendor frame; it reports true when the session
// terminated.
func (a *AssemblyAIAdapter) processMessage(message []byte) bool {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		a.logger.Warn("assemblyai bad frame", "error", err)
		return false
	}

	switch base.Type {
	case "Begin":
		var msg aaiBeginMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return false
		}
		a.mu.Lock()
		a.established = true
		a.mu.Unlock()
		a.logger.Info("assemblyai session began", "id", msg.ID)
	case "Turn":
		var msg aaiTurnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return false
		}
		a.handleTurn(msg)
	case "Termination":
		var msg aaiTerminationMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return false
		}
		a.logger.Info("assemblyai session terminated",
			"audio_s", msg.AudioDurationSeconds, "session_s", msg.SessionDurationSeconds)
		return true
	case "Error":
		var msg aaiErrorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return false
		}
		a.logger.Error("assemblyai error", "error", msg.Error)
	default:
		// Keepalives and unknown frames are swallowed.
	}
	return false
}

func (a *AssemblyAIAdapter) handleTurn(msg aaiTurnMessage) {
	// Publishing under the mutex keeps the channel open until finish().
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.established || a.closed || msg.Transcript == "" {
		return
	}
	final := msg.EndOfTurn || msg.TurnFormatted
	fields := strings.Fields(msg.Transcript)
	words := make([]Word, len(fields))
	for i, f := range fields {
		words[i] = Word{Text: f, Final: final}
	}
	a.pub.publish(Event{Speaker: DefaultSpeaker, Words: words, Kind: KindUpdate})
}

// DefaultSpeaker is the speaker id used by adapters without diarization.
const DefaultSpeaker = "default"
