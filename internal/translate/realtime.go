package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	defaultRealtimeURL = "wss://api.openai.com/v1/realtime?model=gpt-realtime-mini"

	reconnectBaseDelay = 100 * time.Millisecond
	reconnectMaxDelay  = 10 * time.Second
	pingInterval       = 20 * time.Second
	pingWriteTimeout   = 5 * time.Second
)

// ErrConnectionLost resolves every in-flight request when the socket drops.
// Callers treat it like any other backend failure.
var ErrConnectionLost = errors.New("realtime: connection lost")

// rtTracker follows one response from response.create to response.done.
// text accumulates under the client mutex; ch is buffered so late resolution
// after the caller gave up cannot block.
type rtTracker struct {
	text string
	ch   chan rtResult
}

type rtResult struct {
	text string
	err  error
}

// RealtimeClient is the speed backend: one persistent websocket per session,
// every translation an out-of-band response.create. The API assigns response
// IDs in creation order, so a FIFO of unacknowledged requests maps
// response.created events back to their trackers.
type RealtimeClient struct {
	url    string
	apiKey string
	logger *log.Logger

	// sendMu serializes all socket writes.
	sendMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	creation  []*rtTracker          // sent, awaiting response.created
	pending   map[string]*rtTracker // response ID -> tracker

	done chan struct{}
}

// NewRealtime dials the realtime API and prepares the session for text-only
// responses.
func NewRealtime(apiKey string, logger *log.Logger) (*RealtimeClient, error) {
	return newRealtime(defaultRealtimeURL, apiKey, logger)
}

func newRealtime(url, apiKey string, logger *log.Logger) (*RealtimeClient, error) {
	c := &RealtimeClient{
		url:     url,
		apiKey:  apiKey,
		logger:  logger,
		pending: make(map[string]*rtTracker),
		done:    make(chan struct{}),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	go c.pingLoop()
	return c, nil
}

// connect dials, configures the session, and starts the read loop.
func (c *RealtimeClient) connect() error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := websocket.DefaultDialer.Dial(c.url, header)
	if err != nil {
		return fmt.Errorf("realtime: dial: %w", err)
	}

	update := map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":                 []string{"text"},
			"temperature":                0.6,
			"max_response_output_tokens": 200,
		},
	}
	c.sendMu.Lock()
	err = conn.WriteJSON(update)
	c.sendMu.Unlock()
	if err != nil {
		conn.Close()
		return fmt.Errorf("realtime: session.update: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

func (c *RealtimeClient) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasClosed := c.closed
			if c.conn == conn {
				c.connected = false
			}
			c.failAllLocked()
			c.mu.Unlock()
			if !wasClosed {
				c.logger.Warn("realtime socket dropped, reconnecting", "error", err)
				go c.reconnectLoop()
			}
			return
		}
		c.handleEvent(raw)
	}
}

// reconnectLoop re-dials with exponential backoff until it succeeds or the
// client is closed.
func (c *RealtimeClient) reconnectLoop() {
	delay := reconnectBaseDelay
	for {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}
		err := c.connect()
		if err == nil {
			c.logger.Info("realtime socket reconnected")
			return
		}
		c.logger.Warn("realtime reconnect failed", "error", err, "next_delay", delay)
		delay *= 4
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

func (c *RealtimeClient) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
		c.mu.Lock()
		conn, ok := c.conn, c.connected
		c.mu.Unlock()
		if !ok {
			continue
		}
		c.sendMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteTimeout))
		c.sendMu.Unlock()
		if err != nil {
			c.logger.Debug("realtime ping failed", "error", err)
		}
	}
}

type rtEvent struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id"`
	Delta      string `json:"delta"`
	Text       string `json:"text"`
	Response   struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"response"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *RealtimeClient) handleEvent(raw []byte) {
	var ev rtEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.logger.Debug("realtime: undecodable event", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case "response.created":
		// IDs are assigned in the order response.create was sent.
		if len(c.creation) == 0 {
			c.logger.Warn("realtime: response.created with no request in flight", "response_id", ev.Response.ID)
			return
		}
		tr := c.creation[0]
		c.creation = c.creation[1:]
		c.pending[ev.Response.ID] = tr

	case "response.text.delta":
		if tr, ok := c.pending[ev.ResponseID]; ok {
			tr.text += ev.Delta
		}

	case "response.text.done":
		if tr, ok := c.pending[ev.ResponseID]; ok {
			tr.text = ev.Text
		}

	case "response.done":
		tr, ok := c.pending[ev.Response.ID]
		if !ok {
			return
		}
		delete(c.pending, ev.Response.ID)
		if tr.text == "" {
			tr.ch <- rtResult{err: fmt.Errorf("realtime: empty response (status %s)", ev.Response.Status)}
			return
		}
		tr.ch <- rtResult{text: tr.text}

	case "error":
		c.logger.Warn("realtime: server error", "type", ev.Error.Type, "message", ev.Error.Message)

	default:
		// session.created, session.updated, rate_limits, etc.
	}
}

// failAllLocked resolves every outstanding tracker with ErrConnectionLost.
// Callers must hold c.mu.
func (c *RealtimeClient) failAllLocked() {
	for _, tr := range c.creation {
		tr.ch <- rtResult{err: ErrConnectionLost}
	}
	c.creation = nil
	for id, tr := range c.pending {
		tr.ch <- rtResult{err: ErrConnectionLost}
		delete(c.pending, id)
	}
}

type rtResponseCreate struct {
	Type     string         `json:"type"`
	Response rtResponseSpec `json:"response"`
}

type rtResponseSpec struct {
	Conversation string   `json:"conversation"`
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions"`
	Input        []rtItem `json:"input"`
}

type rtItem struct {
	Type    string      `json:"type"`
	Role    string      `json:"role"`
	Content []rtContent `json:"content"`
}

type rtContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Translate sends one out-of-band response.create and waits for its result.
func (c *RealtimeClient) Translate(ctx context.Context, req Request) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", errors.New("realtime: client closed")
	}
	if !c.connected {
		c.mu.Unlock()
		return "", ErrConnectionLost
	}
	conn := c.conn
	tr := &rtTracker{ch: make(chan rtResult, 1)}
	c.creation = append(c.creation, tr)
	c.mu.Unlock()

	payload := rtResponseCreate{
		Type: "response.create",
		Response: rtResponseSpec{
			Conversation: "none",
			Modalities:   []string{"text"},
			Instructions: buildInstructions(req.TargetLang, req.Tone),
			Input: []rtItem{{
				Type: "message",
				Role: "user",
				Content: []rtContent{{
					Type: "input_text",
					Text: userContent(buildContext(req.Summary, req.PrevPair), req.Text),
				}},
			}},
		},
	}

	c.sendMu.Lock()
	err := conn.WriteJSON(payload)
	c.sendMu.Unlock()
	if err != nil {
		c.removeTracker(tr)
		return "", fmt.Errorf("realtime: send: %w", err)
	}

	select {
	case res := <-tr.ch:
		return res.text, res.err
	case <-ctx.Done():
		c.removeTracker(tr)
		return "", ctx.Err()
	}
}

// removeTracker drops an abandoned tracker from the FIFO. Once the tracker is
// keyed by response ID it stays pending; its buffered channel absorbs the
// late result.
func (c *RealtimeClient) removeTracker(tr *rtTracker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.creation {
		if cur == tr {
			c.creation = append(c.creation[:i], c.creation[i+1:]...)
			return
		}
	}
}

// Close shuts the socket and fails anything still in flight.
func (c *RealtimeClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.connected = false
	c.failAllLocked()
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}
