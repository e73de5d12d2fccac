package translate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const summaryPrompt = `Summarize what this live transcript is about in at most 30 words. Output only the summary, no preamble.

TRANSCRIPT:
%s`

// summaryWindowWords bounds how much transcript tail is sent per refresh.
const summaryWindowWords = 300

// Summarizer maintains a rolling topic summary of the confirmed source
// transcript. Refreshes run asynchronously; the latest completed one wins and
// failures leave the previous summary in place.
type Summarizer struct {
	client openai.Client
	logger *log.Logger
	base   context.Context

	mu      sync.Mutex
	words   []string
	summary string
	seq     uint64
	cancel  context.CancelFunc
}

// NewSummarizer builds a Summarizer scoped to the session context.
func NewSummarizer(ctx context.Context, apiKey string, logger *log.Logger) *Summarizer {
	return &Summarizer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
		base:   ctx,
	}
}

// Record appends a confirmed sentence and kicks off a background refresh.
// An in-flight refresh is cancelled; only the newest request may publish.
func (s *Summarizer) Record(sentence string) {
	s.mu.Lock()
	s.words = append(s.words, strings.Fields(sentence)...)
	if len(s.words) > summaryWindowWords {
		s.words = s.words[len(s.words)-summaryWindowWords:]
	}
	transcript := strings.Join(s.words, " ")
	s.seq++
	seq := s.seq
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.mu.Unlock()

	go s.refresh(ctx, seq, transcript)
}

func (s *Summarizer) refresh(ctx context.Context, seq uint64, transcript string) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       "gpt-4o-mini",
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(fmt.Sprintf(summaryPrompt, transcript))},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(60),
	})
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Debug("topic summary refresh failed", "error", err)
		}
		return
	}
	if len(resp.Choices) == 0 {
		return
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return
	}

	s.mu.Lock()
	if seq >= s.seq || s.summary == "" {
		s.summary = text
	}
	s.mu.Unlock()
}

// Summary returns the latest completed summary, "" before the first one.
func (s *Summarizer) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}
