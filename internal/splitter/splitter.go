// Package splitter proposes sentence boundaries for long unpunctuated
// transcript runs, for languages and ASR modes where punctuation never
// arrives.
package splitter

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Threshold is the unsealed word count above which a split is requested.
const Threshold = 15

const splitPrompt = `The text below is an unpunctuated fragment of a live speech transcript.

Identify where complete sentences end. Respond with the cumulative word counts of each complete sentence, counted from the first word, as comma-separated integers in increasing order. Do not count a trailing incomplete sentence. If there is no complete sentence, respond with NONE.

Respond with only the numbers or NONE. Nothing else.

TEXT:
%s`

// Splitter asks a small chat model for sentence boundaries.
type Splitter struct {
	client openai.Client
	logger *log.Logger
}

// New builds a Splitter backed by the OpenAI chat completions API.
func New(apiKey string, logger *log.Logger) *Splitter {
	return &Splitter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		logger: logger,
	}
}

// Propose returns cumulative word counts of complete sentences within words.
// An empty slice means the model found no boundary.
func (s *Splitter) Propose(ctx context.Context, words []string) ([]int, error) {
	if len(words) == 0 {
		return nil, nil
	}
	prompt := fmt.Sprintf(splitPrompt, strings.Join(words, " "))
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       "gpt-4o-mini",
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(40),
	})
	if err != nil {
		return nil, fmt.Errorf("splitter: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("splitter: empty choices")
	}
	return parseBoundaries(resp.Choices[0].Message.Content, len(words))
}

// parseBoundaries validates the model answer against the word count.
// Boundaries must be strictly increasing and within (0, n].
func parseBoundaries(answer string, n int) ([]int, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" || strings.EqualFold(answer, "NONE") {
		return nil, nil
	}
	parts := strings.Split(answer, ",")
	boundaries := make([]int, 0, len(parts))
	prev := 0
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("splitter: bad boundary %q", p)
		}
		if v <= prev || v > n {
			return nil, fmt.Errorf("splitter: boundary %d out of range (prev %d, words %d)", v, prev, n)
		}
		boundaries = append(boundaries, v)
		prev = v
	}
	return boundaries, nil
}
