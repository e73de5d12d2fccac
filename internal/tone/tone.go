// Package tone classifies a speaker's register from accumulated transcript
// text. Detection is a one-shot asynchronous call; the result feeds the
// translator prompt.
package tone

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Label is a speech register level.
type Label string

const (
	// Unset means detection has not produced a label yet.
	Unset        Label = ""
	Casual       Label = "casual"
	CasualPolite Label = "casual_polite"
	Formal       Label = "formal"
	Narrative    Label = "narrative"
)

// TriggerWordCount is how many confirmed source words must accumulate before
// detection is dispatched.
const TriggerWordCount = 30

// ErrUnclear is returned when the model answered with something that is not a
// known label. The caller may re-arm detection for a later attempt.
var ErrUnclear = errors.New("tone: classification unclear")

const detectPrompt = `Analyze this transcript from a live stream/video and determine the speaker's tone and register.

TRANSCRIPT:
%s

Choose exactly ONE of these speech register levels that would best match the speaker's tone:

1. casual (friends talking, gaming streams, very relaxed)
   Use when: slang, filler words, addressing chat directly, cursing, incomplete sentences

2. casual_polite (friendly but polite, most YouTube content)
   Use when: conversational but structured, educational but approachable

3. formal (news, lectures, business presentations)
   Use when: professional vocabulary, structured speech, formal setting

4. narrative (documentaries, storytelling, essays)
   Use when: descriptive, third person, explaining concepts with authority

Respond with ONLY the tone name (casual, casual_polite, formal, or narrative). Nothing else.`

// Detector runs the one-shot register classification.
type Detector struct {
	client openai.Client
	model  string
	logger *log.Logger
}

// New builds a Detector backed by the OpenAI chat completions API.
func New(apiKey string, logger *log.Logger) *Detector {
	return &Detector{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  "gpt-4o-mini",
		logger: logger,
	}
}

// Detect classifies the transcript. Only the last 100 words are sent.
func (d *Detector) Detect(ctx context.Context, transcript string) (Label, error) {
	words := strings.Fields(transcript)
	if len(words) > 100 {
		words = words[len(words)-100:]
	}
	prompt := fmt.Sprintf(detectPrompt, strings.Join(words, " "))

	resp, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       "gpt-4o-mini",
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(10),
	})
	if err != nil {
		return Unset, fmt.Errorf("tone detection: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Unset, fmt.Errorf("tone detection: empty choices")
	}
	return ParseLabel(resp.Choices[0].Message.Content)
}

// ParseLabel normalizes a model answer to a Label.
func ParseLabel(answer string) (Label, error) {
	switch Label(strings.ToLower(strings.TrimSpace(answer))) {
	case Casual:
		return Casual, nil
	case CasualPolite:
		return CasualPolite, nil
	case Formal:
		return Formal, nil
	case Narrative:
		return Narrative, nil
	}
	return Unset, fmt.Errorf("%w: %q", ErrUnclear, answer)
}
