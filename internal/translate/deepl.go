package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lingostream/livecap/internal/langs"
	"github.com/lingostream/livecap/internal/tone"
)

// DeepLClient is the quality-optimized backend for confirmed translations.
// Each call is a stateless POST; context is supplied per request.
type DeepLClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	// target is the DeepL target code, targetLang the session's query code
	// (kept for the register instruction tables).
	target     string
	targetLang string
	logger     *log.Logger
}

// NewDeepL builds a DeepL backend for one target language. Returns an error
// when DeepL does not support the target; the caller falls back to the
// realtime backend for confirmed translations.
func NewDeepL(apiKey, baseURL, targetLang string, logger *log.Logger) (*DeepLClient, error) {
	target, ok := langs.DeepLTarget(targetLang)
	if !ok {
		return nil, fmt.Errorf("deepl: unsupported target language %q", targetLang)
	}
	return &DeepLClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		baseURL:    baseURL,
		target:     target,
		targetLang: targetLang,
		logger:     logger,
	}, nil
}

type deepLRequest struct {
	Text               []string `json:"text"`
	TargetLang         string   `json:"target_lang"`
	SplitSentences     string   `json:"split_sentences"`
	ModelType          string   `json:"model_type"`
	Context            string   `json:"context,omitempty"`
	Formality          string   `json:"formality,omitempty"`
	CustomInstructions string   `json:"custom_instructions,omitempty"`
}

type deepLResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// garbleInstruction tells the quality model how to handle ASR noise; DeepL
// has no system prompt so it rides in custom_instructions.
const garbleInstruction = "The text is a live speech transcript and may contain mistranscribed words. Translate what the speaker most plausibly said. Do not add commentary."

func (c *DeepLClient) buildBody(req Request) deepLRequest {
	body := deepLRequest{
		Text:           []string{req.Text},
		TargetLang:     c.target,
		SplitSentences: "0",
		ModelType:      "quality_optimized",
	}
	body.Context = buildContext(req.Summary, req.PrevPair)
	if langs.SupportsFormality(c.target) {
		switch req.Tone {
		case tone.Casual, tone.CasualPolite:
			body.Formality = "prefer_less"
		case tone.Formal:
			body.Formality = "prefer_more"
		}
	}
	if langs.SupportsCustomInstructions(c.target) {
		body.CustomInstructions = garbleInstruction
		if ti := toneInstruction(c.targetLang, req.Tone); ti != "" {
			body.CustomInstructions += "\n" + ti
		}
	}
	return body
}

// Translate issues one /v2/translate call.
func (c *DeepLClient) Translate(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(c.buildBody(req))
	if err != nil {
		return "", fmt.Errorf("deepl: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/translate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("deepl: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("deepl: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("deepl: status %d: %s", resp.StatusCode, raw)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, 456: // 456 = quota exceeded
			return "", &FatalError{Err: err}
		}
		return "", err
	}

	var out deepLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("deepl: decode response: %w", err)
	}
	if len(out.Translations) == 0 || out.Translations[0].Text == "" {
		return "", fmt.Errorf("deepl: empty translation")
	}
	return out.Translations[0].Text, nil
}

// Close is a no-op; the client holds no persistent connection.
func (c *DeepLClient) Close() error { return nil }
