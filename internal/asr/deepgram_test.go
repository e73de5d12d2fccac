package asr

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
)

func deepgramResult(t *testing.T, raw string) *api.MessageResponse {
	t.Helper()
	var mr api.MessageResponse
	if err := json.Unmarshal([]byte(raw), &mr); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return &mr
}

func TestDeepgram_SplitsDiarizedRuns(t *testing.T) {
	a := &DeepgramAdapter{pub: newPublisher(), logger: log.New(os.Stderr)}
	a.established = true

	mr := deepgramResult(t, `{
		"is_final": true,
		"channel": {"alternatives": [{
			"transcript": "hi there hello",
			"words": [
				{"word": "hi", "punctuated_word": "Hi", "speaker": 0},
				{"word": "there", "punctuated_word": "there.", "speaker": 0},
				{"word": "hello", "punctuated_word": "Hello", "speaker": 1}
			]
		}]}
	}`)
	a.handleResult(mr)

	first := <-a.pub.events()
	if first.Speaker != "0" || len(first.Words) != 2 || first.Words[1].Text != "there." {
		t.Fatalf("first run = %+v", first)
	}
	if !first.Words[0].Final {
		t.Fatalf("expected final words on is_final result")
	}
	second := <-a.pub.events()
	if second.Speaker != "1" || len(second.Words) != 1 || second.Words[0].Text != "Hello" {
		t.Fatalf("second run = %+v", second)
	}
}

func TestDeepgram_SwallowsEmptyAndPreSession(t *testing.T) {
	a := &DeepgramAdapter{pub: newPublisher(), logger: log.New(os.Stderr)}

	// Not established yet.
	a.handleResult(deepgramResult(t, `{"channel":{"alternatives":[{"transcript":"x","words":[{"word":"x"}]}]}}`))
	// Established but empty transcript (keepalive).
	a.established = true
	a.handleResult(deepgramResult(t, `{"channel":{"alternatives":[{"transcript":""}]}}`))

	select {
	case ev := <-a.pub.events():
		t.Fatalf("unexpected event: %+v", ev)
	default:
	}
}
