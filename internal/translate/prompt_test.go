package translate

import (
	"strings"
	"testing"

	"github.com/lingostream/livecap/internal/tone"
)

func TestToneInstruction_PerLanguageTables(t *testing.T) {
	if got := toneInstruction("ko", tone.Casual); !strings.Contains(got, "반말") {
		t.Fatalf("korean casual instruction = %q", got)
	}
	if got := toneInstruction("ja", tone.Formal); !strings.Contains(got, "敬語") {
		t.Fatalf("japanese formal instruction = %q", got)
	}
	if got := toneInstruction("fr", tone.Narrative); !strings.Contains(got, "narrative") {
		t.Fatalf("generic narrative instruction = %q", got)
	}
	// Regional variants use the base language table.
	if toneInstruction("pt-BR", tone.Casual) != toneInstructionsGeneric[tone.Casual] {
		t.Fatalf("pt-BR should use the generic table")
	}
	if got := toneInstruction("ko", tone.Unset); got != "" {
		t.Fatalf("unset label should produce no instruction, got %q", got)
	}
}

func TestBuildInstructions(t *testing.T) {
	got := buildInstructions("ko", tone.Unset)
	if !strings.Contains(got, "Korean") {
		t.Fatalf("instructions missing language name: %q", got)
	}
	if strings.Contains(got, "Register:") {
		t.Fatalf("unlabelled instructions should omit register block: %q", got)
	}

	got = buildInstructions("ko", tone.Formal)
	if !strings.Contains(got, "Register: ") || !strings.Contains(got, "합쇼체") {
		t.Fatalf("labelled instructions missing register block: %q", got)
	}
}

func TestBuildContext(t *testing.T) {
	if got := buildContext("", Pair{}); got != "" {
		t.Fatalf("empty context = %q", got)
	}
	got := buildContext("a cooking stream", Pair{Source: "Chop the onions.", Translation: "Coupez les oignons."})
	want := "Topic: a cooking stream\nPrevious source: Chop the onions.\nPrevious translation: Coupez les oignons."
	if got != want {
		t.Fatalf("context = %q, want %q", got, want)
	}
	// A pair missing its translation is not usable context.
	if got := buildContext("", Pair{Source: "only source"}); got != "" {
		t.Fatalf("half pair should be skipped, got %q", got)
	}
}

func TestUserContent(t *testing.T) {
	if got := userContent("", "hello"); got != "Translate: hello" {
		t.Fatalf("bare content = %q", got)
	}
	got := userContent("Topic: x", "hello")
	if got != "Topic: x\n\nTranslate: hello" {
		t.Fatalf("content with context = %q", got)
	}
}
