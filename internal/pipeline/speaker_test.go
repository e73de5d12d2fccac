package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/lingostream/livecap/internal/asr"
	"github.com/lingostream/livecap/internal/tone"
)

func asrWords(final bool, text string) []asr.Word {
	fields := strings.Fields(text)
	words := make([]asr.Word, len(fields))
	for i, f := range fields {
		words[i] = asr.Word{Text: f, Final: final}
	}
	return words
}

func TestSpeaker_SingleSentenceHighAggressiveness(t *testing.T) {
	sp := newSpeaker("0")
	acts := sp.apply(asrWords(false, "Hello world."), 1, 6)

	if len(acts.sealed) != 1 || acts.sealed[0] != "Hello world." {
		t.Fatalf("sealed = %v", acts.sealed)
	}
	if sp.confirmedWordCount != 2 {
		t.Fatalf("confirmedWordCount = %d, want 2", sp.confirmedWordCount)
	}
	if acts.partialText != "" {
		t.Fatalf("unexpected partial dispatch %q", acts.partialText)
	}
	if acts.transcript != "" {
		t.Fatalf("post-seal transcript = %q, want empty", acts.transcript)
	}
}

func TestSpeaker_LowAggressivenessNeedsTwoMarks(t *testing.T) {
	sp := newSpeaker("0")

	acts := sp.apply(asrWords(false, "Hi."), 2, 6)
	if len(acts.sealed) != 0 {
		t.Fatalf("sealed too early: %v", acts.sealed)
	}
	if acts.partialText != "Hi." {
		t.Fatalf("first partial = %q", acts.partialText)
	}

	acts = sp.apply(asrWords(false, "Hi. Done."), 2, 6)
	if len(acts.sealed) != 1 || acts.sealed[0] != "Hi. Done." {
		t.Fatalf("sealed = %v", acts.sealed)
	}
	if sp.confirmedSource != "Hi. Done." {
		t.Fatalf("confirmedSource = %q", sp.confirmedSource)
	}
}

func TestSpeaker_RevisionSealsRevisedText(t *testing.T) {
	sp := newSpeaker("0")

	var sealed []string
	for i := 0; i < 5; i++ {
		acts := sp.apply(asrWords(false, "the quick brown"), 1, 6)
		sealed = append(sealed, acts.sealed...)
	}
	if len(sealed) != 0 {
		t.Fatalf("sealed before revision: %v", sealed)
	}

	acts := sp.apply(asrWords(false, "the quick brown fox."), 1, 6)
	if len(acts.sealed) != 1 || acts.sealed[0] != "the quick brown fox." {
		t.Fatalf("sealed = %v", acts.sealed)
	}
}

func TestSpeaker_DedupSkipsNearIdenticalSnapshots(t *testing.T) {
	sp := newSpeaker("0")
	sp.apply(asrWords(false, "hello world"), 1, 1)

	// Same snapshot plus trailing punctuation on the last word: skipped, so
	// no seal happens even though the text now ends a sentence.
	acts := sp.apply(asrWords(false, "hello world."), 1, 1)
	if len(acts.sealed) != 0 || acts.partialText != "" {
		t.Fatalf("near-duplicate was processed: %+v", acts)
	}
	// update_count still advances on skipped events.
	if sp.updateCount != 2 {
		t.Fatalf("updateCount = %d, want 2", sp.updateCount)
	}

	// A 3-character extension is a real revision and processes normally.
	acts = sp.apply(asrWords(false, "hello world.!?"), 1, 1)
	if len(acts.sealed) != 1 {
		t.Fatalf("revision not processed: %+v", acts)
	}
}

func TestNearDuplicate(t *testing.T) {
	cases := []struct {
		prev, cur string
		want      bool
	}{
		{"hello world", "hello world", true},
		{"hello world", "hello world.", true},
		{"hello world", "hello world..", true},
		{"hello world", "hello world...", false}, // 3 chars
		{"hello world", "hello world x", false},  // new word
		{"hello world", "hello", false},          // shorter: forced reprocess
		{"", "hello", false},
	}
	for _, tc := range cases {
		if got := nearDuplicate(tc.prev, tc.cur); got != tc.want {
			t.Fatalf("nearDuplicate(%q, %q) = %v, want %v", tc.prev, tc.cur, got, tc.want)
		}
	}
}

func TestSpeaker_PartialThrottle(t *testing.T) {
	sp := newSpeaker("0")

	var dispatches []int
	text := ""
	for i := 1; i <= 7; i++ {
		text += fmt.Sprintf(" word%d", i)
		acts := sp.apply(asrWords(false, text), 1, 3)
		if acts.partialText != "" {
			dispatches = append(dispatches, i)
		}
	}
	// Early first partial on update 1, then every 3rd update.
	want := []int{1, 3, 6}
	if fmt.Sprint(dispatches) != fmt.Sprint(want) {
		t.Fatalf("partial dispatches on updates %v, want %v", dispatches, want)
	}

	// A seal resets the cadence.
	acts := sp.apply(asrWords(false, text+" done."), 1, 3)
	if len(acts.sealed) != 1 {
		t.Fatalf("expected seal, got %+v", acts)
	}
	if sp.updatesSinceSeal != 0 {
		t.Fatalf("updatesSinceSeal = %d after seal", sp.updatesSinceSeal)
	}
}

func TestSpeaker_MonotoneSealing(t *testing.T) {
	sp := newSpeaker("0")
	prevCount, prevLen := 0, 0

	snapshots := []string{
		"so",
		"so anyway",
		"so anyway we went.",
		"after that",
		"after that it rained. then we left.",
		"hm",
	}
	for _, snap := range snapshots {
		sp.apply(asrWords(false, snap), 1, 2)
		if sp.confirmedWordCount < prevCount || len(sp.confirmedSource) < prevLen {
			t.Fatalf("sealing went backwards at %q: count %d->%d source %d->%d",
				snap, prevCount, sp.confirmedWordCount, prevLen, len(sp.confirmedSource))
		}
		prevCount, prevLen = sp.confirmedWordCount, len(sp.confirmedSource)
	}
}

func TestSpeaker_FinalWordsAccumulate(t *testing.T) {
	sp := newSpeaker("0")
	sp.apply(asrWords(true, "First part."), 1, 6)
	if sp.confirmedSource != "First part." {
		t.Fatalf("confirmedSource = %q", sp.confirmedSource)
	}

	// A later interim tail builds on the final words, not over them.
	acts := sp.apply(asrWords(false, "and then"), 1, 6)
	if acts.transcript != "and then" {
		t.Fatalf("transcript = %q", acts.transcript)
	}
	acts = sp.apply(asrWords(false, "and then some."), 1, 6)
	if len(acts.sealed) != 1 || acts.sealed[0] != "and then some." {
		t.Fatalf("sealed = %v", acts.sealed)
	}
}

func TestSpeaker_SplitterDispatchAndStaleness(t *testing.T) {
	sp := newSpeaker("0")
	long := strings.Repeat("word ", 16) + "tail" // 17 words, no punctuation

	acts := sp.apply(asrWords(false, long), 1, 6)
	if len(acts.splitterWords) != 17 {
		t.Fatalf("splitter words = %d, want 17", len(acts.splitterWords))
	}
	if !sp.splitterBusy {
		t.Fatalf("splitterBusy not set")
	}

	// No re-dispatch while busy.
	acts = sp.apply(asrWords(false, long+" more"), 1, 6)
	if len(acts.splitterWords) != 0 {
		t.Fatalf("splitter re-dispatched while busy")
	}

	// A silence seal before the proposal lands makes it stale.
	if _, ok := sp.sealRemaining(); !ok {
		t.Fatalf("sealRemaining failed")
	}
	if _, ok := sp.applySplit([]int{5}); ok {
		t.Fatalf("stale split applied")
	}
	if sp.splitterBusy {
		t.Fatalf("splitterBusy not cleared on stale result")
	}
}

func TestSpeaker_SplitterAppliesEarliestBoundary(t *testing.T) {
	sp := newSpeaker("0")
	long := strings.Repeat("word ", 16) + "tail"
	sp.apply(asrWords(false, long), 1, 6)

	sentence, ok := sp.applySplit([]int{5, 12})
	if !ok {
		t.Fatalf("split not applied")
	}
	if got := len(strings.Fields(sentence)); got != 5 {
		t.Fatalf("sealed %d words, want 5", got)
	}
	if sp.confirmedWordCount != 5 {
		t.Fatalf("confirmedWordCount = %d", sp.confirmedWordCount)
	}
}

func TestSpeaker_SilenceSealRemaining(t *testing.T) {
	sp := newSpeaker("0")
	sp.apply(asrWords(false, "And then"), 1, 6)

	sentence, ok := sp.sealRemaining()
	if !ok || sentence != "And then" {
		t.Fatalf("sealRemaining = %q, %v", sentence, ok)
	}
	if sp.confirmedWordCount != 2 {
		t.Fatalf("confirmedWordCount = %d", sp.confirmedWordCount)
	}
	// Nothing left: a second fire is a no-op.
	if _, ok := sp.sealRemaining(); ok {
		t.Fatalf("sealed empty remaining")
	}
}

func TestSpeaker_PartialStaleness(t *testing.T) {
	sp := newSpeaker("0")

	seq1 := sp.issuePartial("one two")
	seq2 := sp.issuePartial("one two three")
	if sp.acceptPartial(seq1) {
		t.Fatalf("superseded partial accepted")
	}
	if !sp.acceptPartial(seq2) {
		t.Fatalf("latest partial rejected")
	}

	// Sealing makes everything stale until the next partial request.
	sp.apply(asrWords(false, "one two three done."), 1, 6)
	if sp.acceptPartial(seq2) {
		t.Fatalf("stale partial accepted after seal")
	}

	// With a confirmed translation still in flight, new partials stay stale.
	cseq := sp.trackConfirmed("one two three done.")
	seq3 := sp.issuePartial("more words")
	if sp.acceptPartial(seq3) {
		t.Fatalf("partial accepted while confirmed in flight")
	}
	sp.completeConfirmed(cseq, "translated", false)
	seq4 := sp.issuePartial("more words again")
	if !sp.acceptPartial(seq4) {
		t.Fatalf("partial rejected after confirmed landed")
	}
}

func TestSpeaker_ConfirmedOrderingAndMarker(t *testing.T) {
	sp := newSpeaker("0")
	s1 := sp.trackConfirmed("First.")
	s2 := sp.trackConfirmed("Second.")

	// Out-of-order completion buffers until the earlier seal lands.
	if msgs := sp.completeConfirmed(s2, "Zweiter.", false); len(msgs) != 0 {
		t.Fatalf("later seal emitted early: %v", msgs)
	}
	msgs := sp.completeConfirmed(s1, "", true)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Text != "First. [untranslated]" {
		t.Fatalf("failed seal text = %q", msgs[0].Text)
	}
	if msgs[1].Text != "Zweiter." {
		t.Fatalf("second seal text = %q", msgs[1].Text)
	}
	// The failed sentence must not poison the context pair.
	if sp.lastPair.Source != "Second." || sp.lastPair.Translation != "Zweiter." {
		t.Fatalf("lastPair = %+v", sp.lastPair)
	}
	if sp.confirmedInFlight != 0 {
		t.Fatalf("confirmedInFlight = %d", sp.confirmedInFlight)
	}
}

func TestSpeaker_ToneOneShot(t *testing.T) {
	sp := newSpeaker("0")
	long := strings.Repeat("word ", 29) + "end."
	sp.apply(asrWords(false, long), 1, 6) // seals 30 words

	acts := sp.apply(asrWords(false, "more."), 1, 6)
	_ = acts
	if text := sp.confirmedSource; len(strings.Fields(text)) < tone.TriggerWordCount {
		t.Fatalf("test setup: confirmed too short (%d words)", len(strings.Fields(text)))
	}
	if !sp.toneTriggered {
		t.Fatalf("tone not triggered at threshold")
	}
	if got := sp.toneTextIfReady(); got != "" {
		t.Fatalf("tone re-armed while triggered: %q", got)
	}

	// Unclear answer re-arms; a vendor failure does not.
	sp.toneResult(tone.Unset, true, false)
	if sp.toneTriggered {
		t.Fatalf("unclear result should re-arm the trigger")
	}
	if got := sp.toneTextIfReady(); got == "" {
		t.Fatalf("re-armed trigger did not fire")
	}
	sp.toneResult(tone.Unset, false, true)
	if !sp.toneTriggered || sp.tone != tone.Unset {
		t.Fatalf("vendor failure should leave the trigger consumed and tone unset")
	}

	sp.toneResult(tone.Formal, false, false)
	if sp.tone != tone.Formal {
		t.Fatalf("tone = %q", sp.tone)
	}
	// Once set, it never changes.
	sp.toneResult(tone.Casual, false, false)
	if sp.tone != tone.Formal {
		t.Fatalf("tone overwritten to %q", sp.tone)
	}
}
