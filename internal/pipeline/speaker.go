package pipeline

import (
	"strings"

	"github.com/lingostream/livecap/internal/asr"
	"github.com/lingostream/livecap/internal/splitter"
	"github.com/lingostream/livecap/internal/tone"
	"github.com/lingostream/livecap/internal/translate"
)

// speakerState is the per-speaker segmentation state machine. It is owned by
// the session loop; nothing here is safe for concurrent use.
type speakerState struct {
	id string

	// finalWords accumulates vendor-final words; liveWords is the current
	// non-final tail, replaced wholesale on every interim result.
	finalWords []string
	liveWords  []string

	// confirmedWordCount points into finalWords++liveWords. Words before it
	// are sealed and never rewritten. It never decreases.
	confirmedWordCount int
	confirmedSource    string

	updateCount      int
	updatesSinceSeal int
	firstPartialSent bool

	lastProcessed     string
	lastPartialSource string

	partialSeq       uint64
	latestPartialSeq uint64
	partialStale     bool

	// Confirmed translations must surface in seal order even when the
	// backend completes them out of order.
	confirmedInFlight int
	confirmNext       uint64
	confirmEmit       uint64
	confirmSource     map[uint64]string
	confirmReady      map[uint64]confirmOutcome

	confirmedTranslation string
	lastPair             translate.Pair

	tone          tone.Label
	toneTriggered bool

	splitterBusy bool
	splitterBase int
}

type confirmOutcome struct {
	text   string
	failed bool
}

func newSpeaker(id string) *speakerState {
	return &speakerState{
		id:            id,
		confirmSource: make(map[uint64]string),
		confirmReady:  make(map[uint64]confirmOutcome),
	}
}

// actions is what one applied event asks the session to do. Segmentation is
// synchronous and pure; all network work is dispatched by the session.
type actions struct {
	activity bool

	sealed []string // newly sealed sentences, in seal order

	transcript     string // remaining-words snapshot for partial_transcript
	emitTranscript bool

	partialText string // non-empty: dispatch a partial translation
	partialSeq  uint64

	splitterWords []string // non-empty: dispatch the sentence splitter

	toneText string // non-empty: dispatch tone detection
}

func (s *speakerState) remaining() []string {
	full := make([]string, 0, len(s.finalWords)+len(s.liveWords))
	full = append(full, s.finalWords...)
	full = append(full, s.liveWords...)
	if s.confirmedWordCount >= len(full) {
		return nil
	}
	return full[s.confirmedWordCount:]
}

// endsSentence reports whether a token carries sentence-terminating
// punctuation.
func endsSentence(tok string) bool {
	if tok == "" {
		return false
	}
	switch tok[len(tok)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// nearDuplicate reports whether cur is the same snapshot as prev modulo at
// most 2 trailing characters appended to the last word (typically late
// punctuation or a case fixup mid-word).
func nearDuplicate(prev, cur string) bool {
	if prev == cur {
		return true
	}
	if prev == "" {
		return false
	}
	if len(cur) <= len(prev) || len(cur)-len(prev) > 2 {
		return false
	}
	tail := cur[len(prev):]
	return strings.HasPrefix(cur, prev) && !strings.Contains(tail, " ")
}

// apply folds one ASR update into the state machine.
func (s *speakerState) apply(words []asr.Word, punctCount, partialInterval int) actions {
	var acts actions
	if len(words) == 0 {
		return acts
	}
	acts.activity = true

	var finals, lives []string
	for _, w := range words {
		if w.Final {
			finals = append(finals, w.Text)
		} else {
			lives = append(lives, w.Text)
		}
	}
	s.finalWords = append(s.finalWords, finals...)
	s.liveWords = lives

	s.updateCount++
	s.updatesSinceSeal++

	remaining := s.remaining()
	remText := strings.Join(remaining, " ")
	acts.transcript = remText
	acts.emitTranscript = true

	// ASR revisions that only append a character or two to the last word are
	// noise; a shorter snapshot is a correction and always reprocesses.
	if nearDuplicate(s.lastProcessed, remText) {
		return acts
	}
	s.lastProcessed = remText
	if len(remaining) == 0 {
		return acts
	}

	marks := punctuationMarks(remaining)
	if len(marks) >= punctCount {
		boundary := marks[punctCount-1] + 1
		sentence := s.seal(boundary)
		acts.sealed = append(acts.sealed, sentence)
		acts.transcript = strings.Join(s.remaining(), " ")
	} else {
		if !s.firstPartialSent || s.updatesSinceSeal%partialInterval == 0 {
			s.firstPartialSent = true
			acts.partialText = remText
			acts.partialSeq = s.issuePartial(remText)
		}
		if len(remaining) > splitter.Threshold && len(marks) == 0 && !s.splitterBusy {
			s.splitterBusy = true
			s.splitterBase = s.confirmedWordCount
			acts.splitterWords = append([]string(nil), remaining...)
		}
	}

	acts.toneText = s.toneTextIfReady()
	return acts
}

func punctuationMarks(words []string) []int {
	var marks []int
	for i, w := range words {
		if endsSentence(w) {
			marks = append(marks, i)
		}
	}
	return marks
}

// seal commits the first n remaining words. The throttle resets and any
// in-flight partial becomes stale.
func (s *speakerState) seal(n int) string {
	remaining := s.remaining()
	if n > len(remaining) {
		n = len(remaining)
	}
	sentence := strings.Join(remaining[:n], " ")
	s.confirmedWordCount += n
	if s.confirmedSource != "" {
		s.confirmedSource += " "
	}
	s.confirmedSource += sentence
	s.partialStale = true
	s.lastPartialSource = ""
	s.updatesSinceSeal = 0
	return sentence
}

// sealRemaining is the silence auto-confirm: the whole tail is sealed as if
// punctuated. Returns false when there is nothing to seal.
func (s *speakerState) sealRemaining() (string, bool) {
	remaining := s.remaining()
	if len(remaining) == 0 {
		return "", false
	}
	sentence := s.seal(len(remaining))
	s.lastProcessed = ""
	return sentence, true
}

// applySplit applies a splitter proposal. The proposal is stale once the
// speaker sealed past the snapshot it was computed from.
func (s *speakerState) applySplit(boundaries []int) (string, bool) {
	s.splitterBusy = false
	if len(boundaries) == 0 {
		return "", false
	}
	if s.confirmedWordCount != s.splitterBase {
		return "", false
	}
	remaining := s.remaining()
	b := boundaries[0]
	if b <= 0 || b > len(remaining) {
		return "", false
	}
	return s.seal(b), true
}

// issuePartial assigns the next partial sequence number. Staleness holds
// while a confirmed translation is still in flight.
func (s *speakerState) issuePartial(text string) uint64 {
	s.partialSeq++
	s.latestPartialSeq = s.partialSeq
	if s.confirmedInFlight == 0 {
		s.partialStale = false
	}
	s.lastPartialSource = text
	return s.partialSeq
}

// acceptPartial decides whether a completed partial may surface.
func (s *speakerState) acceptPartial(seq uint64) bool {
	if seq < s.latestPartialSeq {
		return false
	}
	if s.partialStale {
		return false
	}
	return true
}

// trackConfirmed registers a sealed sentence for ordered delivery and
// returns its sequence number.
func (s *speakerState) trackConfirmed(sentence string) uint64 {
	seq := s.confirmNext
	s.confirmNext++
	s.confirmSource[seq] = sentence
	s.confirmedInFlight++
	return seq
}

// completeConfirmed records a finished confirmed translation and returns the
// messages now deliverable in seal order. Failed translations surface the
// source text with an inline marker so the stream never stalls.
func (s *speakerState) completeConfirmed(seq uint64, text string, failed bool) []Message {
	s.confirmedInFlight--
	if failed {
		text = s.confirmSource[seq] + " [untranslated]"
	}
	s.confirmReady[seq] = confirmOutcome{text: text, failed: failed}

	var msgs []Message
	for {
		out, ok := s.confirmReady[s.confirmEmit]
		if !ok {
			break
		}
		src := s.confirmSource[s.confirmEmit]
		delete(s.confirmReady, s.confirmEmit)
		delete(s.confirmSource, s.confirmEmit)
		s.confirmEmit++

		if s.confirmedTranslation != "" {
			s.confirmedTranslation += " "
		}
		s.confirmedTranslation += out.text
		if !out.failed {
			s.lastPair = translate.Pair{Source: src, Translation: out.text}
		}
		msgs = append(msgs, confirmedTranslation(s.id, out.text))
	}
	return msgs
}

// toneTextIfReady arms the one-shot tone detection once enough confirmed
// source has accumulated.
func (s *speakerState) toneTextIfReady() string {
	if s.toneTriggered || s.tone != tone.Unset {
		return ""
	}
	if len(strings.Fields(s.confirmedSource)) < tone.TriggerWordCount {
		return ""
	}
	s.toneTriggered = true
	return s.confirmedSource
}

// toneResult folds the detector outcome back in. An unclear classification
// re-arms the trigger; vendor errors leave tone unset for good.
func (s *speakerState) toneResult(label tone.Label, unclear bool, failed bool) {
	if failed {
		return
	}
	if unclear {
		s.toneTriggered = false
		return
	}
	if s.tone == tone.Unset {
		s.tone = label
	}
}
