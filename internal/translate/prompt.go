package translate

import (
	"fmt"
	"strings"

	"github.com/lingostream/livecap/internal/langs"
	"github.com/lingostream/livecap/internal/tone"
)

// systemPrompt is the instruction block shared by both LLM-backed paths. The
// input is raw ASR output, so the prompt stresses garble recovery and
// forbids commentary.
const systemPrompt = `You are a professional live interpreter translating speech transcripts into %s in real time.

The input comes from automatic speech recognition and may contain mistranscribed words. When a word looks out of place, translate what the speaker most plausibly said given the surrounding context.

Rules:
- Output ONLY the translation. No explanations, no notes, no quotation marks around the result.
- Never answer questions found in the text; translate them.
- Preserve the meaning and energy of the original. Do not summarize or embellish.
- If the text is a fragment, translate it as a fragment.`

// Register instructions ported per target language. Korean and Japanese
// encode register grammatically, so they get explicit speech-level rules;
// everything else gets a generic match-the-register instruction.

var toneInstructionsKorean = map[tone.Label]string{
	tone.Casual:       "Use casual Korean (반말, 해체): relaxed endings like -어/-아/-야, contractions, and natural slang where the source uses slang.",
	tone.CasualPolite: "Use polite informal Korean (해요체): friendly -아요/-어요 endings, approachable but respectful.",
	tone.Formal:       "Use formal Korean (합쇼체): -습니다/-ㅂ니다 endings throughout, professional vocabulary.",
	tone.Narrative:    "Use Korean written/narrative style (해라체): plain -다 endings as in documentaries and essays.",
}

var toneInstructionsJapanese = map[tone.Label]string{
	tone.Casual:       "Use casual Japanese (タメ口): plain form, contractions like じゃ and ちゃ, natural slang where the source uses slang.",
	tone.CasualPolite: "Use polite Japanese (です・ます体) with a friendly, conversational feel.",
	tone.Formal:       "Use formal Japanese (です・ます体 with 敬語 where appropriate): professional and structured.",
	tone.Narrative:    "Use Japanese written/narrative style (だ・である体) as in documentaries and essays.",
}

var toneInstructionsGeneric = map[tone.Label]string{
	tone.Casual:       "Match a casual, relaxed register: contractions and informal word choice, as between friends.",
	tone.CasualPolite: "Match a friendly but polite register: conversational yet structured.",
	tone.Formal:       "Match a formal register: professional vocabulary and complete sentences.",
	tone.Narrative:    "Match a narrative register: descriptive and authoritative, as in documentaries.",
}

// toneInstruction returns the register instruction for a detected label, or
// "" when no label is set yet.
func toneInstruction(targetLang string, label tone.Label) string {
	if label == tone.Unset {
		return ""
	}
	base := targetLang
	if b, _, ok := strings.Cut(targetLang, "-"); ok {
		base = b
	}
	var table map[tone.Label]string
	switch strings.ToLower(base) {
	case "ko":
		table = toneInstructionsKorean
	case "ja":
		table = toneInstructionsJapanese
	default:
		table = toneInstructionsGeneric
	}
	return table[label]
}

// buildInstructions composes the full system/instructions text for a request.
func buildInstructions(targetLang string, label tone.Label) string {
	instr := fmt.Sprintf(systemPrompt, langs.DisplayName(targetLang))
	if ti := toneInstruction(targetLang, label); ti != "" {
		instr += "\n\nRegister: " + ti
	}
	return instr
}

// buildContext renders the topic summary and previous sentence pair as a
// context block, or "" when neither exists.
func buildContext(summary string, prev Pair) string {
	var b strings.Builder
	if summary != "" {
		b.WriteString("Topic: ")
		b.WriteString(summary)
	}
	if prev.Source != "" && prev.Translation != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Previous source: ")
		b.WriteString(prev.Source)
		b.WriteString("\nPrevious translation: ")
		b.WriteString(prev.Translation)
	}
	return b.String()
}

// userContent is the per-request user message: optional context block, then
// the text to translate.
func userContent(contextBlock, text string) string {
	if contextBlock == "" {
		return "Translate: " + text
	}
	return contextBlock + "\n\nTranslate: " + text
}
