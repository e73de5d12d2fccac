package pipeline

// MessageType discriminates the JSON messages pushed to the client.
type MessageType string

const (
	TypeConfirmedTranscript  MessageType = "confirmed_transcript"
	TypePartialTranscript    MessageType = "partial_transcript"
	TypeConfirmedTranslation MessageType = "confirmed_translation"
	TypePartialTranslation   MessageType = "partial_translation"
	TypeError                MessageType = "error"
)

// Error kinds carried by TypeError messages.
const (
	ErrKindASRTransient     = "asr_transient"
	ErrKindASRFatal         = "asr_fatal"
	ErrKindTranslationFatal = "translation_fatal"
)

// Message is one outbound client message. Confirmed kinds are incremental
// (only the newly sealed/translated text); partial kinds are full snapshots
// of the unsealed tail.
type Message struct {
	Type    MessageType `json:"type"`
	Speaker string      `json:"speaker,omitempty"`
	Text    string      `json:"text,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

func confirmedTranscript(speaker, text string) Message {
	return Message{Type: TypeConfirmedTranscript, Speaker: speaker, Text: text}
}

func partialTranscript(speaker, text string) Message {
	return Message{Type: TypePartialTranscript, Speaker: speaker, Text: text}
}

func confirmedTranslation(speaker, text string) Message {
	return Message{Type: TypeConfirmedTranslation, Speaker: speaker, Text: text}
}

func partialTranslation(speaker, text string) Message {
	return Message{Type: TypePartialTranslation, Speaker: speaker, Text: text}
}

// ErrorMessage is exported so the HTTP layer can surface setup failures in
// the same shape the pipeline uses.
func ErrorMessage(kind, detail string) Message {
	return Message{Type: TypeError, Kind: kind, Detail: detail}
}
