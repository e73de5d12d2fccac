// Package asr normalizes the vendor speech-to-text streams to a uniform event
// shape consumed by the caption pipeline.
package asr

import (
	"errors"
	"sync/atomic"
)

// ErrMissingKey means the vendor credential was never configured. Callers
// treat it as fatal rather than retrying the connection.
var ErrMissingKey = errors.New("asr: api key missing")

// EventKind discriminates transcript updates from end-of-stream.
type EventKind int

const (
	// KindUpdate carries a transcript snapshot for one speaker.
	KindUpdate EventKind = iota
	// KindEOS signals the vendor stream ended; the pipeline should flush.
	KindEOS
)

// Word is a single ASR token. Final words are committed by the vendor and will
// not be revised; non-final words form the live tail and may change on the
// next update.
type Word struct {
	Text  string
	Final bool
}

// Event is one normalized ASR update.
type Event struct {
	Speaker string
	Words   []Word
	Kind    EventKind
}

// Adapter is the narrow capability both vendor adapters implement: feed audio
// in, read normalized events out.
type Adapter interface {
	// Events yields normalized transcript events. The channel is closed after
	// a KindEOS event once the vendor stream is gone.
	Events() <-chan Event
	// SendAudio forwards one PCM16LE 16kHz mono frame to the vendor.
	SendAudio(frame []byte) error
	Close() error
}

// eventChannelSize bounds the adapter-to-pipeline queue. Overflow drops the
// oldest event; the pipeline works on snapshots, so a newer update supersedes
// a dropped one.
const eventChannelSize = 64

// publisher is the bounded drop-oldest event queue shared by both adapters.
type publisher struct {
	ch      chan Event
	dropped atomic.Uint64
}

func newPublisher() *publisher {
	return &publisher{ch: make(chan Event, eventChannelSize)}
}

func (p *publisher) publish(ev Event) {
	select {
	case p.ch <- ev:
		return
	default:
	}
	// Full: evict the oldest entry and try once more.
	select {
	case <-p.ch:
		p.dropped.Add(1)
	default:
	}
	select {
	case p.ch <- ev:
	default:
		p.dropped.Add(1)
	}
}

func (p *publisher) events() <-chan Event { return p.ch }

func (p *publisher) droppedCount() uint64 { return p.dropped.Load() }
