package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/repositories"
)

// AudioSink receives synthesized speech frames. The websocket layer
// implements it to forward audio to the connected client.
type AudioSink interface {
	SpeakingStarted(utteranceID string)
	WriteAudio(frame []byte) error
	SpeakingFinished(utteranceID string)
}

// Utterance is one piece of spoken feedback. OnDone, when set, runs exactly
// once after the utterance plays to completion; it never runs for an
// utterance that was flushed or replaced.
type Utterance struct {
	ID     string
	Text   string
	OnDone func()
}

// speaking tracks one streaming utterance so the owner can be identified
// after an interleaving flush.
type speaking struct {
	cancel context.CancelFunc
}

// Speaker serializes spoken feedback. At most one utterance streams at a
// time and at most one waits behind it; queueing a third replaces the
// waiting one. PriorityFlush discards both slots and speaks immediately.
type Speaker struct {
	mu      sync.Mutex
	tts     repositories.TextToSpeech
	sink    AudioSink
	current *speaking
	pending *Utterance
	logger  *zap.Logger
}

// NewSpeaker wires a text-to-speech backend to an audio sink.
func NewSpeaker(tts repositories.TextToSpeech, sink AudioSink, logger *zap.Logger) *Speaker {
	return &Speaker{tts: tts, sink: sink, logger: logger}
}

// Say queues an utterance. If one is already streaming, utt takes the single
// pending slot, replacing whatever was there.
func (s *Speaker) Say(ctx context.Context, utt Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		if s.pending != nil {
			s.logger.Debug("pending utterance replaced", zap.String("replaced", s.pending.ID))
		}
		s.pending = &utt
		return
	}
	s.startLocked(ctx, utt)
}

// PriorityFlush interrupts the utterance in flight, clears the pending slot
// and speaks utt immediately. Interrupted utterances never run their OnDone.
func (s *Speaker) PriorityFlush(ctx context.Context, utt Utterance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	if s.current != nil {
		s.current.cancel()
		s.current = nil
		s.logger.Debug("in-flight utterance flushed", zap.String("next", utt.ID))
	}
	s.startLocked(ctx, utt)
}

// startLocked begins streaming utt. Callers must hold s.mu.
func (s *Speaker) startLocked(ctx context.Context, utt Utterance) {
	speakCtx, cancel := context.WithCancel(ctx)
	sp := &speaking{cancel: cancel}
	s.current = sp
	go s.stream(speakCtx, sp, utt)
}

func (s *Speaker) stream(ctx context.Context, sp *speaking, utt Utterance) {
	completed := s.play(ctx, utt)

	s.mu.Lock()
	// Only release the slot if it is still ours; a flush may already have
	// installed a successor.
	var next *Utterance
	if s.current == sp {
		s.current = nil
		next = s.pending
		s.pending = nil
	}
	s.mu.Unlock()

	if completed && utt.OnDone != nil {
		utt.OnDone()
	}
	if next != nil {
		s.Say(context.WithoutCancel(ctx), *next)
	}
}

// play streams one utterance to the sink. It reports whether the utterance
// ran to natural completion.
func (s *Speaker) play(ctx context.Context, utt Utterance) bool {
	frames, err := s.tts.ConvertTextToSpeech(ctx, utt.Text)
	if err != nil {
		s.logger.Error("speech synthesis failed", zap.String("utterance", utt.ID), zap.Error(err))
		return false
	}

	s.sink.SpeakingStarted(utt.ID)
	defer s.sink.SpeakingFinished(utt.ID)

	for {
		select {
		case <-ctx.Done():
			return false
		case frame, ok := <-frames:
			if !ok {
				return ctx.Err() == nil
			}
			if err := s.sink.WriteAudio(frame); err != nil {
				s.logger.Warn("audio sink write failed", zap.Error(err))
				return false
			}
		}
	}
}
