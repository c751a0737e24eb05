package usecase

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
)

// confirmations is the spoken acknowledgement for each action, flushed ahead
// of any feedback still playing so the user hears what was understood.
var confirmations = map[entities.ActionID]string{
	entities.ActionText:     "Reading the text",
	entities.ActionMoney:    "Counting the money",
	entities.ActionItem:     "Describing what I see",
	entities.ActionProduct:  "Identifying the product",
	entities.ActionDistance: "Estimating the distance",
	entities.ActionFace:     "Looking for faces",
	entities.ActionAddFace:  "Registering a new face",
	entities.ActionMusic:    "Listening for music",
}

// VoiceCommandService runs the capture-to-dispatch pipeline: transcribe the
// clip, classify the intent, confirm it aloud and hand it to the dispatcher.
// Each capture gets a monotonically increasing run id; when a newer capture
// starts before an older one reaches dispatch, the older run is discarded.
type VoiceCommandService struct {
	stt        repositories.SpeechToText
	classifier repositories.IntentClassifier
	speaker    *Speaker
	dispatcher *Dispatcher
	logger     *zap.Logger

	runSeq uint64
	latest atomic.Uint64
}

// NewVoiceCommandService assembles the pipeline.
func NewVoiceCommandService(
	stt repositories.SpeechToText,
	classifier repositories.IntentClassifier,
	speaker *Speaker,
	dispatcher *Dispatcher,
	logger *zap.Logger,
) *VoiceCommandService {
	return &VoiceCommandService{
		stt:        stt,
		classifier: classifier,
		speaker:    speaker,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Process runs one capture through the pipeline. image rides along to the
// handler for actions that need a frame. The resolved action is returned so
// callers can reflect it in their own UI.
func (s *VoiceCommandService) Process(ctx context.Context, clip entities.AudioClip, image entities.ImageRef) (entities.ActionID, error) {
	runID := atomic.AddUint64(&s.runSeq, 1)
	s.latest.Store(runID)
	logger := s.logger.With(zap.Uint64("run_id", runID), zap.String("clip_id", clip.ID))

	transcript, err := s.stt.Transcribe(ctx, clip)
	if err != nil {
		logger.Error("transcription failed", zap.Error(err))
		if s.isLatest(runID) {
			// Detached from ctx: feedback outlives the request that
			// triggered it.
			s.speaker.PriorityFlush(context.WithoutCancel(ctx), Utterance{ID: clip.ID, Text: "Sorry, I did not catch that"})
		}
		return "", fmt.Errorf("transcribing command: %w", err)
	}

	// Classifier failures and off-vocabulary answers both fall back to the
	// default action rather than aborting the run.
	raw, err := s.classifier.Classify(ctx, transcript.Text)
	if err != nil {
		logger.Warn("intent classification failed, using default", zap.Error(err))
		raw = ""
	}
	action := entities.ParseAction(raw)
	logger.Info("command classified",
		zap.String("transcript", transcript.Text),
		zap.String("action", action.String()),
	)

	if !s.isLatest(runID) {
		logger.Debug("run superseded, discarding")
		return action, nil
	}

	req := entities.CommandRequest{
		Action:     action,
		Image:      image,
		Clip:       clip,
		Transcribe: transcript.Text,
	}

	// Dispatch rides on the confirmation's completion: if a newer capture
	// flushes the confirmation mid-utterance, this run never dispatches.
	// Detached from ctx because both outlive the triggering request.
	dispatchCtx := context.WithoutCancel(ctx)
	s.speaker.PriorityFlush(dispatchCtx, Utterance{
		ID:   clip.ID,
		Text: confirmations[action],
		OnDone: func() {
			if !s.isLatest(runID) {
				logger.Debug("run superseded after confirmation, discarding")
				return
			}
			if err := s.dispatcher.Dispatch(dispatchCtx, req); err != nil {
				logger.Error("dispatch failed", zap.String("action", action.String()), zap.Error(err))
				s.speaker.Say(dispatchCtx, Utterance{ID: clip.ID + "-err", Text: "Sorry, that did not work"})
			}
		},
	})
	return action, nil
}

func (s *VoiceCommandService) isLatest(runID uint64) bool {
	return s.latest.Load() == runID
}
