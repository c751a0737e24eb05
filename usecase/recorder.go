package usecase

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
)

// DefaultMaxRecordingDuration caps a single push-to-talk capture when no
// ceiling is supplied. A hold that runs past the cap finalizes as if the
// speaker had released.
const DefaultMaxRecordingDuration = 10 * time.Second

// ErrDeviceUnavailable reports that the recorder has been closed and cannot
// accept further captures.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

type recorderState int

const (
	recorderIdle recorderState = iota
	recorderRecording
	recorderFinalizing
	recorderClosed
)

// Recorder accumulates push-to-talk audio between Start and Stop. It is safe
// for concurrent use; chunks arriving outside an active capture are dropped.
type Recorder struct {
	mu         sync.Mutex
	state      recorderState
	buffer     []byte
	startedAt  time.Time
	ceiling    *time.Timer
	maxCapture time.Duration
	mimeType   string
	clips      chan entities.AudioClip
	logger     *zap.Logger
}

// NewRecorder returns an idle recorder capping each capture at maxCapture
// (DefaultMaxRecordingDuration when zero or negative). Finalized clips are
// delivered on Clips; the channel is buffered so finalization never blocks on
// a slow consumer.
func NewRecorder(mimeType string, maxCapture time.Duration, logger *zap.Logger) *Recorder {
	if maxCapture <= 0 {
		maxCapture = DefaultMaxRecordingDuration
	}
	return &Recorder{
		maxCapture: maxCapture,
		mimeType:   mimeType,
		clips:      make(chan entities.AudioClip, 4),
		logger:     logger,
	}
}

// Clips delivers each finalized capture exactly once.
func (r *Recorder) Clips() <-chan entities.AudioClip {
	return r.clips
}

// Start begins a capture and reports whether a new one actually began.
// Calling Start while already recording is a no-op: the capture in progress
// continues undisturbed and Start returns false.
func (r *Recorder) Start() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case recorderClosed:
		return false, ErrDeviceUnavailable
	case recorderRecording, recorderFinalizing:
		return false, nil
	}

	r.state = recorderRecording
	r.buffer = r.buffer[:0]
	r.startedAt = time.Now()
	r.ceiling = time.AfterFunc(r.maxCapture, r.onCeiling)
	r.logger.Debug("recording started")
	return true, nil
}

// Write appends an audio chunk to the capture in progress. Chunks received
// while idle or finalizing are discarded.
func (r *Recorder) Write(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != recorderRecording {
		return
	}
	r.buffer = append(r.buffer, chunk...)
}

// Stop finalizes the capture in progress. Stopping while idle is a no-op, so
// a release that races the duration ceiling resolves to a single clip.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalizeLocked()
}

// onCeiling fires when a capture reaches the configured ceiling.
func (r *Recorder) onCeiling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != recorderRecording {
		return
	}
	r.logger.Info("recording hit duration ceiling", zap.Duration("ceiling", r.maxCapture))
	r.finalizeLocked()
}

// finalizeLocked moves Recording -> Finalizing -> Idle and emits the clip.
// Callers must hold r.mu.
func (r *Recorder) finalizeLocked() {
	if r.state != recorderRecording {
		return
	}
	r.state = recorderFinalizing
	if r.ceiling != nil {
		r.ceiling.Stop()
		r.ceiling = nil
	}

	duration := time.Since(r.startedAt)
	data := make([]byte, len(r.buffer))
	copy(data, r.buffer)
	r.buffer = r.buffer[:0]

	clip := entities.NewAudioClip(data, duration, r.mimeType)
	select {
	case r.clips <- clip:
	default:
		r.logger.Warn("clip dropped, consumer not ready", zap.String("clip_id", clip.ID))
	}

	r.state = recorderIdle
	r.logger.Debug("recording finalized",
		zap.String("clip_id", clip.ID),
		zap.Duration("duration", duration),
		zap.Int("bytes", len(data)),
	)
}

// Close releases the recorder. Any capture in progress is finalized first;
// subsequent Start calls fail with ErrDeviceUnavailable.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == recorderClosed {
		return
	}
	r.finalizeLocked()
	r.state = recorderClosed
	close(r.clips)
}
