package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/usecase"
)

type recordingNotifier struct {
	mu        sync.Mutex
	frames    []entities.ActionID
	recognize int
}

func (n *recordingNotifier) RequestFrame(action entities.ActionID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frames = append(n.frames, action)
}

func (n *recordingNotifier) RequestRecognize() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recognize++
}

type scriptedCapability struct {
	mu      sync.Mutex
	invokes []entities.CommandRequest
	result  entities.CapabilityResult
	faces   []entities.FaceProfile
}

func (c *scriptedCapability) Invoke(ctx context.Context, req entities.CommandRequest) (entities.CapabilityResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invokes = append(c.invokes, req)
	return c.result, nil
}

func (c *scriptedCapability) RegisterFace(ctx context.Context, image entities.ImageRef, profile entities.FaceProfile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faces = append(c.faces, profile)
	return nil
}

func (c *scriptedCapability) invokeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.invokes)
}

type instantSynth struct{}

func (instantSynth) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	ch := make(chan []byte, 1)
	ch <- []byte(text)
	close(ch)
	return ch, nil
}

type collectSink struct {
	mu     sync.Mutex
	frames []string
}

func (s *collectSink) SpeakingStarted(id string) {}

func (s *collectSink) WriteAudio(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, string(frame))
	return nil
}

func (s *collectSink) SpeakingFinished(id string) {}

func (s *collectSink) spoken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.frames, " ")
}

type handlerFixture struct {
	dispatcher *usecase.Dispatcher
	notifier   *recordingNotifier
	capability *scriptedCapability
	sink       *collectSink
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	notifier := &recordingNotifier{}
	capability := &scriptedCapability{result: entities.CapabilityResult{Action: entities.ActionMoney, Text: "two dollars"}}
	sink := &collectSink{}
	speaker := usecase.NewSpeaker(instantSynth{}, sink, logger)

	dispatcher := usecase.NewDispatcher(logger)
	registerHandlers(dispatcher, capability, notifier, speaker)
	return &handlerFixture{dispatcher: dispatcher, notifier: notifier, capability: capability, sink: sink}
}

func TestVisualActionWithoutFrameRequestsCapture(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.dispatcher.Dispatch(context.Background(), entities.CommandRequest{Action: entities.ActionText})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	f.notifier.mu.Lock()
	frames := append([]entities.ActionID(nil), f.notifier.frames...)
	f.notifier.mu.Unlock()
	if len(frames) != 1 || frames[0] != entities.ActionText {
		t.Fatalf("frame requests = %v, want [text]", frames)
	}
	// No frame means nothing to invoke yet.
	if n := f.capability.invokeCount(); n != 0 {
		t.Errorf("capability invoked %d times, want 0", n)
	}
}

func TestVisualActionWithFrameSpeaksResult(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.dispatcher.Dispatch(context.Background(), entities.CommandRequest{
		Action: entities.ActionMoney,
		Image:  entities.ImageRef{Name: "frame.jpg", Data: []byte{0xff}, MIMEType: "image/jpeg"},
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if n := f.capability.invokeCount(); n != 1 {
		t.Fatalf("capability invoked %d times, want 1", n)
	}

	deadline := time.Now().Add(time.Second)
	for !strings.Contains(f.sink.spoken(), "two dollars") {
		if time.Now().After(deadline) {
			t.Fatalf("result never spoken, sink = %q", f.sink.spoken())
		}
		time.Sleep(time.Millisecond)
	}

	f.notifier.mu.Lock()
	frames := len(f.notifier.frames)
	f.notifier.mu.Unlock()
	if frames != 0 {
		t.Errorf("frame requests = %d, want 0", frames)
	}
}

func TestMusicActionRequestsRecognition(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.dispatcher.Dispatch(context.Background(), entities.CommandRequest{Action: entities.ActionMusic})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	f.notifier.mu.Lock()
	recognize := f.notifier.recognize
	f.notifier.mu.Unlock()
	if recognize != 1 {
		t.Errorf("recognize requests = %d, want 1", recognize)
	}
	if n := f.capability.invokeCount(); n != 0 {
		t.Errorf("capability invoked %d times, want 0", n)
	}
}

func TestAddFaceWithoutProfileFails(t *testing.T) {
	f := newHandlerFixture(t)

	err := f.dispatcher.Dispatch(context.Background(), entities.CommandRequest{Action: entities.ActionAddFace})
	if !errors.Is(err, entities.ErrProfileIncomplete) {
		t.Fatalf("Dispatch() error = %v, want ErrProfileIncomplete", err)
	}
}
