package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
)

type fakePipeline struct {
	clips chan entities.AudioClip
}

func (f *fakePipeline) Process(ctx context.Context, clip entities.AudioClip, image entities.ImageRef) (entities.ActionID, error) {
	f.clips <- clip
	return entities.ActionText, nil
}

type fakeRecognizer struct {
	track entities.TrackDescriptor
	err   error
}

func (f *fakeRecognizer) Recognize(ctx context.Context, clip entities.AudioClip) (entities.TrackDescriptor, error) {
	if f.err != nil {
		return entities.TrackDescriptor{}, f.err
	}
	return f.track, nil
}

func dialTestHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	go hub.Run()

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(hub, c, "device-1", zaptest.NewLogger(t))
	})
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readControl(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("frame type = %d, want text", messageType)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decoding %q: %v", payload, err)
	}
	return msg
}

// awaitMessage reads control messages until one of the wanted type arrives.
func awaitMessage(t *testing.T, conn *websocket.Conn, wantType string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 5; i++ {
		msg := readControl(t, conn)
		if msg["type"] == wantType {
			return msg
		}
	}
	t.Fatalf("no %s message received", wantType)
	return nil
}

func TestPushToTalkCommandFlow(t *testing.T) {
	pipeline := &fakePipeline{clips: make(chan entities.AudioClip, 1)}
	hub := NewHub(pipeline, &fakeRecognizer{}, "audio/webm", 0, zaptest.NewLogger(t))
	conn := dialTestHub(t, hub)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"listening_start"}`)); err != nil {
		t.Fatalf("writing: %v", err)
	}
	if msg := readControl(t, conn); msg["type"] != "listening_start" {
		t.Fatalf("ack = %v", msg)
	}

	conn.WriteMessage(websocket.BinaryMessage, []byte("chunk-1"))
	conn.WriteMessage(websocket.BinaryMessage, []byte("chunk-2"))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"listening_end"}`))

	select {
	case clip := <-pipeline.clips:
		if string(clip.Data) != "chunk-1chunk-2" {
			t.Errorf("clip data = %q", clip.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline never received the capture")
	}

	// The listening_end ack and the command ack come from different
	// goroutines, so accept either order.
	got := map[string]map[string]interface{}{}
	for i := 0; i < 2; i++ {
		msg := readControl(t, conn)
		got[msg["type"].(string)] = msg
	}
	if _, ok := got["listening_end"]; !ok {
		t.Fatalf("no listening_end ack in %v", got)
	}
	ack, ok := got["command_ack"]
	if !ok || ack["action"] != "text" {
		t.Fatalf("command ack = %v", got)
	}
}

func TestRecognizeFlow(t *testing.T) {
	recognizer := &fakeRecognizer{track: entities.TrackDescriptor{
		ID:    "t1",
		Title: "Found Song",
	}}
	pipeline := &fakePipeline{clips: make(chan entities.AudioClip, 1)}
	hub := NewHub(pipeline, recognizer, "audio/webm", 0, zaptest.NewLogger(t))
	conn := dialTestHub(t, hub)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"listening_start","mode":"recognize"}`))
	readControl(t, conn)
	conn.WriteMessage(websocket.BinaryMessage, []byte("humming"))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"listening_end"}`))

	msg := awaitMessage(t, conn, "track_recognized")
	if msg["title"] != "Found Song" {
		t.Fatalf("message = %v", msg)
	}
}

func TestRecognizeNoMatch(t *testing.T) {
	pipeline := &fakePipeline{clips: make(chan entities.AudioClip, 1)}
	hub := NewHub(pipeline, &fakeRecognizer{err: repositories.ErrNoMatch}, "audio/webm", 0, zaptest.NewLogger(t))
	conn := dialTestHub(t, hub)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"listening_start","mode":"recognize"}`))
	readControl(t, conn)
	conn.WriteMessage(websocket.BinaryMessage, []byte("silence"))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"listening_end"}`))

	awaitMessage(t, conn, "no_match")
}

func TestHubBroadcastsSpeech(t *testing.T) {
	pipeline := &fakePipeline{clips: make(chan entities.AudioClip, 1)}
	hub := NewHub(pipeline, &fakeRecognizer{}, "audio/webm", 0, zaptest.NewLogger(t))
	conn := dialTestHub(t, hub)

	// Registration races the dial; wait until the hub sees the client.
	deadline := time.Now().Add(time.Second)
	for {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	hub.SpeakingStarted("u1")
	hub.WriteAudio([]byte("pcm-frame"))
	hub.SpeakingFinished("u1")

	if msg := readControl(t, conn); msg["type"] != "speaking_start" || msg["utterance_id"] != "u1" {
		t.Fatalf("message = %v", msg)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frameType, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	if frameType != websocket.BinaryMessage || string(payload) != "pcm-frame" {
		t.Fatalf("frame = %d %q", frameType, payload)
	}

	if msg := readControl(t, conn); msg["type"] != "speaking_end" {
		t.Fatalf("message = %v", msg)
	}
}

func TestModeChangeMidCaptureDoesNotReroute(t *testing.T) {
	recognizer := &fakeRecognizer{track: entities.TrackDescriptor{ID: "t1", Title: "Pinned Song"}}
	pipeline := &fakePipeline{clips: make(chan entities.AudioClip, 1)}
	hub := NewHub(pipeline, recognizer, "audio/webm", 0, zaptest.NewLogger(t))
	conn := dialTestHub(t, hub)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"listening_start","mode":"recognize"}`))
	readControl(t, conn)
	conn.WriteMessage(websocket.BinaryMessage, []byte("humming"))
	// A second press mid-hold must not re-route the capture in flight.
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"listening_start","mode":"command"}`))
	readControl(t, conn)
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"listening_end"}`))

	msg := awaitMessage(t, conn, "track_recognized")
	if msg["title"] != "Pinned Song" {
		t.Fatalf("message = %v", msg)
	}
	select {
	case clip := <-pipeline.clips:
		t.Fatalf("capture misrouted into the command pipeline: %v", clip.ID)
	default:
	}
}

func TestHubBroadcastsDeviceRequests(t *testing.T) {
	pipeline := &fakePipeline{clips: make(chan entities.AudioClip, 1)}
	hub := NewHub(pipeline, &fakeRecognizer{}, "audio/webm", 0, zaptest.NewLogger(t))
	conn := dialTestHub(t, hub)

	deadline := time.Now().Add(time.Second)
	for {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	hub.RequestFrame(entities.ActionMoney)
	hub.RequestRecognize()

	msg := awaitMessage(t, conn, "frame_request")
	if msg["action"] != "money" {
		t.Fatalf("frame request = %v", msg)
	}
	awaitMessage(t, conn, "recognize_request")
}

func TestUnknownControlMessage(t *testing.T) {
	pipeline := &fakePipeline{clips: make(chan entities.AudioClip, 1)}
	hub := NewHub(pipeline, &fakeRecognizer{}, "audio/webm", 0, zaptest.NewLogger(t))
	conn := dialTestHub(t, hub)

	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`))
	if msg := readControl(t, conn); msg["type"] != "error" {
		t.Fatalf("message = %v", msg)
	}
}
