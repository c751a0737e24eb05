package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
	"github.com/lumenlabs/lumen/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Devices authenticate with a token; origin is not meaningful for them.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Pipeline is the slice of the command service the hub needs.
type Pipeline interface {
	Process(ctx context.Context, clip entities.AudioClip, image entities.ImageRef) (entities.ActionID, error)
}

// Recognizer is the slice of the music recognizer the hub needs.
type Recognizer interface {
	Recognize(ctx context.Context, clip entities.AudioClip) (entities.TrackDescriptor, error)
}

// Hub maintains the set of connected devices and fans synthesized speech out
// to them. It implements usecase.AudioSink so the speaker can stream straight
// onto the sockets.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	pipeline   Pipeline
	recognizer Recognizer
	mimeType   string
	maxCapture time.Duration

	logger *zap.Logger
}

// NewHub creates a hub routing captures into pipeline and recognizer.
// maxCapture caps each push-to-talk hold; zero selects the recorder default.
func NewHub(pipeline Pipeline, recognizer Recognizer, mimeType string, maxCapture time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pipeline:   pipeline,
		recognizer: recognizer,
		mimeType:   mimeType,
		maxCapture: maxCapture,
		logger:     logger,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if previous, ok := h.clients[client.deviceID]; ok {
				close(previous.send)
			}
			h.clients[client.deviceID] = client
			h.mu.Unlock()
			h.logger.Info("device connected", zap.String("device_id", client.deviceID))

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.deviceID]; ok && current == client {
				delete(h.clients, client.deviceID)
				close(client.send)
			}
			h.mu.Unlock()
			client.recorder.Close()
			h.logger.Info("device disconnected", zap.String("device_id", client.deviceID))
		}
	}
}

// SpeakingStarted announces an outbound speech stream to every device.
func (h *Hub) SpeakingStarted(utteranceID string) {
	h.broadcastJSON(SpeakingMessage{BaseMessage: newBase(MessageTypeSpeakingStart), UtteranceID: utteranceID})
}

// WriteAudio forwards one synthesized frame to every device.
func (h *Hub) WriteAudio(frame []byte) error {
	h.broadcast(WriteData{Type: websocket.BinaryMessage, Payload: frame})
	return nil
}

// SpeakingFinished closes the speech stream.
func (h *Hub) SpeakingFinished(utteranceID string) {
	h.broadcastJSON(SpeakingMessage{BaseMessage: newBase(MessageTypeSpeakingEnd), UtteranceID: utteranceID})
}

// RequestFrame asks the connected devices to capture a camera frame and
// submit it for action through the commands endpoint.
func (h *Hub) RequestFrame(action entities.ActionID) {
	h.broadcastJSON(FrameRequestMessage{BaseMessage: newBase(MessageTypeFrameRequest), Action: action.String()})
}

// RequestRecognize asks the connected devices to open a recognize-mode
// capture so ambient music can be sampled.
func (h *Hub) RequestRecognize() {
	h.broadcastJSON(newBase(MessageTypeRecognizeRequest))
}

func (h *Hub) broadcastJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encoding broadcast failed", zap.Error(err))
		return
	}
	h.broadcast(WriteData{Type: websocket.TextMessage, Payload: payload})
}

func (h *Hub) broadcast(data WriteData) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("dropping frame for slow device", zap.String("device_id", client.deviceID))
		}
	}
}

// WriteData is one outbound websocket frame.
type WriteData struct {
	// Type is websocket.TextMessage or websocket.BinaryMessage.
	Type    int
	Payload []byte
}

// Client is a middleman between one device socket and the hub.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan WriteData
	deviceID string
	logger   *zap.Logger

	recorder *usecase.Recorder

	mu   sync.Mutex
	mode CaptureMode
}

// HandleWebSocket upgrades an authenticated request and starts the pumps.
// deviceID comes from the validated token, never from the client.
func HandleWebSocket(hub *Hub, c echo.Context, deviceID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}

	clientLogger := logger.With(zap.String("device_id", deviceID))
	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		deviceID: deviceID,
		logger:   clientLogger,
		recorder: usecase.NewRecorder(hub.mimeType, hub.maxCapture, clientLogger),
		mode:     ModeCommand,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
	go client.consumeClips()

	return nil
}

// readPump pumps messages from the websocket connection to the recorder.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.processControl(message)
		case websocket.BinaryMessage:
			c.recorder.Write(message)
		default:
			c.logger.Warn("unknown frame type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps outbound frames onto the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processControl handles inbound control messages.
func (c *Client) processControl(message []byte) {
	parsed, err := ParseControl(message)
	if err != nil {
		c.logger.Warn("bad control message", zap.Error(err))
		c.reply(NewErrorMessage("bad_message", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *ListeningStartMessage:
		started, err := c.recorder.Start()
		if err != nil {
			c.logger.Error("capture start failed", zap.Error(err))
			c.reply(NewErrorMessage("capture_unavailable", "audio capture unavailable"))
			return
		}
		// The mode is pinned when its capture begins; a listening_start
		// arriving mid-hold cannot re-route the clip in flight.
		if started {
			c.mu.Lock()
			c.mode = msg.Mode
			c.mu.Unlock()
		}
		c.reply(BaseMessage{Type: MessageTypeListeningStart, Timestamp: time.Now().Format(time.RFC3339)})

	case *BaseMessage:
		if msg.Type == MessageTypeListeningEnd {
			c.recorder.Stop()
			c.reply(BaseMessage{Type: MessageTypeListeningEnd, Timestamp: time.Now().Format(time.RFC3339)})
		}
	}
}

// consumeClips routes each finalized capture according to the mode pinned
// when its capture began.
func (c *Client) consumeClips() {
	for clip := range c.recorder.Clips() {
		c.mu.Lock()
		mode := c.mode
		c.mu.Unlock()

		switch mode {
		case ModeRecognize:
			c.handleRecognize(clip)
		default:
			c.handleCommand(clip)
		}
	}
}

func (c *Client) handleCommand(clip entities.AudioClip) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	action, err := c.hub.pipeline.Process(ctx, clip, entities.ImageRef{})
	if err != nil {
		c.reply(NewErrorMessage("command_failed", "could not process the command"))
		return
	}
	c.reply(CommandAckMessage{
		BaseMessage: newBase(MessageTypeCommandAck),
		ClipID:      clip.ID,
		Action:      action.String(),
	})
}

func (c *Client) handleRecognize(clip entities.AudioClip) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	track, err := c.hub.recognizer.Recognize(ctx, clip)
	if err != nil {
		if errors.Is(err, repositories.ErrNoMatch) {
			c.reply(BaseMessage{Type: MessageTypeNoMatch, Timestamp: time.Now().Format(time.RFC3339)})
			return
		}
		c.reply(NewErrorMessage("recognition_failed", "could not identify the music"))
		return
	}
	c.reply(TrackRecognizedMessage{
		BaseMessage: newBase(MessageTypeTrackRecognized),
		TrackID:     track.ID,
		Title:       track.Title,
		Artists:     track.Artists,
		Album:       track.Album.Name,
		ImageURL:    track.Album.ImageURL,
	})
}

func (c *Client) reply(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("encoding reply failed", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("reply dropped, send buffer full")
	}
}
