package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the type of a control message on the socket.
type MessageType string

// Control message types. Binary frames carry raw audio in both directions:
// microphone chunks inbound between listening_start and listening_end,
// synthesized speech outbound between speaking_start and speaking_end.
const (
	MessageTypeListeningStart   MessageType = "listening_start"
	MessageTypeListeningEnd     MessageType = "listening_end"
	MessageTypeSpeakingStart    MessageType = "speaking_start"
	MessageTypeSpeakingEnd      MessageType = "speaking_end"
	MessageTypeCommandAck       MessageType = "command_ack"
	MessageTypeFrameRequest     MessageType = "frame_request"
	MessageTypeRecognizeRequest MessageType = "recognize_request"
	MessageTypeTrackRecognized  MessageType = "track_recognized"
	MessageTypeNoMatch          MessageType = "no_match"
	MessageTypeError            MessageType = "error"
)

// CaptureMode selects what happens to a finished capture.
type CaptureMode string

const (
	// ModeCommand runs the capture through the voice command pipeline.
	ModeCommand CaptureMode = "command"
	// ModeRecognize fingerprints the capture against the music catalogue.
	ModeRecognize CaptureMode = "recognize"
)

// BaseMessage is the envelope shared by every control message.
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// ListeningStartMessage opens a push-to-talk capture.
type ListeningStartMessage struct {
	BaseMessage
	Mode CaptureMode `json:"mode,omitempty"`
}

// CommandAckMessage reports the action a capture resolved to.
type CommandAckMessage struct {
	BaseMessage
	ClipID string `json:"clip_id"`
	Action string `json:"action"`
}

// FrameRequestMessage asks the device to capture a camera frame and submit
// it through the commands endpoint for the named action.
type FrameRequestMessage struct {
	BaseMessage
	Action string `json:"action"`
}

// SpeakingMessage brackets an outbound speech stream.
type SpeakingMessage struct {
	BaseMessage
	UtteranceID string `json:"utterance_id"`
}

// TrackRecognizedMessage reports a fingerprint match.
type TrackRecognizedMessage struct {
	BaseMessage
	TrackID  string   `json:"track_id"`
	Title    string   `json:"title"`
	Artists  []string `json:"artists,omitempty"`
	Album    string   `json:"album,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
}

// ErrorMessage reports a failure to the client.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// NewErrorMessage builds a standardized error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{BaseMessage: newBase(MessageTypeError), Code: code, Message: message}
}

// ParseControl decodes an inbound control message by its type field.
func ParseControl(data []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch base.Type {
	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening_start message: %w", err)
		}
		if msg.Mode == "" {
			msg.Mode = ModeCommand
		}
		if msg.Mode != ModeCommand && msg.Mode != ModeRecognize {
			return nil, fmt.Errorf("unknown capture mode: %s", msg.Mode)
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		var msg BaseMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening_end message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}
