package entities

import (
	"errors"
	"fmt"
)

// ErrProfileIncomplete reports a face registration missing required fields.
var ErrProfileIncomplete = errors.New("face profile incomplete")

// ImageRef points at a captured image submitted by the client.
type ImageRef struct {
	Name     string
	Data     []byte
	MIMEType string
}

// FaceProfile carries the auxiliary fields of a face registration.
type FaceProfile struct {
	Name         string `json:"name"`
	Hometown     string `json:"hometown"`
	Relationship string `json:"relationship"`
	DateOfBirth  string `json:"date_of_birth"`
}

// Validate checks the fields the registration collaborator requires.
func (p FaceProfile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrProfileIncomplete)
	}
	if p.Relationship == "" {
		return fmt.Errorf("%w: relationship is required", ErrProfileIncomplete)
	}
	return nil
}

// CommandRequest is one unit of work for the dispatcher. Payload is either an
// image capture or, for the music action, an audio clip. Transcribe carries
// the pipeline transcript for capabilities that want it (distance estimation).
type CommandRequest struct {
	Action     ActionID
	Image      ImageRef
	Clip       AudioClip
	Transcribe string
	Face       *FaceProfile
}

// CapabilityResult is what a capability handler speaks back to the user.
type CapabilityResult struct {
	Action ActionID
	Text   string
}
