package repositories

import (
	"context"
	"errors"

	"github.com/lumenlabs/lumen/domain/entities"
)

// ErrHTTPError marks a non-2xx reply from a capability collaborator.
var ErrHTTPError = errors.New("capability returned an error status")

// CapabilityClient abstracts the per-action recognition backends (OCR,
// currency, captioning, barcode, distance, face). One narrow contract per
// call: multipart payload in, one action-specific text field out.
type CapabilityClient interface {
	// Invoke submits the capture to the backend bound to req.Action and
	// returns the spoken-result text for that action.
	Invoke(ctx context.Context, req entities.CommandRequest) (entities.CapabilityResult, error)

	// RegisterFace submits a face registration; success carries no payload
	// beyond confirmation.
	RegisterFace(ctx context.Context, image entities.ImageRef, profile entities.FaceProfile) error
}
