package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
)

// actionEndpoints maps each visual action to its backend route.
var actionEndpoints = map[entities.ActionID]string{
	entities.ActionText:     "/document_recognition",
	entities.ActionMoney:    "/currency_detection",
	entities.ActionItem:     "/image_captioning",
	entities.ActionProduct:  "/product_recognition",
	entities.ActionDistance: "/distance_estimate",
	entities.ActionFace:     "/face_detection/recognize",
	entities.ActionAddFace:  "/face_detection/register",
}

// HTTPClient talks to the recognition backends over multipart POSTs.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.CapabilityClient = (*HTTPClient)(nil)

// capabilityResponse covers the union of fields the backends return; each
// action reads exactly one of them.
type capabilityResponse struct {
	Text        string `json:"text"`
	TotalMoney  string `json:"total_money"`
	Description string `json:"description"`
}

// NewHTTPClient creates a capability client rooted at baseURL.
func NewHTTPClient(baseURL string, logger *zap.Logger) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("capability base URL is required")
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}, nil
}

// Invoke submits the capture to the backend bound to req.Action and extracts
// the action-specific result field.
func (c *HTTPClient) Invoke(ctx context.Context, req entities.CommandRequest) (entities.CapabilityResult, error) {
	endpoint, ok := actionEndpoints[req.Action]
	if !ok {
		return entities.CapabilityResult{}, fmt.Errorf("no capability endpoint for action %q", req.Action)
	}

	target := c.baseURL + endpoint
	// Distance estimation wants the spoken request alongside the image.
	if req.Action == entities.ActionDistance && req.Transcribe != "" {
		target += "?transcribe=" + url.QueryEscape(req.Transcribe)
	}

	body, contentType, err := multipartImage(req.Image)
	if err != nil {
		return entities.CapabilityResult{}, err
	}

	respBody, err := c.post(ctx, target, body, contentType)
	if err != nil {
		return entities.CapabilityResult{}, err
	}

	var parsed capabilityResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return entities.CapabilityResult{}, fmt.Errorf("failed to parse capability response: %w", err)
	}

	text := resultField(req.Action, parsed)
	if text == "" {
		return entities.CapabilityResult{}, fmt.Errorf("%w: empty %s result", repositories.ErrHTTPError, req.Action)
	}

	c.logger.Info("Capability invoked",
		zap.String("action", req.Action.String()),
		zap.Int("resultChars", len(text)))

	return entities.CapabilityResult{Action: req.Action, Text: text}, nil
}

// RegisterFace submits a face registration with its auxiliary fields as
// query parameters.
func (c *HTTPClient) RegisterFace(ctx context.Context, image entities.ImageRef, profile entities.FaceProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid face profile: %w", err)
	}

	params := url.Values{}
	params.Set("name", profile.Name)
	params.Set("hometown", profile.Hometown)
	params.Set("relationship", profile.Relationship)
	params.Set("date_of_birth", profile.DateOfBirth)
	target := fmt.Sprintf("%s%s?%s", c.baseURL, actionEndpoints[entities.ActionAddFace], params.Encode())

	body, contentType, err := multipartImage(image)
	if err != nil {
		return err
	}

	if _, err := c.post(ctx, target, body, contentType); err != nil {
		return err
	}

	c.logger.Info("Face registered", zap.String("name", profile.Name))
	return nil
}

func (c *HTTPClient) post(ctx context.Context, target string, body *bytes.Buffer, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capability request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read capability response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Capability backend returned error status",
			zap.String("url", target),
			zap.Int("statusCode", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", repositories.ErrHTTPError, resp.StatusCode)
	}

	return respBody, nil
}

// multipartImage builds the single-file multipart body the backends expect.
func multipartImage(image entities.ImageRef) (*bytes.Buffer, string, error) {
	if len(image.Data) == 0 {
		return nil, "", fmt.Errorf("image payload is empty")
	}

	name := image.Name
	if name == "" {
		name = "capture.png"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write image payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// resultField picks the response field the action's backend populates.
func resultField(action entities.ActionID, resp capabilityResponse) string {
	switch action {
	case entities.ActionText:
		return resp.Text
	case entities.ActionMoney:
		return resp.TotalMoney
	default:
		return resp.Description
	}
}
