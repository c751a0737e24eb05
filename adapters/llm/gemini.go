package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/lumenlabs/lumen/domain/repositories"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultTimeoutSeconds = 30

	// classifierInstruction constrains the model to exactly one token from
	// the action vocabulary. Anything else is normalized downstream.
	classifierInstruction = `You route voice commands for an assistive vision app.
Given the transcribed request, answer with the single identifier of the best
matching action from this list and nothing else:

- 'text' - read printed or handwritten text aloud.
- 'money' - detect and total cash.
- 'item' - describe what is in front of the camera.
- 'product' - identify a product through its barcode.
- 'distance' - locate an object and estimate its distance.
- 'face' - recognize the face of a known person.
- 'add_face' - register the face of a relative or friend.
- 'music' - identify the song that is currently playing.

Rules:
- Answer with the identifier only, no other text.
- If the request is unclear or ambiguous, answer 'text'.
- If no identifier fits, answer 'text'.`
)

// GeminiClassifier implements the IntentClassifier interface using Google's
// Gemini API.
type GeminiClassifier struct {
	client  *genai.Client
	logger  *zap.Logger
	model   string
	timeout time.Duration
}

var _ repositories.IntentClassifier = (*GeminiClassifier)(nil)

// NewGeminiClassifier creates a new Gemini-backed classifier.
func NewGeminiClassifier(apiKey string, logger *zap.Logger) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClassifier{
		client:  client,
		logger:  logger,
		model:   defaultModel,
		timeout: defaultTimeoutSeconds * time.Second,
	}, nil
}

// Classify sends the fixed instruction plus the transcript and returns the
// raw model answer. Vocabulary validation happens in entities.ParseAction;
// callers absorb errors into the default action.
func (g *GeminiClassifier) Classify(ctx context.Context, transcript string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(classifierInstruction, genai.RoleUser),
		genai.NewContentFromText(transcript, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0.2)),
		MaxOutputTokens: 16,
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		g.logger.Warn("Intent classification call failed", zap.Error(err))
		return "", fmt.Errorf("failed to generate classification: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil ||
		len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("classifier returned no content")
	}

	var answer string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			answer += part.Text
		}
	}

	answer = strings.TrimSpace(answer)
	g.logger.Debug("Intent classified",
		zap.String("transcript", transcript),
		zap.String("answer", answer))

	return answer, nil
}
