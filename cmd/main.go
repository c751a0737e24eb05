package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/adapters/capability"
	"github.com/lumenlabs/lumen/adapters/fingerprint"
	"github.com/lumenlabs/lumen/adapters/llm"
	"github.com/lumenlabs/lumen/adapters/spotify"
	"github.com/lumenlabs/lumen/adapters/stt"
	"github.com/lumenlabs/lumen/adapters/tts"
	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
	"github.com/lumenlabs/lumen/internal/api"
	"github.com/lumenlabs/lumen/internal/auth"
	"github.com/lumenlabs/lumen/internal/config"
	"github.com/lumenlabs/lumen/internal/websocket"
	"github.com/lumenlabs/lumen/repository"
	"github.com/lumenlabs/lumen/usecase"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("loading configuration", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Speech to text, selectable per deployment.
	var speechToText repositories.SpeechToText
	if cfg.STTProvider == "google" {
		speechToText = stt.NewGoogleSpeechToText(repositories.AudioConfig{
			SampleRate: cfg.STTSampleRate,
			Language:   cfg.STTLanguage,
		}, logger)
	} else {
		speechToText, err = stt.NewDeepgramSpeechToText(stt.DeepgramConfig{
			APIKey:   cfg.DeepgramAPIKey,
			BaseURL:  cfg.DeepgramBaseURL,
			Language: cfg.STTLanguage,
		}, logger)
		if err != nil {
			logger.Fatal("initializing speech to text", zap.Error(err))
		}
	}

	classifier, err := llm.NewGeminiClassifier(cfg.GeminiAPIKey, logger)
	if err != nil {
		logger.Fatal("initializing intent classifier", zap.Error(err))
	}

	textToSpeech, err := tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
		APIKey:  cfg.ElevenLabsAPIKey,
		VoiceID: cfg.ElevenLabsVoiceID,
	}, logger)
	if err != nil {
		logger.Fatal("initializing text to speech", zap.Error(err))
	}

	capabilities, err := capability.NewHTTPClient(cfg.CapabilityBaseURL, logger)
	if err != nil {
		logger.Fatal("initializing capability client", zap.Error(err))
	}

	fingerprinter, err := fingerprint.NewAuddClient(cfg.AuddAPIToken, "", logger)
	if err != nil {
		logger.Fatal("initializing fingerprint client", zap.Error(err))
	}

	transport, err := spotify.NewClient(spotify.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
	}, logger)
	if err != nil {
		logger.Fatal("initializing music transport", zap.Error(err))
	}

	tokenStore := config.NewFileTokenStore(cfg.TokenFile)
	playback, err := usecase.NewPlaybackSession(transport, tokenStore, logger)
	if err != nil {
		logger.Fatal("initializing playback session", zap.Error(err))
	}

	recognizer := usecase.NewMusicRecognizer(fingerprinter, playback, logger)

	dispatcher := usecase.NewDispatcher(logger)

	var hub *websocket.Hub
	// The hub is the audio sink for spoken feedback; the pipeline needs the
	// speaker, so wire the speaker through a late-bound sink.
	sink := &hubSink{}
	speaker := usecase.NewSpeaker(textToSpeech, sink, logger)

	pipeline := usecase.NewVoiceCommandService(speechToText, classifier, speaker, dispatcher, logger)
	hub = websocket.NewHub(pipeline, recognizer, cfg.AudioMIMEType, cfg.MaxCaptureDuration, logger)
	sink.hub = hub
	go hub.Run()

	registerHandlers(dispatcher, capabilities, hub, speaker)

	devices := repository.NewMemoryDeviceRepository()
	seedDevices(devices)

	tokens, err := auth.NewManager(cfg.JWTSecret, 0)
	if err != nil {
		logger.Fatal("initializing token manager", zap.Error(err))
	}

	server := api.NewServer(hub, devices, tokens, capabilities, playback, recognizer, speaker, logger)
	server.InitRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()
	logger.Info("server started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("server is shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}

// hubSink forwards speech frames to the hub once it exists.
type hubSink struct {
	hub *websocket.Hub
}

func (s *hubSink) SpeakingStarted(id string) {
	if s.hub != nil {
		s.hub.SpeakingStarted(id)
	}
}

func (s *hubSink) WriteAudio(frame []byte) error {
	if s.hub == nil {
		return nil
	}
	return s.hub.WriteAudio(frame)
}

func (s *hubSink) SpeakingFinished(id string) {
	if s.hub != nil {
		s.hub.SpeakingFinished(id)
	}
}

// deviceNotifier is the slice of the hub the handlers use to drive devices.
type deviceNotifier interface {
	RequestFrame(action entities.ActionID)
	RequestRecognize()
}

// registerHandlers binds every voice action to its execution path.
func registerHandlers(
	dispatcher *usecase.Dispatcher,
	capabilities repositories.CapabilityClient,
	devices deviceNotifier,
	speaker *usecase.Speaker,
) {
	visual := func(ctx context.Context, req entities.CommandRequest) error {
		if len(req.Image.Data) == 0 {
			// A voice dispatch carries no frame yet; the device answers the
			// request by submitting one through the commands endpoint.
			devices.RequestFrame(req.Action)
			return nil
		}
		result, err := capabilities.Invoke(ctx, req)
		if err != nil {
			return err
		}
		speaker.Say(ctx, usecase.Utterance{ID: uuid.NewString(), Text: result.Text})
		return nil
	}
	for _, action := range []entities.ActionID{
		entities.ActionText,
		entities.ActionMoney,
		entities.ActionItem,
		entities.ActionProduct,
		entities.ActionDistance,
		entities.ActionFace,
	} {
		dispatcher.Register(action, visual)
	}

	dispatcher.Register(entities.ActionAddFace, func(ctx context.Context, req entities.CommandRequest) error {
		if req.Face == nil {
			return entities.ErrProfileIncomplete
		}
		return capabilities.RegisterFace(ctx, req.Image, *req.Face)
	})

	// Hearing "music" opens a recognize-mode capture; starting or resuming
	// playback stays an explicit playback request.
	dispatcher.Register(entities.ActionMusic, func(ctx context.Context, req entities.CommandRequest) error {
		devices.RequestRecognize()
		return nil
	})
}

// seedDevices registers the device fleet from the environment. The format is
// serial:secret[:model] pairs separated by commas.
func seedDevices(devices *repository.MemoryDeviceRepository) {
	for _, entry := range strings.Split(os.Getenv("DEVICE_CREDENTIALS"), ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		model := "headset-v1"
		if len(parts) > 2 {
			model = parts[2]
		}
		devices.Register(parts[0], parts[1], model)
	}
}
