package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
	"github.com/lumenlabs/lumen/domain/repositories"
	"github.com/lumenlabs/lumen/internal/auth"
	"github.com/lumenlabs/lumen/internal/websocket"
	"github.com/lumenlabs/lumen/repository"
	"github.com/lumenlabs/lumen/usecase"
)

// Server binds the HTTP surface to the assistant's services.
type Server struct {
	hub        *websocket.Hub
	devices    repository.DeviceRepository
	tokens     *auth.Manager
	capability repositories.CapabilityClient
	playback   *usecase.PlaybackSession
	recognizer *usecase.MusicRecognizer
	speaker    *usecase.Speaker
	logger     *zap.Logger
}

// NewServer assembles the HTTP layer.
func NewServer(
	hub *websocket.Hub,
	devices repository.DeviceRepository,
	tokens *auth.Manager,
	capability repositories.CapabilityClient,
	playback *usecase.PlaybackSession,
	recognizer *usecase.MusicRecognizer,
	speaker *usecase.Speaker,
	logger *zap.Logger,
) *Server {
	return &Server{
		hub:        hub,
		devices:    devices,
		tokens:     tokens,
		capability: capability,
		playback:   playback,
		recognizer: recognizer,
		speaker:    speaker,
		logger:     logger,
	}
}

// InitRoutes initializes all API routes.
func (s *Server) InitRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "lumen-server",
		})
	})

	v1 := e.Group("/api/v1")
	v1.POST("/device/auth", s.deviceAuth)

	protected := v1.Group("", s.requireToken)
	protected.POST("/commands", s.invokeCommand)
	protected.POST("/faces", s.registerFace)

	playback := protected.Group("/playback")
	playback.POST("/play", s.play)
	playback.POST("/resume", s.resume)
	playback.POST("/pause", s.pause)
	playback.POST("/next", s.next)
	playback.POST("/previous", s.previous)
	playback.GET("/current", s.currentTrack)
	playback.GET("/devices", s.playbackDevices)
	playback.POST("/device", s.pinDevice)
	playback.GET("/search", s.searchTracks)

	protected.GET("/music/search", s.searchTracks)
	protected.POST("/music/recognize", s.recognizeMusic)

	e.GET("/ws", s.websocketWithAuth)
}

func (s *Server) deviceAuth(c echo.Context) error {
	var req DeviceAuthRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Error("binding device auth request failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	device, err := s.devices.ValidateDevice(req.SerialNumber, req.SecretKey)
	if err != nil {
		s.logger.Warn("device authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	token, err := s.tokens.GenerateDeviceToken(device.ID)
	if err != nil {
		s.logger.Error("token generation failed", zap.String("device_id", device.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	s.logger.Info("device authenticated",
		zap.String("device_id", device.ID),
		zap.String("serial_number", device.SerialNumber))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		DeviceID:  device.ID,
	})
}

// requireToken guards the device-facing API with a bearer token.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "missing_token",
				Message: "Bearer token is required",
			})
		}
		claims, err := s.tokens.ValidateToken(token)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "invalid_token",
				Message: "Invalid or expired token",
			})
		}
		c.Set("device_id", claims.DeviceID)
		return next(c)
	}
}

// invokeCommand runs one visual capability against an uploaded frame.
func (s *Server) invokeCommand(c echo.Context) error {
	action := entities.ActionID(c.FormValue("action"))
	if !action.IsValid() {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unknown_action",
			Message: "Unrecognized action identifier",
		})
	}
	if action == entities.ActionAddFace {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "wrong_endpoint",
			Message: "Face registration uses the faces endpoint",
		})
	}

	image, err := formImage(c, "image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_image",
			Message: "An image capture is required",
		})
	}

	result, err := s.capability.Invoke(c.Request().Context(), entities.CommandRequest{
		Action:     action,
		Image:      image,
		Transcribe: c.FormValue("transcribe"),
	})
	if err != nil {
		s.logger.Error("capability invocation failed",
			zap.String("action", action.String()),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "capability_failed",
			Message: "The capability service did not respond",
		})
	}

	if result.Text != "" {
		// Detached from the request: the spoken answer outlives this
		// round trip.
		s.speaker.Say(context.WithoutCancel(c.Request().Context()), usecase.Utterance{
			ID:   uuid.NewString(),
			Text: result.Text,
		})
	}

	return c.JSON(http.StatusOK, CommandResponse{
		Action: result.Action.String(),
		Result: result.Text,
	})
}

// registerFace enrolls a face with its profile.
func (s *Server) registerFace(c echo.Context) error {
	profile := entities.FaceProfile{
		Name:         c.FormValue("name"),
		Hometown:     c.FormValue("hometown"),
		Relationship: c.FormValue("relationship"),
		DateOfBirth:  c.FormValue("date_of_birth"),
	}
	if err := profile.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_profile",
			Message: err.Error(),
		})
	}

	image, err := formImage(c, "image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_image",
			Message: "A face image is required",
		})
	}

	if err := s.capability.RegisterFace(c.Request().Context(), image, profile); err != nil {
		s.logger.Error("face registration failed", zap.String("name", profile.Name), zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "registration_failed",
			Message: "The capability service did not accept the registration",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "registered"})
}

// play starts a searched track, or resumes the remembered one when the
// request carries no query.
func (s *Server) play(c echo.Context) error {
	var req PlayRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	ctx := c.Request().Context()
	if req.Query == "" {
		if err := s.playback.Resume(ctx); err != nil {
			return s.playbackError(c, err)
		}
	} else {
		tracks, err := s.playback.Search(ctx, req.Query, 1)
		if err != nil {
			return s.playbackError(c, err)
		}
		if len(tracks) == 0 {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "no_results",
				Message: "Nothing in the catalogue matched",
			})
		}
		if err := s.playback.PlayTrack(ctx, tracks[0]); err != nil {
			return s.playbackError(c, err)
		}
	}

	track, playing := s.playback.CurrentTrack()
	return c.JSON(http.StatusOK, trackResponse(track, playing))
}

func (s *Server) resume(c echo.Context) error {
	if err := s.playback.Resume(c.Request().Context()); err != nil {
		return s.playbackError(c, err)
	}
	track, playing := s.playback.CurrentTrack()
	return c.JSON(http.StatusOK, trackResponse(track, playing))
}

func (s *Server) pause(c echo.Context) error {
	if err := s.playback.Pause(c.Request().Context()); err != nil {
		return s.playbackError(c, err)
	}
	track, playing := s.playback.CurrentTrack()
	return c.JSON(http.StatusOK, trackResponse(track, playing))
}

func (s *Server) next(c echo.Context) error {
	if err := s.playback.Next(c.Request().Context()); err != nil {
		return s.playbackError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) previous(c echo.Context) error {
	if err := s.playback.Previous(c.Request().Context()); err != nil {
		return s.playbackError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) currentTrack(c echo.Context) error {
	track, playing := s.playback.CurrentTrack()
	if track.ID == "" {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "no_track",
			Message: "Nothing has been played or recognized yet",
		})
	}
	return c.JSON(http.StatusOK, trackResponse(track, playing))
}

func (s *Server) playbackDevices(c echo.Context) error {
	devices, err := s.playback.Devices(c.Request().Context())
	if err != nil {
		return s.playbackError(c, err)
	}
	resp := DeviceListResponse{Devices: make([]PlaybackDeviceResponse, 0, len(devices))}
	for _, d := range devices {
		resp.Devices = append(resp.Devices, PlaybackDeviceResponse{
			ID:       d.ID,
			Name:     d.Name,
			Type:     d.Type,
			IsActive: d.IsActive,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) pinDevice(c echo.Context) error {
	var req PinDeviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	s.playback.PinDevice(req.DeviceID)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) searchTracks(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_query",
			Message: "Query parameter q is required",
		})
	}
	tracks, err := s.playback.Search(c.Request().Context(), query, 10)
	if err != nil {
		return s.playbackError(c, err)
	}
	resp := make([]TrackResponse, 0, len(tracks))
	for _, track := range tracks {
		resp = append(resp, trackResponse(track, false))
	}
	return c.JSON(http.StatusOK, resp)
}

// recognizeMusic fingerprints an uploaded audio sample.
func (s *Server) recognizeMusic(c echo.Context) error {
	file, err := c.FormFile("audio")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_audio",
			Message: "An audio sample is required",
		})
	}
	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unreadable_audio",
			Message: "Could not read the audio sample",
		})
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "unreadable_audio",
			Message: "Could not read the audio sample",
		})
	}

	clip := entities.NewAudioClip(data, 0, file.Header.Get("Content-Type"))
	track, err := s.recognizer.Recognize(c.Request().Context(), clip)
	if err != nil {
		if errors.Is(err, repositories.ErrNoMatch) {
			return c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "no_match",
				Message: "No track matched the sample",
			})
		}
		s.logger.Error("music recognition failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "recognition_failed",
			Message: "The recognition service did not respond",
		})
	}
	return c.JSON(http.StatusOK, trackResponse(track, false))
}

// websocketWithAuth upgrades authenticated devices to the audio socket.
func (s *Server) websocketWithAuth(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		// Browsers cannot set headers on websocket dials; accept the token
		// as a query parameter there.
		token = c.QueryParam("token")
	}
	if token == "" {
		s.logger.Warn("websocket rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "A device token is required",
		})
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		s.logger.Warn("websocket rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired token",
		})
	}
	if claims.DeviceID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Device ID not found in token",
		})
	}

	return websocket.HandleWebSocket(s.hub, c, claims.DeviceID, s.logger)
}

func (s *Server) playbackError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrNoTrack):
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "no_track",
			Message: "Nothing to play yet",
		})
	case errors.Is(err, repositories.ErrNoDeviceAvailable):
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "no_device",
			Message: "No playback device is available",
		})
	case errors.Is(err, usecase.ErrAuthFailed):
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "provider_auth_failed",
			Message: "The music provider rejected our credentials",
		})
	default:
		s.logger.Error("playback request failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "playback_failed",
			Message: "The music provider did not respond",
		})
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func formImage(c echo.Context, field string) (entities.ImageRef, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return entities.ImageRef{}, err
	}
	src, err := file.Open()
	if err != nil {
		return entities.ImageRef{}, err
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return entities.ImageRef{}, err
	}
	return entities.ImageRef{
		Name:     file.Filename,
		Data:     data,
		MIMEType: file.Header.Get("Content-Type"),
	}, nil
}
