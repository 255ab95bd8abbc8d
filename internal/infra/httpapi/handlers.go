package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"station-assistant/internal/domain"
)

const maxBodyBytes = 64 * 1024

type commandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Builtin     bool   `json:"builtin"`
}

type voiceRequest struct {
	Text *string `json:"text"`
}

type voiceResponse struct {
	Status    domain.Status `json:"status"`
	Input     string        `json:"input"`
	Response  string        `json:"response"`
	Command   string        `json:"command,omitempty"`
	Timestamp string        `json:"timestamp"`
}

func (s *Server) timestamp() string {
	return s.now().Format(time.RFC3339)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.timestamp(),
		"version":   s.info.Version,
	})
}

func (s *Server) handleInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"app_name":    s.info.Name,
		"version":     s.info.Version,
		"environment": s.info.Environment,
		"timestamp":   s.timestamp(),
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.station.Status())
}

func (s *Server) handleConnect(c echo.Context) error {
	s.station.Connect(c.Request().Context())
	return c.JSON(http.StatusOK, s.station.Status())
}

func (s *Server) handleDisconnect(c echo.Context) error {
	s.station.Disconnect()
	return c.JSON(http.StatusOK, s.station.Status())
}

func (s *Server) handleListCommands(c echo.Context) error {
	var commands []commandInfo
	seen := make(map[string]bool)
	for _, cmd := range s.registry.Commands() {
		commands = append(commands, commandInfo{Name: cmd.Name, Description: cmd.Description})
		seen[cmd.Name] = true
	}
	for _, name := range domain.BuiltinCommands {
		if !seen[name] {
			commands = append(commands, commandInfo{Name: name, Builtin: true})
		}
	}
	return c.JSON(http.StatusOK, commands)
}

func (s *Server) handleCommand(c echo.Context) error {
	params := domain.Params{}
	if err := decodeBody(c, &params); err != nil {
		s.logger.Warn("invalid JSON in request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON format"})
	}

	res := s.station.Dispatch(c.Request().Context(), c.Param("name"), params)
	return c.JSON(statusCode(res), res)
}

func (s *Server) handleVoiceCommand(c echo.Context) error {
	var req voiceRequest
	if err := decodeBody(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON format"})
	}
	if req.Text == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing 'text' field"})
	}

	res := s.assistant.Resolve(c.Request().Context(), *req.Text)

	command, _ := res.Data["command"].(string)
	return c.JSON(http.StatusOK, voiceResponse{
		Status:    res.Status,
		Input:     *req.Text,
		Response:  res.Speech,
		Command:   command,
		Timestamp: s.timestamp(),
	})
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(c echo.Context, v any) error {
	err := json.NewDecoder(io.LimitReader(c.Request().Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func statusCode(res domain.Result) int {
	if res.OK() {
		return http.StatusOK
	}
	switch res.Code {
	case domain.KindValidationFailure:
		return http.StatusBadRequest
	case domain.KindUnknownCommand:
		return http.StatusNotFound
	case domain.KindNotConnected:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
