package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Yandex Dialogs webhook protocol, limited to the fields the skill needs.

const (
	aliceVersion  = "1.0"
	aliceMaxText  = 1024
	aliceGreeting = "Привет! Я управляю вашей станцией. Скажите «помощь», чтобы узнать, что я умею."
)

type aliceRequest struct {
	Request struct {
		Command           string `json:"command"`
		OriginalUtterance string `json:"original_utterance"`
	} `json:"request"`
	Session struct {
		New       bool   `json:"new"`
		SessionID string `json:"session_id"`
	} `json:"session"`
	Version string `json:"version"`
}

type aliceResponse struct {
	Response struct {
		Text       string `json:"text"`
		TTS        string `json:"tts"`
		EndSession bool   `json:"end_session"`
	} `json:"response"`
	Version string `json:"version"`
}

func (s *Server) handleAlice(c echo.Context) error {
	var req aliceRequest
	if err := decodeBody(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON format"})
	}

	text := req.Request.Command
	if text == "" {
		text = req.Request.OriginalUtterance
	}

	reply := aliceGreeting
	if text != "" {
		reply = s.assistant.Resolve(c.Request().Context(), text).Speech
	}

	var resp aliceResponse
	resp.Response.Text = truncate(reply, aliceMaxText)
	resp.Response.TTS = resp.Response.Text
	resp.Version = req.Version
	if resp.Version == "" {
		resp.Version = aliceVersion
	}

	s.logger.Info("alice request", "session_id", req.Session.SessionID, "new_session", req.Session.New, "text", text)
	return c.JSON(http.StatusOK, resp)
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
