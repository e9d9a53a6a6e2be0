package server

import (
	"context"
	"encoding/json"

	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"
)

// wsResult is the last text frame before the binary payload.
type wsResult struct {
	Done     bool   `json:"done"`
	MIME     string `json:"mime,omitempty"`
	Size     int    `json:"size,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Error    string `json:"error,omitempty"`
	Status   int    `json:"status,omitempty"`
}

func (s *Server) handleWebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).SendString("WebSocket upgrade required")
	}
	return websocket.New(s.handleWebSocket)(c)
}

// handleWebSocket reads one convertRequest, streams progress milestones
// as JSON text frames, then a wsResult frame and, on success, the output
// as a binary frame.
func (s *Server) handleWebSocket(conn *websocket.Conn) {
	defer conn.Close()

	send := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}
	fail := func(err error) {
		if werr := send(wsResult{Done: true, Error: err.Error(), Status: statusFor(err)}); werr != nil {
			log.Debug().Err(werr).Msg("websocket write failed")
		}
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		log.Debug().Err(err).Msg("websocket read failed")
		return
	}

	var body convertRequest
	if err := json.Unmarshal(msg, &body); err != nil {
		fail(fiber.NewError(fiber.StatusBadRequest, "invalid request: "+err.Error()))
		return
	}
	req, err := s.toRequest(body)
	if err != nil {
		fail(err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := s.convert(ctx, req, pipeline.WithReporter(wsProgress{send: send}))
	if err != nil {
		fail(err)
		return
	}

	if err := send(wsResult{Done: true, MIME: payloadMIME(res), Size: len(res.Data), Fallback: res.FellBack}); err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, res.Data); err != nil {
		log.Debug().Err(err).Msg("websocket write failed")
	}
}
