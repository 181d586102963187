package server

import (
	"errors"
	"log/slog"

	"devsnippet/internal/middleware"
	"devsnippet/internal/models"
	"devsnippet/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// FeedUpgrade rejects plain HTTP requests to the feed endpoint.
func (s *Server) FeedUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(models.ErrorResponse{
			Message: "WebSocket upgrade required",
		})
	}
	return c.Next()
}

// FeedHandler streams post events to the connected user.
func (s *Server) FeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(middleware.LocalUserID).(string)
		if userID == "" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"message":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, notifications.ErrUserFull) {
				level = slog.LevelInfo
			}
			middleware.Logger.Log(s.shutdownCtx, level, "feed connection refused",
				slog.String("user_id", userID), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
