package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oncoprint-server/internal/middleware"
	"github.com/oncoprint-server/internal/orchestrator"
	"github.com/sirupsen/logrus"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

// streamMessage is one frame sent to a page stream
type streamMessage struct {
	Type     string                 `json:"type"`
	View     *orchestrator.View     `json:"view,omitempty"`
	Progress *orchestrator.Progress `json:"progress,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// handleStream upgrades to a websocket and sends the page view after every recompute the
// page asks for. The stream ends when the client disconnects or the page is closed.
func (s *Server) handleStream(c *gin.Context) {
	page, ok := s.page(c)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.logger.WithFields(logrus.Fields{
		"page_id":    c.Param("id"),
		"request_id": c.GetString(middleware.RequestIDKey),
	})
	log.Debug("Page stream opened")

	updates, unsubscribe := page.Subscribe()
	defer unsubscribe()

	// Client frames are ignored; reading detects the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ctx := c.Request.Context()
	send := func() bool {
		msg := streamMessage{Type: "view"}
		view, err := page.Recompute(ctx)
		if err != nil {
			msg = streamMessage{Type: "error", Error: err.Error()}
		} else {
			progress := page.Progress()
			msg.View, msg.Progress = view, &progress
		}
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.WithError(err).Debug("Page stream write failed")
			return false
		}
		return true
	}

	if !send() {
		return
	}
	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-done:
			log.Debug("Page stream closed by client")
			return
		case _, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "page closed"),
					time.Now().Add(streamWriteWait))
				return
			}
			if !send() {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}
