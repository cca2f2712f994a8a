package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/session"
	"github.com/oncoprint-server/internal/urlstate"
	"github.com/sirupsen/logrus"
)

// createSessionRequest bookmarks either an open page or an explicit query
type createSessionRequest struct {
	PageID string            `json:"pageId"`
	Query  map[string]string `json:"query"`
}

func (s *Server) sessionsAvailable(c *gin.Context) bool {
	if s.deps.Sessions == nil {
		respondCode(c, http.StatusServiceUnavailable, domain.ErrServiceUnavailable, "session storage is not configured")
		return false
	}
	return true
}

// handleCreateSession stores the session properties of a page's URL under a new id
func (s *Server) handleCreateSession(c *gin.Context) {
	if !s.sessionsAvailable(c) {
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, domain.ErrInvalidInput, err.Error())
		return
	}

	var props map[string]string
	switch {
	case req.PageID != "":
		page, ok := s.pages.Get(req.PageID)
		if !ok {
			respondCode(c, http.StatusNotFound, domain.ErrPageNotFound, "page not found")
			return
		}
		props = page.URLs().SessionProps()
	case len(req.Query) > 0:
		props = urlstate.NewStore(urlstate.NewQuery(req.Query), urlstate.ResultsViewProperties, s.logger).SessionProps()
	default:
		s.respondError(c, domain.NewValidationError("pageId", "a page id or a query is required", nil))
		return
	}

	sess := &session.Session{Source: session.SourceMainSession, Query: props}
	if err := s.deps.Sessions.Save(c.Request.Context(), sess); err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"page_id":    req.PageID,
	}).Info("Saved session")

	c.JSON(http.StatusCreated, gin.H{
		"id":        sess.ID,
		"source":    sess.Source,
		"createdAt": sess.CreatedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	if !s.sessionsAvailable(c) {
		return
	}
	sess, err := s.deps.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if sess == nil {
		respondCode(c, http.StatusNotFound, domain.ErrSessionNotFound, "session not found")
		return
	}
	c.JSON(http.StatusOK, sess)
}

// handleExportSessions streams every stored session as one JSON document
func (s *Server) handleExportSessions(c *gin.Context) {
	if !s.sessionsAvailable(c) {
		return
	}
	var buf bytes.Buffer
	if err := s.deps.Sessions.ExportJSON(c.Request.Context(), &buf); err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="sessions.json"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", buf.Bytes())
}
