package api

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oncoprint-server/internal/annotation"
	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/orchestrator"
	"github.com/oncoprint-server/internal/urlstate"
	"github.com/sirupsen/logrus"
)

// createPageRequest opens a page from a raw query string, a parameter map or a stored session
type createPageRequest struct {
	Query     string            `json:"query"`
	Params    map[string]string `json:"params"`
	SessionID string            `json:"sessionId"`
}

type updateQueryRequest struct {
	Set   map[string]string `json:"set"`
	Unset []string          `json:"unset"`
}

// controlRequest is one oncoprint control action. Only the fields the action reads are used.
type controlRequest struct {
	Action      string   `json:"action" binding:"required"`
	On          *bool    `json:"on"`
	Mode        string   `json:"mode"`
	Source      string   `json:"source"`
	Threshold   *int     `json:"threshold"`
	Tier        string   `json:"tier"`
	Value       string   `json:"value"`
	Zoom        *float64 `json:"zoom"`
	TrackKey    string   `json:"trackKey"`
	Direction   *int     `json:"direction"`
	AttributeID string   `json:"attributeId"`
}

type heatmapRequest struct {
	MolecularProfileID string   `json:"molecularProfileId"`
	Entities           []string `json:"entities"`
}

// respondView recomputes page and answers with its view merged into extra
func (s *Server) respondView(c *gin.Context, page *orchestrator.Oncoprint, status int, extra gin.H) {
	view, err := page.Recompute(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	body := gin.H{"view": view}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func (s *Server) handleCreatePage(c *gin.Context) {
	var req createPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, domain.ErrInvalidInput, err.Error())
		return
	}

	var q urlstate.Query
	switch {
	case req.SessionID != "":
		if s.deps.Sessions == nil {
			respondCode(c, http.StatusServiceUnavailable, domain.ErrServiceUnavailable, "session storage is not configured")
			return
		}
		sess, err := s.deps.Sessions.Get(c.Request.Context(), req.SessionID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		if sess == nil {
			respondCode(c, http.StatusNotFound, domain.ErrSessionNotFound, "session not found")
			return
		}
		q = urlstate.NewQuery(sess.Query)
	case req.Query != "":
		parsed, err := urlstate.ParseQuery(req.Query)
		if err != nil {
			s.respondError(c, domain.NewValidationError("query", err.Error(), req.Query))
			return
		}
		q = parsed
	default:
		q = urlstate.NewQuery(req.Params)
	}

	page := s.newPage(q)
	id := s.pages.Add(page)
	s.logger.WithFields(logrus.Fields{
		"page_id":    id,
		"session_id": req.SessionID,
	}).Info("Opened oncoprint page")

	s.respondView(c, page, http.StatusCreated, gin.H{"id": id})
}

// handleGetPage returns the page view. With wait=true it first waits for the upstream load
// to settle.
func (s *Server) handleGetPage(c *gin.Context) {
	page, ok := s.page(c)
	if !ok {
		return
	}
	if c.Query("wait") == "true" {
		if _, err := page.Recompute(c.Request.Context()); err != nil {
			s.respondError(c, err)
			return
		}
		if err := page.Wait(c.Request.Context()); err != nil {
			s.respondError(c, err)
			return
		}
	}
	s.respondView(c, page, http.StatusOK, gin.H{"id": c.Param("id"), "query": page.URLs().Query().Map()})
}

func (s *Server) handleDeletePage(c *gin.Context) {
	if !s.pages.Remove(c.Param("id")) {
		respondCode(c, http.StatusNotFound, domain.ErrPageNotFound, "page not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUpdateQuery(c *gin.Context) {
	page, ok := s.page(c)
	if !ok {
		return
	}
	var req updateQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, domain.ErrInvalidInput, err.Error())
		return
	}
	changed := page.URLs().UpdateRoute(req.Set, req.Unset...)
	s.respondView(c, page, http.StatusOK, gin.H{"changed": changed})
}

func (s *Server) handleControl(c *gin.Context) {
	page, ok := s.page(c)
	if !ok {
		return
	}
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, domain.ErrInvalidInput, err.Error())
		return
	}
	accepted, err := applyControl(page, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondView(c, page, http.StatusOK, gin.H{"accepted": accepted})
}

// applyControl performs one control action. It reports false when the page refused the
// change, e.g. enabling an errored annotation source.
func applyControl(page *orchestrator.Oncoprint, req controlRequest) (bool, error) {
	on := func() (bool, error) {
		if req.On == nil {
			return false, domain.NewValidationError("on", "is required for "+req.Action, nil)
		}
		return *req.On, nil
	}
	toggle := func(set func(bool)) (bool, error) {
		v, err := on()
		if err != nil {
			return false, err
		}
		set(v)
		return true, nil
	}

	switch req.Action {
	case "columnMode":
		return true, page.SetColumnMode(domain.ColumnMode(req.Mode))
	case "showUnaltered":
		return toggle(page.SetShowUnaltered)
	case "showWhitespace":
		return toggle(page.SetShowWhitespace)
	case "showClinicalTrackLegends":
		return toggle(page.SetShowClinicalTrackLegends)
	case "showMinimap":
		return toggle(page.SetShowMinimap)
	case "sortByData":
		page.SortByData()
	case "sortAlphabetically":
		page.SortAlphabetically()
	case "sortByCaseList":
		page.SortByCaseList()
	case "sortByMutationType":
		return toggle(page.SetSortByMutationType)
	case "sortByDrivers":
		return toggle(page.SetSortByDrivers)
	case "distinguishMutationType":
		return toggle(page.SetDistinguishMutationType)
	case "distinguishDrivers":
		return toggle(page.SetDistinguishDrivers)
	case "hideVUS":
		return toggle(page.SetHideVUS)
	case "annotationSource":
		v, err := on()
		if err != nil {
			return false, err
		}
		return page.SetAnnotationSource(annotation.Source(req.Source), v)
	case "countThreshold":
		if req.Threshold == nil {
			return false, domain.NewValidationError("threshold", "is required", nil)
		}
		return page.SetCountThreshold(annotation.Source(req.Source), *req.Threshold)
	case "driverTier":
		v, err := on()
		if err != nil {
			return false, err
		}
		page.SetDriverTier(req.Tier, v)
	case "selectHeatmapProfile":
		page.SelectHeatmapProfile(req.Value)
	case "heatmapGeneInput":
		page.SetHeatmapGeneInput(req.Value)
	case "selectClinicalTrack":
		return true, page.SelectClinicalTrack(req.AttributeID)
	case "deleteClinicalTrack":
		return true, page.DeleteClinicalTrack(req.AttributeID)
	case "zoomIn":
		page.ZoomIn()
	case "zoomOut":
		page.ZoomOut()
	case "horzZoom":
		if req.Zoom == nil {
			return false, domain.NewValidationError("zoom", "is required", nil)
		}
		page.SetHorzZoom(*req.Zoom)
	case "trackSortDirection":
		if req.Direction == nil {
			return false, domain.NewValidationError("direction", "is required", nil)
		}
		return true, page.SetTrackSortDirection(req.TrackKey, *req.Direction)
	default:
		return false, domain.NewValidationError("action", "unknown control action", req.Action)
	}
	return true, nil
}

func (s *Server) handleAddHeatmap(c *gin.Context) {
	page, ok := s.page(c)
	if !ok {
		return
	}
	var req heatmapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondCode(c, http.StatusBadRequest, domain.ErrInvalidInput, err.Error())
		return
	}
	if err := page.AddHeatmapTracks(req.MolecularProfileID, req.Entities); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondView(c, page, http.StatusOK, nil)
}

func (s *Server) handleRemoveHeatmapTrack(c *gin.Context) {
	page, ok := s.page(c)
	if !ok {
		return
	}
	if err := page.RemoveHeatmapTrack(c.Param("profile"), c.Param("entity")); err != nil {
		s.respondError(c, err)
		return
	}
	s.respondView(c, page, http.StatusOK, nil)
}

func (s *Server) handleClearHeatmap(c *gin.Context) {
	page, ok := s.page(c)
	if !ok {
		return
	}
	page.ClearHeatmap()
	s.respondView(c, page, http.StatusOK, nil)
}

func (s *Server) handleClusterHeatmap(c *gin.Context) {
	page, ok := s.page(c)
	if !ok {
		return
	}
	var req heatmapRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondCode(c, http.StatusBadRequest, domain.ErrInvalidInput, err.Error())
			return
		}
	}
	clustered := page.ClusterHeatmap(req.MolecularProfileID)
	s.respondView(c, page, http.StatusOK, gin.H{"clustered": clustered})
}

func (s *Server) handleProgress(c *gin.Context) {
	page, ok := s.page(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, page.Progress())
}

// handleDownload exports the committed oncoprint. The export is buffered so a failure can
// still be reported as JSON.
func (s *Server) handleDownload(c *gin.Context) {
	page, ok := s.page(c)
	if !ok {
		return
	}
	kind := orchestrator.DownloadType(c.Param("type"))
	var buf bytes.Buffer
	if err := page.Download(kind, &buf); err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+kind.Filename()+`"`)
	c.Data(http.StatusOK, kind.ContentType(), buf.Bytes())
}
