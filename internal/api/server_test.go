package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/middleware"
	"github.com/oncoprint-server/internal/portaltest"
	"github.com/oncoprint-server/internal/session"
	"github.com/oncoprint-server/internal/store"
	"github.com/oncoprint-server/pkg/external"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseQuery = "cancer_study_list=acc_tcga&gene_list=TP53"

type jsonBody map[string]interface{}

// staticConfig serves a fixed configuration
type staticConfig struct {
	cfg *domain.Config
}

func (s staticConfig) GetConfig() *domain.Config                 { return s.cfg }
func (s staticConfig) GetDatabaseConfig() *domain.DatabaseConfig { return &s.cfg.Database }
func (s staticConfig) GetPortalConfig() *domain.PortalConfig     { return &s.cfg.Portal }
func (s staticConfig) GetServerConfig() *domain.ServerConfig     { return &s.cfg.Server }
func (s staticConfig) Reload() error                             { return nil }
func (s staticConfig) Validate() error                           { return nil }
func (s staticConfig) GetDatabaseConnectionString() string       { return "" }
func (s staticConfig) GetRedisConnectionString() string          { return "" }
func (s staticConfig) IsProduction() bool                        { return false }
func (s staticConfig) IsDevelopment() bool                       { return true }

func testConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{WriteTimeout: 10 * time.Second},
		Oncoprint: domain.OncoprintConfig{
			MRNAZScoreThreshold:    2,
			ProteinZScoreThreshold: 2,
			MaxPages:               2,
		},
		Annotation: domain.AnnotationConfig{CBioPortalCountThreshold: 10, COSMICCountThreshold: 10},
		Logging:    domain.LoggingConfig{Level: "info"},
	}
}

func newTestServer(t *testing.T, sessions session.Store) *Server {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s, err := NewServer(staticConfig{cfg: testConfig()}, Dependencies{
		Portal:     portaltest.NewFixture(),
		Annotators: store.Annotators{},
		Sessions:   sessions,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(s.pages.Close)
	return s
}

func newSQLiteSessions(t *testing.T) session.Store {
	t.Helper()
	sessions, err := session.NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })
	return sessions
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

type trackJSON struct {
	Key  string `json:"key"`
	Info string `json:"info"`
}

type pageJSON struct {
	ID        string `json:"id"`
	Accepted  bool   `json:"accepted"`
	Clustered bool   `json:"clustered"`
	Changed   bool   `json:"changed"`
	View      struct {
		Phase         string `json:"phase"`
		ColumnMode    string `json:"columnMode"`
		GeneticTracks struct {
			Status string      `json:"status"`
			Value  []trackJSON `json:"value"`
		} `json:"geneticTracks"`
		HeatmapTracks struct {
			Status string      `json:"status"`
			Value  []trackJSON `json:"value"`
		} `json:"heatmapTracks"`
		ClinicalTracks struct {
			Value []trackJSON `json:"value"`
		} `json:"clinicalTracks"`
		Controls struct {
			HeatmapGeneInput string `json:"heatmapGeneInputValue"`
			Unselected       []struct {
				ID string `json:"clinicalAttributeId"`
			} `json:"unselectedClinicalAttributes"`
		} `json:"controls"`
		SortMode struct {
			Type string `json:"type"`
		} `json:"sortMode"`
		AlteredKeys []string `json:"alteredKeys"`
		HiddenIDs   []string `json:"hiddenIds"`
	} `json:"view"`
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) pageJSON {
	t.Helper()
	var out pageJSON
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) domain.OncoprintError {
	t.Helper()
	var out domain.OncoprintError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// openPage creates a page for baseQuery and waits until its data is loaded
func openPage(t *testing.T, s *Server) string {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/v1/pages", jsonBody{"query": baseQuery})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decodePage(t, w).ID
	require.NotEmpty(t, id)

	w = do(t, s, http.MethodGet, "/api/v1/pages/"+id+"?wait=true", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return id
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(0), body["pages"])
	assert.Equal(t, false, body["sessions"])
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestHealth_WithCache(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cache, err := external.NewTieredCache(external.TieredCacheConfig{MemoryEntries: 8}, nil, logger)
	require.NoError(t, err)
	s, err := NewServer(staticConfig{cfg: testConfig()}, Dependencies{
		Portal: portaltest.NewFixture(),
		Cache:  cache,
	}, logger)
	require.NoError(t, err)

	w := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status string `json:"status"`
		Cache  struct {
			Healthy bool                `json:"healthy"`
			Stats   external.CacheStats `json:"stats"`
		} `json:"cache"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.True(t, body.Cache.Healthy)

	w = do(t, s, http.MethodDelete, "/api/v1/cache", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHealth_Breakers(t *testing.T) {
	logger, _ := test.NewNullLogger()
	breakers := external.NewResilientAnnotator(nil, nil, nil, external.DefaultCircuitBreakerConfig(), logger)
	s, err := NewServer(staticConfig{cfg: testConfig()}, Dependencies{
		Portal:   portaltest.NewFixture(),
		Breakers: breakers,
	}, logger)
	require.NoError(t, err)

	w := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Annotation map[string]struct {
			State    string `json:"state"`
			Requests uint32 `json:"requests"`
		} `json:"annotation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Annotation, 3)
	assert.Equal(t, "closed", body.Annotation["oncokb"].State)
	assert.Zero(t, body.Annotation["cosmic"].Requests)
}

func TestPages_CreateAndGet(t *testing.T) {
	s := newTestServer(t, nil)
	id := openPage(t, s)

	w := do(t, s, http.MethodGet, "/api/v1/pages/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decodePage(t, w)
	assert.Equal(t, "ready", page.View.Phase)
	assert.Equal(t, "complete", page.View.GeneticTracks.Status)
	require.Len(t, page.View.GeneticTracks.Value, 1)
	assert.Equal(t, "GENETICTRACK_0", page.View.GeneticTracks.Value[0].Key)
	assert.Equal(t, "75%", page.View.GeneticTracks.Value[0].Info)
	assert.Len(t, page.View.AlteredKeys, 3)
}

func TestPages_CreateFromParams(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, http.MethodPost, "/api/v1/pages", jsonBody{
		"params": map[string]string{"cancer_study_id": "acc_tcga", "gene_list": "TP53"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	id := decodePage(t, w).ID
	page, ok := s.pages.Get(id)
	require.True(t, ok)
	assert.Equal(t, "acc_tcga", page.URLs().Query().Value("cancer_study_list"), "alias resolved")
}

func TestPages_NotFound(t *testing.T) {
	s := newTestServer(t, nil)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/pages/missing"},
		{http.MethodDelete, "/api/v1/pages/missing"},
		{http.MethodGet, "/api/v1/pages/missing/progress"},
		{http.MethodGet, "/api/v1/pages/missing/download/svg"},
	} {
		w := do(t, s, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
		assert.Equal(t, domain.ErrPageNotFound, decodeError(t, w).Code)
	}
}

func TestPages_Delete(t *testing.T) {
	s := newTestServer(t, nil)
	id := openPage(t, s)

	w := do(t, s, http.MethodDelete, "/api/v1/pages/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, s.pages.Len())
}

func TestPages_RegistryEvictsOldest(t *testing.T) {
	s := newTestServer(t, nil)
	first := openPage(t, s)
	openPage(t, s)
	openPage(t, s)

	assert.Equal(t, 2, s.pages.Len())
	_, ok := s.pages.Get(first)
	assert.False(t, ok)
}

func TestPages_UpdateQuery(t *testing.T) {
	s := newTestServer(t, nil)
	id := openPage(t, s)

	w := do(t, s, http.MethodPatch, "/api/v1/pages/"+id+"/query", jsonBody{
		"set": map[string]string{"oncoprint_sortby": "case_id"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decodePage(t, w)
	assert.True(t, page.Changed)
	assert.Equal(t, string(domain.SortAlphabetical), page.View.SortMode.Type)

	w = do(t, s, http.MethodPatch, "/api/v1/pages/"+id+"/query", jsonBody{"unset": []string{"oncoprint_sortby"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(domain.SortByData), decodePage(t, w).View.SortMode.Type)
}

func TestPages_Controls(t *testing.T) {
	s := newTestServer(t, nil)
	id := openPage(t, s)
	path := "/api/v1/pages/" + id + "/controls"

	w := do(t, s, http.MethodPost, path, jsonBody{"action": "showUnaltered", "on": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decodePage(t, w)
	assert.True(t, page.Accepted)
	assert.Len(t, page.View.HiddenIDs, 1)

	w = do(t, s, http.MethodPost, path, jsonBody{"action": "columnMode", "mode": "patient"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "patient", decodePage(t, w).View.ColumnMode)

	w = do(t, s, http.MethodPost, path, jsonBody{"action": "annotationSource", "source": "oncoKb", "on": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodePage(t, w).Accepted, "unconfigured source cannot be enabled")

	w = do(t, s, http.MethodPost, path, jsonBody{"action": "deleteClinicalTrack", "attributeId": "NUM_SAMPLES_PER_PATIENT"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, s, http.MethodPost, path, jsonBody{"action": "selectClinicalTrack", "attributeId": "AGE"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page = decodePage(t, w)
	clinical := page.View.ClinicalTracks.Value
	require.NotEmpty(t, clinical)
	assert.Equal(t, "CLINICALTRACK_AGE", clinical[len(clinical)-1].Key)
	for _, attr := range page.View.Controls.Unselected {
		assert.NotEqual(t, "AGE", attr.ID)
	}

	t.Run("validation errors", func(t *testing.T) {
		for _, body := range []jsonBody{
			{"action": "showUnaltered"},
			{"action": "columnMode", "mode": "gene"},
			{"action": "trackSortDirection", "trackKey": "CLINICALTRACK_AGE", "direction": 5},
			{"action": "countThreshold", "source": "oncoKb", "threshold": 3},
			{"action": "selectClinicalTrack"},
			{"action": "teleport"},
		} {
			w := do(t, s, http.MethodPost, path, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, body)
			assert.Equal(t, domain.ErrValidation, decodeError(t, w).Code)
		}
	})

	w = do(t, s, http.MethodPost, path, jsonBody{"on": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrInvalidInput, decodeError(t, w).Code)
}

func TestPages_Heatmap(t *testing.T) {
	s := newTestServer(t, nil)
	id := openPage(t, s)
	base := "/api/v1/pages/" + id + "/heatmap"

	w := do(t, s, http.MethodPost, base+"/cluster", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decodePage(t, w).Clustered)

	w = do(t, s, http.MethodPost, base, jsonBody{
		"molecularProfileId": portaltest.MRNAProfile,
		"entities":           []string{"TP53", "KRAS"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/v1/pages/"+id+"?wait=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decodePage(t, w)
	require.Equal(t, "complete", page.View.HeatmapTracks.Status)
	assert.Len(t, page.View.HeatmapTracks.Value, 2)

	w = do(t, s, http.MethodPost, base+"/cluster", jsonBody{"molecularProfileId": portaltest.MRNAProfile})
	require.Equal(t, http.StatusOK, w.Code)
	page = decodePage(t, w)
	assert.True(t, page.Clustered)
	assert.Equal(t, string(domain.SortByHeatmapCluster), page.View.SortMode.Type)

	w = do(t, s, http.MethodDelete, base+"/"+portaltest.MRNAProfile+"/KRAS", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(domain.SortByData), decodePage(t, w).View.SortMode.Type)

	w = do(t, s, http.MethodPost, base, jsonBody{"molecularProfileId": "unknown_profile", "entities": []string{"TP53"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, base, jsonBody{"molecularProfileId": portaltest.MRNAProfile, "entities": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, domain.ErrValidation, decodeError(t, w).Code)

	w = do(t, s, http.MethodPost, base, jsonBody{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page = decodePage(t, w)
	assert.Equal(t, "TP53", page.View.Controls.HeatmapGeneInput)
	require.Len(t, page.View.HeatmapTracks.Value, 1, "the gene box defaults to the queried genes")
}

func TestPages_Progress(t *testing.T) {
	s := newTestServer(t, nil)
	id := openPage(t, s)

	w := do(t, s, http.MethodGet, "/api/v1/pages/"+id+"/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var progress struct {
		Phase   string   `json:"phase"`
		Pending []string `json:"pending"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &progress))
	assert.Equal(t, "ready", progress.Phase)
	assert.Empty(t, progress.Pending)
}

func TestPages_Download(t *testing.T) {
	s := newTestServer(t, nil)
	id := openPage(t, s)
	base := "/api/v1/pages/" + id + "/download/"

	w := do(t, s, http.MethodGet, base+"order", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "Sample order in the Oncoprint is:\n"))
	assert.Equal(t, `attachment; filename="oncoprint-order.txt"`, w.Header().Get("Content-Disposition"))

	w = do(t, s, http.MethodGet, base+"svg", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<svg")

	w = do(t, s, http.MethodGet, base+"tabular", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "track_name\ttrack_type\t"))

	w = do(t, s, http.MethodGet, base+"pdf", nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.Equal(t, domain.ErrExportUnavailable, decodeError(t, w).Code)

	w = do(t, s, http.MethodGet, base+"gif", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessions(t *testing.T) {
	s := newTestServer(t, newSQLiteSessions(t))
	id := openPage(t, s)

	// Display state is not bookmarked
	w := do(t, s, http.MethodPatch, "/api/v1/pages/"+id+"/query", jsonBody{
		"set": map[string]string{"oncoprint_sortby": "case_id"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/sessions", jsonBody{"pageId": id})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		ID     string `json:"id"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, session.SourceMainSession, created.Source)

	w = do(t, s, http.MethodGet, "/api/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stored session.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, map[string]string{"cancer_study_list": "acc_tcga", "gene_list": "TP53"}, stored.Query)

	w = do(t, s, http.MethodPost, "/api/v1/pages", jsonBody{"sessionId": created.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/v1/sessions/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var export session.SessionExport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &export))
	assert.Equal(t, 1, export.Count)

	w = do(t, s, http.MethodGet, "/api/v1/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, domain.ErrSessionNotFound, decodeError(t, w).Code)

	w = do(t, s, http.MethodPost, "/api/v1/pages", jsonBody{"sessionId": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/sessions", jsonBody{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessions_Unconfigured(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, http.MethodPost, "/api/v1/sessions", jsonBody{"query": map[string]string{"gene_list": "TP53"}})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, domain.ErrServiceUnavailable, decodeError(t, w).Code)
}

func TestStream(t *testing.T) {
	s := newTestServer(t, nil)
	id := openPage(t, s)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/pages/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() pageJSON {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var msg struct {
			Type string `json:"type"`
			pageJSON
		}
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "view", msg.Type)
		return msg.pageJSON
	}

	first := read()
	assert.Equal(t, "ready", first.View.Phase)

	w := do(t, s, http.MethodPost, "/api/v1/pages/"+id+"/controls", jsonBody{"action": "sortAlphabetically"})
	require.Equal(t, http.StatusOK, w.Code)

	// A notification from the initial load may still be in flight
	for i := 0; i < 3; i++ {
		if read().View.SortMode.Type == string(domain.SortAlphabetical) {
			return
		}
	}
	t.Fatal("stream never delivered the alphabetical sort")
}
