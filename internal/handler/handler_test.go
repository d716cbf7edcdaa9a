package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/damoang/angple-moderation/internal/common"
	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/damoang/angple-moderation/internal/events"
	"github.com/damoang/angple-moderation/internal/middleware"
	"github.com/damoang/angple-moderation/internal/migration"
	"github.com/damoang/angple-moderation/internal/repository"
	"github.com/damoang/angple-moderation/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubAnalyzer returns fixed results keyed by text
type stubAnalyzer struct {
	analyses map[string]domain.Analysis
}

func (s *stubAnalyzer) Analyze(_ context.Context, text string) (domain.Analysis, error) {
	a, ok := s.analyses[text]
	if !ok {
		return domain.Analysis{}, fmt.Errorf("no stub for %q: %w", text, common.ErrAnalyzerUnavailable)
	}
	return a, nil
}

func (s *stubAnalyzer) Explain(_ context.Context, _ string) (domain.Recommendation, error) {
	return domain.Recommendation{}, common.ErrAnalyzerUnavailable
}

type testServer struct {
	router *gin.Engine
	store  repository.FlagStore
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.Run(db))

	log := zerolog.Nop()
	store := repository.NewFlagRepository(db)
	snapshots := repository.NewContentSnapshotRepository(db)
	analyzer := &stubAnalyzer{analyses: map[string]domain.Analysis{
		"hello":  {Flagged: false, FlagScore: 2},
		"meh":    {Flagged: true, FlagScore: 55, Reasoning: "borderline"},
		"threat": {Flagged: true, FlagScore: 91, Reasoning: "explicit threat"},
	}}

	effects := service.NewOutcomeEffects(events.NewBus(log), repository.NewPointRepository(db), 10, log)
	lifecycle := service.NewFlagLifecycle(store, effects, log)
	appeals := service.NewAppealProcessor(store, lifecycle, 0, log)
	moderation := service.NewModerationService(analyzer, service.NewAutoModerationPolicy(domain.AutoRejectThreshold), lifecycle,
		service.ModerationServiceOptions{Snapshots: snapshots, Failures: repository.NewAnalysisFailureRepository(db)}, log)
	advisor := service.NewAIAssistAdvisor(store, snapshots, analyzer, nil, time.Minute, time.Second, log)

	mh := NewModerationHandler(moderation, lifecycle, advisor)
	ah := NewAppealHandler(appeals)

	r := gin.New()
	api := r.Group("/api/v1/moderation", middleware.ActorIdentity())
	api.POST("/analyze", mh.Analyze)
	api.GET("/flags", mh.ListFlags)
	api.GET("/flags/queue", mh.Queue)
	api.GET("/flags/:id", mh.GetFlag)
	api.GET("/flags/:id/decisions", mh.ListDecisions)
	api.GET("/flags/:id/recommendation", mh.Recommend)
	api.POST("/flags", middleware.RequireActor(), mh.Report)
	api.POST("/flags/:id/decision", middleware.RequireActor(), mh.Decide)
	api.POST("/flags/:id/appeals", middleware.RequireActor(), ah.FileAppeal)
	api.GET("/appeals/:id", ah.GetAppeal)
	api.POST("/appeals/:id/resolve", middleware.RequireActor(), ah.ResolveAppeal)

	return &testServer{router: r, store: store}
}

func (s *testServer) do(t *testing.T, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, "/api/v1/moderation"+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.ActorHeader, userID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func data(resp map[string]interface{}) map[string]interface{} {
	d, _ := resp["data"].(map[string]interface{})
	return d
}

func errorCode(resp map[string]interface{}) string {
	e, _ := resp["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func TestAnalyze(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		text   string
		status string
		action string
	}{
		{"hello", "auto_approved", "auto_approve"},
		{"meh", "auto_flagged", "auto_flag"},
		{"threat", "rejected", "auto_reject"},
		{"analyzer down", "auto_approved", "auto_approve"},
	}
	for i, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			w, resp := s.do(t, http.MethodPost, "/analyze", "", gin.H{
				"content_type": "comment",
				"content_id":   i + 1,
				"text":         tt.text,
				"author_id":    "author-1",
			})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, tt.status, data(resp)["status"])
			assert.Equal(t, tt.action, data(resp)["action"])
		})
	}
}

func TestAnalyze_Validation(t *testing.T) {
	s := setupServer(t)

	w, resp := s.do(t, http.MethodPost, "/analyze", "", gin.H{"content_type": "video", "content_id": 1, "text": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", errorCode(resp))

	w, _ = s.do(t, http.MethodPost, "/analyze", "", gin.H{"content_type": "comment", "content_id": 0, "text": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportDecideAndAppealFlow(t *testing.T) {
	s := setupServer(t)

	// 신고 → pending
	w, resp := s.do(t, http.MethodPost, "/flags", "user-1", gin.H{
		"content_type": "discussion",
		"content_id":   42,
		"reason":       "harassment",
		"text":         "reported text",
		"author_id":    "author-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "pending", data(resp)["status"])
	flagID := int64(data(resp)["id"].(float64))

	w, resp = s.do(t, http.MethodGet, "/flags/queue", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), resp["meta"].(map[string]interface{})["total"])

	// 결정 → rejected
	w, resp = s.do(t, http.MethodPost, fmt.Sprintf("/flags/%d/decision", flagID), "mod-1", gin.H{
		"decision":  "rejected",
		"reasoning": "clear harassment",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "rejected", data(resp)["flag"].(map[string]interface{})["status"])

	// 재결정 → 409
	w, resp = s.do(t, http.MethodPost, fmt.Sprintf("/flags/%d/decision", flagID), "mod-2", gin.H{
		"decision":  "approved",
		"reasoning": "second look",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", errorCode(resp))

	// 이의 신청
	w, resp = s.do(t, http.MethodPost, fmt.Sprintf("/flags/%d/appeals", flagID), "author-1", gin.H{"reasoning": "out of context"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	appealID := int64(data(resp)["id"].(float64))

	// 중복 이의 신청 → 422
	w, _ = s.do(t, http.MethodPost, fmt.Sprintf("/flags/%d/appeals", flagID), "author-1", gin.H{"reasoning": "again"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 이의 처리
	w, resp = s.do(t, http.MethodPost, fmt.Sprintf("/appeals/%d/resolve", appealID), "mod-3", gin.H{"outcome": "approved"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", data(resp)["appeal"].(map[string]interface{})["status"])
	assert.Equal(t, "approved", data(resp)["flag"].(map[string]interface{})["status"])

	w, _ = s.do(t, http.MethodPost, fmt.Sprintf("/appeals/%d/resolve", appealID), "mod-3", gin.H{"outcome": "rejected"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, resp = s.do(t, http.MethodGet, fmt.Sprintf("/appeals/%d", appealID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mod-3", data(resp)["reviewed_by"])

	w, resp = s.do(t, http.MethodGet, fmt.Sprintf("/flags/%d/decisions", flagID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["data"], 2)
}

func TestDecide_RequiresActorAndValidOutcome(t *testing.T) {
	s := setupServer(t)

	w, resp := s.do(t, http.MethodPost, "/flags", "user-1", gin.H{"content_type": "comment", "content_id": 1, "reason": "spam"})
	require.Equal(t, http.StatusCreated, w.Code)
	flagID := int64(data(resp)["id"].(float64))

	w, _ = s.do(t, http.MethodPost, fmt.Sprintf("/flags/%d/decision", flagID), "", gin.H{"decision": "approved", "reasoning": "ok"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = s.do(t, http.MethodPost, fmt.Sprintf("/flags/%d/decision", flagID), "system", gin.H{"decision": "approved", "reasoning": "ok"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, fmt.Sprintf("/flags/%d/decision", flagID), "mod-1", gin.H{"decision": "escalate", "reasoning": "ok"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/flags/9999/decision", "mod-1", gin.H{"decision": "approved", "reasoning": "ok"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetFlag_InvalidAndMissing(t *testing.T) {
	s := setupServer(t)

	w, _ := s.do(t, http.MethodGet, "/flags/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := s.do(t, http.MethodGet, "/flags/12345", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(resp))

	w, _ = s.do(t, http.MethodGet, "/flags?status=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommend_FallsBack(t *testing.T) {
	s := setupServer(t)

	w, resp := s.do(t, http.MethodPost, "/flags", "user-1", gin.H{"content_type": "comment", "content_id": 1, "reason": "spam", "text": "buy now"})
	require.Equal(t, http.StatusCreated, w.Code)
	flagID := int64(data(resp)["id"].(float64))

	w, resp = s.do(t, http.MethodGet, fmt.Sprintf("/flags/%d/recommendation", flagID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "review", data(resp)["recommendation"])
	assert.Equal(t, domain.FallbackReasoning, data(resp)["reasoning"])
	assert.Equal(t, float64(0), data(resp)["confidence"])

	flag, err := s.store.GetFlag(context.Background(), flagID)
	require.NoError(t, err)
	assert.Equal(t, domain.FlagStatusPending, flag.Status)
}
