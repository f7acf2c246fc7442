package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"Civic_Report/internal/app"
	"Civic_Report/internal/config"
	"Civic_Report/internal/model"
	"Civic_Report/internal/repository/mysql"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	t      *testing.T
	db     *gorm.DB
	app    *app.App
	engine *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, mysql.AutoMigrate(db))

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		JWTSecret:          "test-secret",
		Points:             config.DefaultPoints(),
		ReconcileBatchSize: 100,
		RepairLockTTL:      time.Minute,
	}
	a := app.New(cfg, db, rdb, prometheus.NewRegistry(), zap.NewNop())
	return &fixture{t: t, db: db, app: a, engine: a.Router()}
}

func (f *fixture) user(role model.Role, points int64) (model.User, string) {
	f.t.Helper()
	id := uuid.NewString()
	u := model.User{ID: id, Email: id + "@example.com", Password: "x", Role: role, Name: "n-" + id[:6], Points: points}
	require.NoError(f.t, f.db.Create(&u).Error)
	token, err := f.app.Tokens.Generate(u.ID, string(role))
	require.NoError(f.t, err)
	return u, token
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestIssueLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t)
	_, adminToken := f.user(model.RoleAdmin, 0)
	authority, authorityToken := f.user(model.RoleAuthority, 0)
	citizen, citizenToken := f.user(model.RoleCitizen, 0)

	w := f.do(http.MethodPost, "/api/admin/badges", adminToken, map[string]any{"name": "Starter", "icon": "🌱", "points_required": 0})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = f.do(http.MethodPost, "/api/admin/badges", adminToken, map[string]any{"name": "Active", "icon": "🔥", "points_required": 30})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodPost, "/api/admin/categories", adminToken, map[string]any{"name": "Roads", "department": "Public Works"})
	require.Equal(t, http.StatusCreated, w.Code)
	categoryID := decode(t, w)["ID"].(string)
	w = f.do(http.MethodPost, "/api/admin/categories/"+categoryID+"/authorities", adminToken, map[string]any{"user_id": authority.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/citizen/issues", citizenToken, map[string]any{
		"title":            "Pothole",
		"description":      "Large pothole",
		"category_id":      categoryID,
		"location_lat":     12.9,
		"location_lng":     77.6,
		"location_address": "MG Road",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	issueID := decode(t, w)["id"].(string)

	// 市民不能修改状态
	w = f.do(http.MethodPost, "/api/authority/issues/"+issueID+"/status", citizenToken, map[string]any{"status": "resolved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/api/authority/issues/"+issueID+"/status", authorityToken, map[string]any{"status": "resolved", "comment": "fixed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["affected"])

	w = f.do(http.MethodGet, "/api/me", citizenToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)
	assert.Equal(t, float64(30), me["user"].(map[string]any)["Points"])
	assert.Len(t, me["badges"], 2)

	w = f.do(http.MethodGet, "/api/authority/issues", authorityToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	queue := decode(t, w)
	require.Len(t, queue["issues"], 1)
	assert.Equal(t, issueID, queue["issues"].([]any)[0].(map[string]any)["ID"])
	assert.Equal(t, float64(1), queue["summary"].(map[string]any)["resolved"])

	w = f.do(http.MethodGet, "/api/authority/issues/"+issueID+"/updates", authorityToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["list"], 1)

	w = f.do(http.MethodGet, "/api/authority/issues/"+issueID+"/metrics", authorityToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["updateCount"])

	w = f.do(http.MethodGet, "/api/notifications", citizenToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes := decode(t, w)
	list := notes["list"].([]any)
	require.NotEmpty(t, list)
	noteID := list[0].(map[string]any)["ID"].(string)

	w = f.do(http.MethodPost, "/api/notifications/mark-read", citizenToken, map[string]any{"notification_id": noteID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["updated"])

	w = f.do(http.MethodGet, "/api/leaderboard", citizenToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	board := decode(t, w)["list"].([]any)
	require.Len(t, board, 1)
	assert.Equal(t, citizen.ID, board[0].(map[string]any)["userId"])

	w = f.do(http.MethodPost, "/api/issues/"+issueID+"/follow", authorityToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["following"])

	w = f.do(http.MethodGet, "/api/citizen/issues", citizenToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["list"], 1)

	w = f.do(http.MethodDelete, "/api/citizen/issues/"+issueID, citizenToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBulkUpdateAcceptsCommaSeparatedIDs(t *testing.T) {
	f := newFixture(t)
	_, authorityToken := f.user(model.RoleAuthority, 0)
	citizen, _ := f.user(model.RoleCitizen, 0)

	c := model.IssueCategory{ID: uuid.NewString(), Name: "Waste", Department: "Sanitation"}
	require.NoError(t, f.db.Create(&c).Error)
	var ids []string
	for i := 0; i < 3; i++ {
		issue := model.Issue{ID: uuid.NewString(), Title: fmt.Sprintf("Garbage %d", i), Description: "d", CategoryID: c.ID,
			LocationAddress: "x", Status: model.StatusPending, PostedByUserID: citizen.ID}
		require.NoError(t, f.db.Create(&issue).Error)
		ids = append(ids, issue.ID)
	}

	w := f.do(http.MethodPost, "/api/authority/issues/bulk-update", authorityToken, map[string]any{
		"issue_ids": ids[0] + ", " + ids[1],
		"status":    "in_progress",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["affected"])

	w = f.do(http.MethodPost, "/api/authority/issues/bulk-update", authorityToken, map[string]any{
		"issue_ids": ids,
		"status":    "resolved",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["affected"])

	var u model.User
	require.NoError(t, f.db.Where("id = ?", citizen.ID).First(&u).Error)
	assert.Equal(t, int64(60), u.Points)

	w = f.do(http.MethodPost, "/api/authority/issues/bulk-update", authorityToken, map[string]any{
		"issue_ids": []string{},
		"status":    "resolved",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	w = f.do(http.MethodPost, "/api/authority/issues/bulk-update", authorityToken, map[string]any{
		"issue_ids": ids,
		"status":    "closed",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminFixBadgesOverHTTP(t *testing.T) {
	f := newFixture(t)
	_, adminToken := f.user(model.RoleAdmin, 0)
	_, citizenToken := f.user(model.RoleCitizen, 0)
	drifted, _ := f.user(model.RoleCitizen, 10)

	champion := model.Badge{ID: uuid.NewString(), Name: "Champion", PointsRequired: 150, Icon: "🏆"}
	require.NoError(t, f.db.Create(&champion).Error)
	require.NoError(t, f.db.Create(&model.UserBadge{ID: uuid.NewString(), UserID: drifted.ID, BadgeID: champion.ID, EarnedAt: time.Now()}).Error)

	w := f.do(http.MethodPost, "/api/admin/fix-badges", citizenToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodPost, "/api/admin/fix-badges", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decode(t, w)
	assert.Equal(t, true, report["success"])
	summary := report["summary"].(map[string]any)
	assert.Equal(t, float64(2), summary["totalUsers"])
	assert.Equal(t, float64(1), summary["fixedUsers"])

	w = f.do(http.MethodPost, "/api/admin/users/"+drifted.ID+"/reset-points", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodPut, "/api/admin/users/"+drifted.ID+"/role", adminToken, map[string]any{"role": "authority"})
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodGet, "/api/admin/users?role=authority", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["list"], 1)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "civic_ledger_tx_seconds")

	w = f.do(http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
