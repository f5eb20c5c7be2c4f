package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/nulldiary/backend/internal/auth"
	"github.com/nulldiary/backend/internal/config"
	"github.com/nulldiary/backend/internal/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

var testDBSeq atomic.Int64

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:httpapi%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Message{},
		&models.IngestionEvent{},
		&models.ModerationAction{},
		&models.DenylistEntry{},
		&models.AdminUser{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := config.Config{
		JWTSecret:     "test-secret",
		RatePerMinute: 100,
		RatePerHour:   300,
		RatePerDay:    1000,
	}
	return NewRouter(db, cfg, nil, nil), db
}

func doRequest(r *gin.Engine, method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestIngest_PathMessage(t *testing.T) {
	r, db := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/s/hello%20world", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody(t, w)["status"]; got != "success" {
		t.Fatalf("expected success, got %v", got)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("expected no-store, got %q", cc)
	}

	var msg models.Message
	if err := db.First(&msg).Error; err != nil {
		t.Fatalf("load message: %v", err)
	}
	if msg.Content != "hello world" {
		t.Fatalf("expected decoded path content, got %q", msg.Content)
	}
	if msg.ModerationStatus != models.ModerationPending {
		t.Fatalf("new messages start pending, got %s", msg.ModerationStatus)
	}
}

func TestIngest_JSONBody(t *testing.T) {
	r, db := newTestRouter(t)

	body := []byte(`{"message": "from the body"}`)
	w := doRequest(r, http.MethodPost, "/s", body, map[string]string{
		"Content-Type": "application/json",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var msg models.Message
	if err := db.First(&msg).Error; err != nil {
		t.Fatalf("load message: %v", err)
	}
	if msg.Content != "from the body" {
		t.Fatalf("unexpected content %q", msg.Content)
	}
}

func TestIngest_HeaderBeatsPath(t *testing.T) {
	r, db := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/s/from%20the%20path", nil, map[string]string{
		"X-Message": "  from the header  ",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var msg models.Message
	if err := db.First(&msg).Error; err != nil {
		t.Fatalf("load message: %v", err)
	}
	if msg.Content != "from the header" {
		t.Fatalf("header must win and be trimmed, got %q", msg.Content)
	}
}

func TestIngest_NoMessageIsFailed(t *testing.T) {
	r, db := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/s", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decodeBody(t, w)["status"]; got != "failed" {
		t.Fatalf("expected failed, got %v", got)
	}

	var n int64
	if err := db.Model(&models.Message{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("failed parses must not create messages")
	}
}

func TestIngest_Options(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodOptions, "/s/anything", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS origin header")
	}
	if w.Header().Get("Access-Control-Max-Age") != "86400" {
		t.Fatalf("missing preflight max age")
	}
}

func TestRouter_NotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/nope", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["status"] != "error" || body["reason"] != "not_found" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/ping", nil, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	if decodeBody(t, w)["reason"] != "method_not_allowed" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestAdmin_Unauthorized(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/admin/messages", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/admin/messages", nil, map[string]string{
		"Authorization": "Bearer garbage",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", w.Code)
	}
}

func seedAdmin(t *testing.T, db *gorm.DB, username, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := db.Create(&models.AdminUser{Username: username, PasswordHash: hash}).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
}

func login(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(gin.H{"username": username, "password": password})
	w := doRequest(r, http.MethodPost, "/admin/login", body, map[string]string{
		"Content-Type": "application/json",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	data, _ := decodeBody(t, w)["data"].(map[string]any)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatalf("no token in login response: %s", w.Body.String())
	}
	return token
}

func TestAdmin_LoginAndApprove(t *testing.T) {
	r, db := newTestRouter(t)
	seedAdmin(t, db, "alice", "s3cret")

	if err := db.Create(&models.Message{
		ID:               "01TESTMESSAGEULID00000001X",
		Content:          "needs review",
		ModerationStatus: models.ModerationPending,
	}).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}

	token := login(t, r, "alice", "s3cret")

	body, _ := json.Marshal(gin.H{"message_id": "01TESTMESSAGEULID00000001X"})
	w := doRequest(r, http.MethodPost, "/admin/moderation/approve", body, map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + token,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("approve failed: %d %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["ok"] != true {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	var msg models.Message
	if err := db.First(&msg, "id = ?", "01TESTMESSAGEULID00000001X").Error; err != nil {
		t.Fatalf("load message: %v", err)
	}
	if msg.ModerationStatus != models.ModerationApproved {
		t.Fatalf("expected approved, got %s", msg.ModerationStatus)
	}
	if msg.ModeratedBy == nil || *msg.ModeratedBy != "alice" {
		t.Fatalf("actor must come from the JWT, got %v", msg.ModeratedBy)
	}

	// A second approve on the same message reports the conflict.
	w = doRequest(r, http.MethodPost, "/admin/moderation/approve", body, map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + token,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 conflict, got %d", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "Message is not pending (current status: approved)" {
		t.Fatalf("unexpected conflict message %v", got)
	}
}

func TestAdmin_ApproveMissingIs404(t *testing.T) {
	r, db := newTestRouter(t)
	seedAdmin(t, db, "alice", "s3cret")
	token := login(t, r, "alice", "s3cret")

	body, _ := json.Marshal(gin.H{"message_id": "does-not-exist"})
	w := doRequest(r, http.MethodPost, "/admin/moderation/approve", body, map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + token,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if got := decodeBody(t, w)["error"]; got != "Message not found" {
		t.Fatalf("unexpected error %v", got)
	}
}

func TestAdmin_LoginBadPassword(t *testing.T) {
	r, db := newTestRouter(t)
	seedAdmin(t, db, "alice", "s3cret")

	body, _ := json.Marshal(gin.H{"username": "alice", "password": "wrong"})
	w := doRequest(r, http.MethodPost, "/admin/login", body, map[string]string{
		"Content-Type": "application/json",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAdmin_DenylistRoundTrip(t *testing.T) {
	r, db := newTestRouter(t)
	seedAdmin(t, db, "alice", "s3cret")
	token := login(t, r, "alice", "s3cret")
	authz := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + token,
	}

	body, _ := json.Marshal(gin.H{"op": "add", "network": "203.0.113.9", "reason": "abuse"})
	w := doRequest(r, http.MethodPost, "/admin/denylist", body, authz)
	if w.Code != http.StatusOK {
		t.Fatalf("add failed: %d %s", w.Code, w.Body.String())
	}

	// Submissions from the denied address are disguised as successes and
	// recorded as events only.
	sub := doRequest(r, http.MethodGet, "/s/blocked%20message", nil, map[string]string{
		"X-Forwarded-For": "203.0.113.9",
	})
	if sub.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", sub.Code)
	}
	if got := decodeBody(t, sub)["status"]; got != "success" {
		t.Fatalf("denied submissions must look successful, got %v", got)
	}
	var n int64
	if err := db.Model(&models.Message{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("denied submissions must not create messages")
	}
	if err := db.Model(&models.IngestionEvent{}).
		Where("parse_status = ?", models.ParseDeniedIP).
		Count(&n).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one denied_ip event, got %d", n)
	}

	body, _ = json.Marshal(gin.H{"op": "remove", "network": "203.0.113.9"})
	if w := doRequest(r, http.MethodPost, "/admin/denylist", body, authz); w.Code != http.StatusOK {
		t.Fatalf("remove failed: %d %s", w.Code, w.Body.String())
	}

	sub = doRequest(r, http.MethodGet, "/s/now%20allowed", nil, map[string]string{
		"X-Forwarded-For": "203.0.113.9",
	})
	if got := decodeBody(t, sub)["status"]; got != "success" {
		t.Fatalf("expected success after removal, got %v", got)
	}
	if err := db.Model(&models.Message{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the message to land after removal, got %d", n)
	}
}

func TestAdmin_ListMessages(t *testing.T) {
	r, db := newTestRouter(t)
	seedAdmin(t, db, "alice", "s3cret")
	token := login(t, r, "alice", "s3cret")

	for i := 0; i < 3; i++ {
		if err := db.Create(&models.Message{
			ID:               fmt.Sprintf("msg%022d", i),
			Content:          fmt.Sprintf("message %d", i),
			ModerationStatus: models.ModerationPending,
		}).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := doRequest(r, http.MethodGet, "/admin/messages?status=pending", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d %s", w.Code, w.Body.String())
	}
	data, _ := decodeBody(t, w)["data"].(map[string]any)
	if total, _ := data["total"].(float64); total != 3 {
		t.Fatalf("expected total 3, got %v", data["total"])
	}
	msgs, _ := data["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
}

func TestIngest_DBFailureIsError(t *testing.T) {
	r, db := newTestRouter(t)

	// Tear the table out from under the service.
	if err := db.Exec("DROP TABLE messages").Error; err != nil {
		t.Fatalf("drop: %v", err)
	}

	w := doRequest(r, http.MethodGet, "/s/hello", nil, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if got := decodeBody(t, w)["status"]; got != "error" {
		t.Fatalf("expected error status, got %v", got)
	}
}

func TestIngest_LargeMultibyteBodyStoredIntact(t *testing.T) {
	r, db := newTestRouter(t)

	// 5,000 runes but 20,000 bytes: well under the body ceiling, over the
	// stored-body cap. The message must survive byte for byte.
	msg := strings.Repeat("\U0001F600", 5000)
	w := doRequest(r, http.MethodPost, "/s", []byte(msg), map[string]string{
		"Content-Type": "text/plain",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decodeBody(t, w)["status"]; got != "success" {
		t.Fatalf("expected success, got %v", got)
	}

	var stored models.Message
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("load message: %v", err)
	}
	if stored.Content != msg {
		t.Fatalf("content altered: got %d bytes, want %d", len(stored.Content), len(msg))
	}
	if n := utf8.RuneCountInString(stored.Content); n != 5000 {
		t.Fatalf("expected 5000 runes, got %d", n)
	}

	// The audit copy of the raw body is capped, the message is not.
	var ev models.IngestionEvent
	if err := db.First(&ev).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if ev.Body == nil || len(*ev.Body) > 16*1024 {
		t.Fatalf("stored event body must be capped at 16KB, got %d", len(*ev.Body))
	}
}

func TestIngest_OversizedJSONBodyStillParses(t *testing.T) {
	r, db := newTestRouter(t)

	// A JSON body past the stored-body cap must still decode so the message
	// field wins over lower-priority sources.
	padding := strings.Repeat("x", 20000)
	body := []byte(`{"message":"buried in padding","padding":"` + padding + `"}`)
	w := doRequest(r, http.MethodPost, "/s?message=from-query", body, map[string]string{
		"Content-Type": "application/json",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var stored models.Message
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("load message: %v", err)
	}
	if stored.Content != "buried in padding" {
		t.Fatalf("JSON body should still win, got %q", stored.Content)
	}
}

func TestIngest_LongURLMessageIsTooLong(t *testing.T) {
	r, db := newTestRouter(t)

	long := strings.Repeat("a", 2001)
	w := doRequest(r, http.MethodGet, "/s/"+long, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decodeBody(t, w)["status"]; got != "too_long" {
		t.Fatalf("expected too_long, got %v", got)
	}

	var n int64
	if err := db.Model(&models.Message{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("too long submissions must not create messages")
	}
}
