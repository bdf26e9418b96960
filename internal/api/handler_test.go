package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantops-backend/config"
	"plantops-backend/internal/apperr"
	"plantops-backend/internal/approval"
	"plantops-backend/internal/auth"
	"plantops-backend/internal/booking"
	"plantops-backend/internal/model"
	"plantops-backend/internal/store/storetest"
)

var secret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	tokens map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, gdb := storetest.New(t)
	require.NoError(t, gdb.Create(&[]model.User{
		{ID: "u-admin", Username: "admin", Role: "ADMIN"},
		{ID: "u-clerk", Username: "clerk", DisplayName: "Gate Clerk", Role: "CLERK"},
	}).Error)

	authz := auth.NewRoleAuthorizer("ADMIN")
	bookings := booking.NewService(s, nil, booking.Options{})
	approvals := approval.NewService(s, nil, authz, nil, approval.Options{})
	h := NewHandler(s, bookings, approvals, authz, nil)

	cfg := config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 30}
	ts := &testServer{router: NewRouter(cfg, secret, h), tokens: map[string]string{}}

	actors := map[string]auth.Actor{
		"admin": {ID: "u-admin", Username: "admin", Role: "ADMIN"},
		"clerk": {ID: "u-clerk", Username: "clerk", DisplayName: "Gate Clerk", Role: "CLERK", Permissions: []string{
			auth.ActionBookingsCreate, auth.ActionBookingsRead, auth.ActionBookingsUpdate, auth.ActionTruckScaleUpdate,
		}},
		"viewer": {ID: "u-view", Username: "viewer", Role: "VIEWER"},
	}
	for name, a := range actors {
		tok, err := auth.IssueToken(secret, a, time.Hour)
		require.NoError(t, err)
		ts.tokens[name] = tok
	}
	return ts
}

func (ts *testServer) do(t *testing.T, who, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if who != "" {
		req.Header.Set("Authorization", "Bearer "+ts.tokens[who])
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func newBooking(date, slotStart, slotEnd string) map[string]any {
	return map[string]any{
		"date":         date,
		"startTime":    slotStart,
		"endTime":      slotEnd,
		"supplierId":   "sup-1",
		"supplierName": "Somsak Rubber",
		"rubberType":   "Cuplump",
	}
}

func TestRespondError_Mapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{apperr.Validation("bad"), http.StatusBadRequest, "validation"},
		{apperr.CapacityExceeded("full"), http.StatusConflict, "capacity_exceeded"},
		{apperr.DuplicateConstraint("dup"), http.StatusConflict, "duplicate_constraint"},
		{apperr.NotFound("gone"), http.StatusNotFound, "not_found"},
		{apperr.InvalidStateTransition("no"), http.StatusConflict, "invalid_state_transition"},
		{apperr.Forbidden("nope"), http.StatusForbidden, "forbidden"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "persistence"},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		respondError(c, tc.err)

		assert.Equal(t, tc.status, w.Code)
		body := decode[map[string]string](t, w)
		assert.Equal(t, tc.kind, body["error"])
		if tc.status == http.StatusInternalServerError {
			assert.Equal(t, "internal error", body["message"])
		}
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, "", http.MethodGet, "/api/bookings", nil).Code)
	assert.Equal(t, http.StatusForbidden, ts.do(t, "viewer", http.MethodGet, "/api/bookings", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, "", http.MethodGet, "/healthz", nil).Code)
}

func TestBookingFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "clerk", http.MethodPost, "/api/bookings", newBooking("2024-06-03", "08:00", "09:00"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	assert.Equal(t, "C24060301", created["bookingCode"])
	id := created["id"].(string)

	w = ts.do(t, "clerk", http.MethodPost, "/api/bookings/"+id+"/stop-drain", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, "clerk", http.MethodPost, "/api/bookings/"+id+"/check-in", map[string]any{"truckRegister": "70-1234"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ts.do(t, "clerk", http.MethodPost, "/api/bookings/"+id+"/check-in", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, "clerk", http.MethodPost, "/api/bookings/"+id+"/weigh-in", map[string]any{"weightIn": "1520.5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1520.5, decode[map[string]any](t, w)["weightIn"])

	w = ts.do(t, "clerk", http.MethodPatch, "/api/bookings/"+id, map[string]any{"moisture": "12.5", "silent": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 12.5, decode[map[string]any](t, w)["moisture"])

	w = ts.do(t, "clerk", http.MethodGet, "/api/bookings/stats?date=2024-06-03", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[map[string]any](t, w)
	assert.EqualValues(t, 1, stats["total"])
	assert.EqualValues(t, 1, stats["checkedIn"])

	w = ts.do(t, "clerk", http.MethodDelete, "/api/bookings/"+id, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = ts.do(t, "admin", http.MethodDelete, "/api/bookings/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, "clerk", http.MethodGet, "/api/bookings?code=C24060301", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]map[string]any](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "CANCELLED", list[0]["status"])

	w = ts.do(t, "admin", http.MethodDelete, "/api/bookings/"+id+"/purge", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, "clerk", http.MethodGet, "/api/bookings/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookingCapacity(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 4; i++ {
		w := ts.do(t, "clerk", http.MethodPost, "/api/bookings", newBooking("2024-06-03", "08:00", "09:00"))
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w := ts.do(t, "clerk", http.MethodPost, "/api/bookings", newBooking("2024-06-03", "08:00", "09:00"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "capacity_exceeded", decode[map[string]string](t, w)["error"])

	w = ts.do(t, "clerk", http.MethodPost, "/api/bookings", map[string]any{"date": "2024-06-03"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = ts.do(t, "clerk", http.MethodPost, "/api/bookings", newBooking("2024-06-03", "8:00", "09:00"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode[map[string]string](t, w)["error"])
}

func TestGetSlots_SaturdayOverride(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, "clerk", http.MethodGet, "/api/slots?date=2024-06-08", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var midday map[string]any
	for _, s := range decode[[]map[string]any](t, w) {
		if s["slot"] == booking.SaturdaySlot {
			midday = s
		}
	}
	require.NotNil(t, midday)
	assert.EqualValues(t, 9, midday["start"])
	assert.Nil(t, midday["limit"])
}

func TestSamples(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, "clerk", http.MethodPost, "/api/bookings", newBooking("2024-06-03", "09:00", "10:00"))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]any](t, w)["id"].(string)

	for _, cp := range []float64{60, 70} {
		w = ts.do(t, "clerk", http.MethodPost, "/api/bookings/"+id+"/samples", map[string]any{"percentCp": cp})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w = ts.do(t, "clerk", http.MethodGet, "/api/bookings/"+id+"/samples", nil)
	require.Equal(t, http.StatusOK, w.Code)
	samples := decode[[]map[string]any](t, w)
	require.Len(t, samples, 2)

	w = ts.do(t, "clerk", http.MethodGet, "/api/bookings/"+id, nil)
	assert.EqualValues(t, 65, decode[map[string]any](t, w)["drcEst"])

	sampleID := samples[0]["id"].(string)
	w = ts.do(t, "clerk", http.MethodDelete, fmt.Sprintf("/api/bookings/%s/samples/%s", id, sampleID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestApprovalFlow(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "clerk", http.MethodPost, "/api/approvals", map[string]any{
		"requestType":  "BOOKING_EDIT",
		"entityType":   "booking",
		"entityId":     "b-1",
		"sourceApp":    "BOOKINGS",
		"actionType":   "UPDATE",
		"proposedData": map[string]any{"truckRegister": "70-9999"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[map[string]any](t, w)["id"].(string)

	assert.Equal(t, http.StatusForbidden, ts.do(t, "clerk", http.MethodPost, "/api/approvals/"+id+"/approve", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "admin", http.MethodPost, "/api/approvals/"+id+"/reject", map[string]any{}).Code)

	w = ts.do(t, "admin", http.MethodPost, "/api/approvals/"+id+"/approve", map[string]any{"remark": "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "APPROVED", decode[map[string]any](t, w)["status"])

	assert.Equal(t, http.StatusConflict, ts.do(t, "clerk", http.MethodPost, "/api/approvals/"+id+"/cancel", nil).Code)

	// Requesters may read their own request.
	w = ts.do(t, "clerk", http.MethodGet, "/api/approvals/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := decode[map[string]any](t, w)["logs"].([]any)
	require.Len(t, logs, 2)
	assert.Equal(t, "CREATED", logs[0].(map[string]any)["action"])
	assert.Equal(t, "APPROVED", logs[1].(map[string]any)["action"])
	assert.Equal(t, http.StatusForbidden, ts.do(t, "viewer", http.MethodGet, "/api/approvals/"+id, nil).Code)

	w = ts.do(t, "admin", http.MethodPost, "/api/approvals/"+id+"/void", map[string]any{"reason": "duplicate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "VOID", decode[map[string]any](t, w)["status"])

	w = ts.do(t, "clerk", http.MethodGet, "/api/approvals/mine", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)
}

func TestSubscriptions(t *testing.T) {
	ts := newTestServer(t)
	sub := map[string]any{"endpoint": "https://push.example/abc", "p256dh": "key", "auth": "secret"}

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "clerk", http.MethodPut, "/api/subscriptions", nil).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, "clerk", http.MethodPut, "/api/subscriptions", sub).Code)

	w := ts.do(t, "clerk", http.MethodGet, "/api/subscriptions?endpoint=https://push.example/abc", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusNotFound, ts.do(t, "admin", http.MethodGet, "/api/subscriptions?endpoint=https://push.example/abc", nil).Code)

	assert.Equal(t, http.StatusNoContent, ts.do(t, "clerk", http.MethodDelete, "/api/subscriptions", map[string]any{"endpoint": "https://push.example/abc"}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "clerk", http.MethodGet, "/api/subscriptions?endpoint=https://push.example/abc", nil).Code)
}

func TestVAPIDKeyUnconfigured(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "", http.MethodGet, "/api/vapid_public_key", nil).Code)
}
