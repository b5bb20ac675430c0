package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/app/service"
	"github.com/atinyakov/linkgate/internal/gate"
	"github.com/atinyakov/linkgate/internal/mocks"
)

func newRouter(t *testing.T, opts Options) (http.Handler, *mocks.MockLinkServiceIface) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockLinkServiceIface(ctrl)
	return Init(svc, service.NewAuth("test-secret"), opts, zap.NewNop()), svc
}

func TestRouter_Ping(t *testing.T) {
	r, svc := newRouter(t, Options{})
	svc.EXPECT().PingContext(gomock.Any()).Return(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_LinkRoutes(t *testing.T) {
	r, svc := newRouter(t, Options{})
	svc.EXPECT().Inspect(gomock.Any(), "demo").Return(&service.Resolution{Decision: gate.Denied{Reason: gate.NotFound}}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/links/demo", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"not_found"`)
}

func TestRouter_VerifyRateLimited(t *testing.T) {
	r, svc := newRouter(t, Options{VerifyLimit: 3})
	svc.EXPECT().
		Verify(gomock.Any(), "demo-locked", "nope", gomock.Any()).
		Return(&service.Resolution{Decision: gate.Denied{Reason: gate.PasswordIncorrect}}, nil).
		Times(3)

	send := func(slug string) int {
		req := httptest.NewRequest(http.MethodPost, "/links/"+slug+"/verify", strings.NewReader(`{"password":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:4000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusUnauthorized, send("demo-locked"))
	}
	assert.Equal(t, http.StatusTooManyRequests, send("demo-locked"))
}

func TestRouter_APIRequiresToken(t *testing.T) {
	r, _ := newRouter(t, Options{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/links", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_APIWithToken(t *testing.T) {
	r, svc := newRouter(t, Options{})
	svc.EXPECT().ListLinks(gomock.Any(), "owner-1").Return(nil, nil)

	token, err := service.NewAuth("test-secret").BuildJWTString("owner-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_MetricsBehindSubnet(t *testing.T) {
	r, _ := newRouter(t, Options{TrustedSubnet: "10.0.0.0/8"})

	denied := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	denied.Header.Set("X-Real-IP", "192.168.0.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, denied)
	assert.Equal(t, http.StatusForbidden, w.Code)

	allowed := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	allowed.Header.Set("X-Real-IP", "10.1.1.1")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, allowed)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "linkgate_")
}

func TestRouter_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, Options{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/links/demo/view", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
