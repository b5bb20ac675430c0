package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/atinyakov/linkgate/internal/app/service"
	"github.com/atinyakov/linkgate/internal/gate"
	"github.com/atinyakov/linkgate/internal/mocks"
	"github.com/atinyakov/linkgate/internal/models"
	"github.com/atinyakov/linkgate/internal/storage"
)

func withParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func demoRecord() *storage.LinkRecord {
	return &storage.LinkRecord{
		ID:       "link-1",
		Slug:     "demo",
		IsActive: true,
		Target:   storage.AssetRef{ID: "a1", Filename: "demo.pdf", PublicPath: "/demo/demo.pdf"},
	}
}

var demoTarget = gate.TargetDescriptor{
	ID:          "a1",
	URL:         "/demo/demo.pdf",
	DisplayName: "demo.pdf",
	Kind:        storage.TargetAsset,
}

func resolved(rec *storage.LinkRecord) *service.Resolution {
	return &service.Resolution{Record: rec, Decision: gate.Resolved{Target: demoTarget}}
}

func denied(rec *storage.LinkRecord, reason gate.Reason) *service.Resolution {
	return &service.Resolution{Record: rec, Decision: gate.Denied{Reason: reason}}
}

func TestLinksHandler_Get(t *testing.T) {
	tests := []struct {
		name       string
		res        *service.Resolution
		wantStatus int
		wantTarget bool
	}{
		{name: "resolved", res: resolved(demoRecord()), wantStatus: http.StatusOK, wantTarget: true},
		{name: "password required hides target", res: denied(demoRecord(), gate.PasswordRequired), wantStatus: http.StatusOK},
		{name: "not found", res: denied(nil, gate.NotFound), wantStatus: http.StatusNotFound},
		{name: "disabled", res: denied(demoRecord(), gate.Disabled), wantStatus: http.StatusForbidden},
		{name: "expired", res: denied(demoRecord(), gate.Expired), wantStatus: http.StatusGone},
		{name: "view limit", res: denied(demoRecord(), gate.ViewLimitReached), wantStatus: http.StatusGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc := mocks.NewMockLinkServiceIface(ctrl)
			svc.EXPECT().Inspect(gomock.Any(), "demo").Return(tt.res, nil)

			h := NewLinks(svc, zap.NewNop(), "http://localhost:8080", "")
			req := withParam(httptest.NewRequest(http.MethodGet, "/links/demo", nil), "slug", "demo")
			w := httptest.NewRecorder()

			h.Get(w, req)

			resp := w.Result()
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus != http.StatusOK {
				var body models.DenialResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.NotEmpty(t, body.Reason)
				return
			}

			var body models.LinkResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.wantTarget {
				assert.Equal(t, "/demo/demo.pdf", body.TargetURL)
			} else {
				assert.Empty(t, body.TargetURL)
				assert.Empty(t, body.TargetName)
			}
		})
	}
}

func TestLinksHandler_GetServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockLinkServiceIface(ctrl)
	svc.EXPECT().Inspect(gomock.Any(), "demo").Return(nil, errors.New("db down"))

	h := NewLinks(svc, zap.NewNop(), "", "")
	w := httptest.NewRecorder()
	h.Get(w, withParam(httptest.NewRequest(http.MethodGet, "/links/demo", nil), "slug", "demo"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLinksHandler_Verify(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(svc *mocks.MockLinkServiceIface)
		wantStatus int
	}{
		{
			name: "correct password",
			body: `{"password":"demo123"}`,
			setup: func(svc *mocks.MockLinkServiceIface) {
				svc.EXPECT().Verify(gomock.Any(), "demo", "demo123", gomock.Any()).Return(resolved(demoRecord()), nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "wrong password",
			body: `{"password":"nope"}`,
			setup: func(svc *mocks.MockLinkServiceIface) {
				svc.EXPECT().Verify(gomock.Any(), "demo", "nope", gomock.Any()).Return(denied(demoRecord(), gate.PasswordIncorrect), nil)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "unknown slug",
			body: `{"password":"x"}`,
			setup: func(svc *mocks.MockLinkServiceIface) {
				svc.EXPECT().Verify(gomock.Any(), "demo", "x", gomock.Any()).Return(denied(nil, gate.NotFound), nil)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "empty password rejected by validation",
			body:       `{"password":""}`,
			setup:      func(svc *mocks.MockLinkServiceIface) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed body",
			body:       `{"password":`,
			setup:      func(svc *mocks.MockLinkServiceIface) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       `{"pass":"x"}`,
			setup:      func(svc *mocks.MockLinkServiceIface) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc := mocks.NewMockLinkServiceIface(ctrl)
			tt.setup(svc)

			h := NewLinks(svc, zap.NewNop(), "", "")
			req := httptest.NewRequest(http.MethodPost, "/links/demo/verify", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			h.Verify(w, withParam(req, "slug", "demo"))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				var body models.VerifyResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.True(t, body.Success)
				assert.Equal(t, "demo.pdf", body.TargetName)
			}
		})
	}
}

func TestLinksHandler_VerifyWrongContentType(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewLinks(mocks.NewMockLinkServiceIface(ctrl), zap.NewNop(), "", "")
	req := httptest.NewRequest(http.MethodPost, "/links/demo/verify", strings.NewReader("password=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	h.Verify(w, withParam(req, "slug", "demo"))

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestLinksHandler_View(t *testing.T) {
	t.Run("records and returns target", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := mocks.NewMockLinkServiceIface(ctrl)
		svc.EXPECT().View(gomock.Any(), "demo", storage.EventView, gomock.Any()).Return(resolved(demoRecord()), nil)

		h := NewLinks(svc, zap.NewNop(), "", "")
		w := httptest.NewRecorder()
		h.View(w, withParam(httptest.NewRequest(http.MethodPost, "/links/demo/view", nil), "slug", "demo"))

		require.Equal(t, http.StatusOK, w.Code)
		var body models.ViewResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, "/demo/demo.pdf", body.TargetURL)
	})

	t.Run("password required", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := mocks.NewMockLinkServiceIface(ctrl)
		svc.EXPECT().View(gomock.Any(), "demo", storage.EventView, gomock.Any()).Return(denied(demoRecord(), gate.PasswordRequired), nil)

		h := NewLinks(svc, zap.NewNop(), "", "")
		w := httptest.NewRecorder()
		h.View(w, withParam(httptest.NewRequest(http.MethodPost, "/links/demo/view", nil), "slug", "demo"))

		require.Equal(t, http.StatusOK, w.Code)
		var body models.ViewResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.True(t, body.PasswordRequired)
		assert.Empty(t, body.TargetURL)
	})

	t.Run("expired", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := mocks.NewMockLinkServiceIface(ctrl)
		svc.EXPECT().View(gomock.Any(), "demo", storage.EventView, gomock.Any()).Return(denied(demoRecord(), gate.Expired), nil)

		h := NewLinks(svc, zap.NewNop(), "", "")
		w := httptest.NewRecorder()
		h.View(w, withParam(httptest.NewRequest(http.MethodPost, "/links/demo/view", nil), "slug", "demo"))

		assert.Equal(t, http.StatusGone, w.Code)
		assert.Contains(t, w.Body.String(), `"reason":"expired"`)
	})
}

func TestLinksHandler_Redirect(t *testing.T) {
	t.Run("redirects to target", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := mocks.NewMockLinkServiceIface(ctrl)
		svc.EXPECT().View(gomock.Any(), "demo", storage.EventView, gomock.Any()).Return(resolved(demoRecord()), nil)

		h := NewLinks(svc, zap.NewNop(), "", "")
		w := httptest.NewRecorder()
		h.Redirect(w, withParam(httptest.NewRequest(http.MethodGet, "/s/demo", nil), "slug", "demo"))

		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "/demo/demo.pdf", w.Header().Get("Location"))
	})

	t.Run("collection redirects to site", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		collection := gate.TargetDescriptor{ID: "c1", URL: "/c/demo-kit", DisplayName: "Demo Kit", Kind: storage.TargetCollection}
		svc := mocks.NewMockLinkServiceIface(ctrl)
		svc.EXPECT().View(gomock.Any(), "kit", storage.EventView, gomock.Any()).
			Return(&service.Resolution{Record: demoRecord(), Decision: gate.Resolved{Target: collection}}, nil)

		h := NewLinks(svc, zap.NewNop(), "https://lg.example", "https://files.example/")
		w := httptest.NewRecorder()
		h.Redirect(w, withParam(httptest.NewRequest(http.MethodGet, "/s/kit", nil), "slug", "kit"))

		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
		assert.Equal(t, "https://files.example/c/demo-kit", w.Header().Get("Location"))
	})

	t.Run("absolute target is kept", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		external := gate.TargetDescriptor{ID: "a9", URL: "https://cdn.example/a9.pdf", DisplayName: "a9.pdf", Kind: storage.TargetAsset}
		svc := mocks.NewMockLinkServiceIface(ctrl)
		svc.EXPECT().View(gomock.Any(), "cdn", storage.EventView, gomock.Any()).
			Return(&service.Resolution{Record: demoRecord(), Decision: gate.Resolved{Target: external}}, nil)

		h := NewLinks(svc, zap.NewNop(), "", "https://files.example")
		w := httptest.NewRecorder()
		h.Redirect(w, withParam(httptest.NewRequest(http.MethodGet, "/s/cdn", nil), "slug", "cdn"))

		assert.Equal(t, "https://cdn.example/a9.pdf", w.Header().Get("Location"))
	})

	t.Run("download query records download", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := mocks.NewMockLinkServiceIface(ctrl)
		svc.EXPECT().View(gomock.Any(), "demo", storage.EventDownload, gomock.Any()).Return(resolved(demoRecord()), nil)

		h := NewLinks(svc, zap.NewNop(), "", "")
		w := httptest.NewRecorder()
		h.Redirect(w, withParam(httptest.NewRequest(http.MethodGet, "/s/demo?download=1", nil), "slug", "demo"))

		assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	})

	t.Run("password prompt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := mocks.NewMockLinkServiceIface(ctrl)
		svc.EXPECT().View(gomock.Any(), "demo", storage.EventView, gomock.Any()).Return(denied(demoRecord(), gate.PasswordRequired), nil)

		h := NewLinks(svc, zap.NewNop(), "", "")
		w := httptest.NewRecorder()
		h.Redirect(w, withParam(httptest.NewRequest(http.MethodGet, "/s/demo", nil), "slug", "demo"))

		require.Equal(t, http.StatusOK, w.Code)
		var body models.PasswordPrompt
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.PasswordRequired)
		assert.Equal(t, "/links/demo/verify", body.VerifyURL)
	})

	t.Run("disabled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := mocks.NewMockLinkServiceIface(ctrl)
		svc.EXPECT().View(gomock.Any(), "demo", storage.EventView, gomock.Any()).Return(denied(demoRecord(), gate.Disabled), nil)

		h := NewLinks(svc, zap.NewNop(), "", "")
		w := httptest.NewRecorder()
		h.Redirect(w, withParam(httptest.NewRequest(http.MethodGet, "/s/demo", nil), "slug", "demo"))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
	})
}

func TestLinksHandler_Meta(t *testing.T) {
	tests := []struct {
		name       string
		res        *service.Resolution
		wantStatus int
		wantTitle  string
	}{
		{name: "resolved shows target name", res: resolved(demoRecord()), wantStatus: http.StatusOK, wantTitle: "demo.pdf"},
		{name: "protected hides target", res: denied(demoRecord(), gate.PasswordRequired), wantStatus: http.StatusOK, wantTitle: "Protected link"},
		{name: "expired", res: denied(demoRecord(), gate.Expired), wantStatus: http.StatusOK, wantTitle: "Link unavailable"},
		{name: "not found", res: denied(nil, gate.NotFound), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			svc := mocks.NewMockLinkServiceIface(ctrl)
			svc.EXPECT().Inspect(gomock.Any(), "demo").Return(tt.res, nil)

			h := NewLinks(svc, zap.NewNop(), "https://lg.example", "")
			w := httptest.NewRecorder()
			h.Meta(w, withParam(httptest.NewRequest(http.MethodGet, "/links/demo/meta", nil), "slug", "demo"))

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}

			var body models.MetaResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantTitle, body.Title)
			assert.Equal(t, "https://lg.example/s/demo", body.URL)
			assert.NotContains(t, w.Body.String(), "/demo/demo.pdf")
		})
	}
}

func TestVisitFrom(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/s/demo?utm_source=news&utm_medium=email&utm_campaign=launch", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "curl/8.0")
	req.Header.Set("Referer", "https://example.org/post")

	v := visitFrom(req)

	assert.Equal(t, "203.0.113.7", v.ClientIP)
	assert.Equal(t, "curl/8.0", v.UserAgent)
	assert.Equal(t, "https://example.org/post", v.Referrer)
	assert.Equal(t, "news", v.UTMSource)
	assert.Equal(t, "email", v.UTMMedium)
	assert.Equal(t, "launch", v.UTMCampaign)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(gate.NotFound))
	assert.Equal(t, http.StatusForbidden, statusFor(gate.Disabled))
	assert.Equal(t, http.StatusGone, statusFor(gate.Expired))
	assert.Equal(t, http.StatusGone, statusFor(gate.ViewLimitReached))
	assert.Equal(t, http.StatusOK, statusFor(gate.PasswordRequired))
	assert.Equal(t, http.StatusUnauthorized, statusFor(gate.PasswordIncorrect))
}
