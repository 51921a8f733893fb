package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/questx-lab/chatsync/config"
	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/internal/testutil"
	"github.com/questx-lab/chatsync/pkg/authenticator"
	"github.com/questx-lab/chatsync/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	engine := authenticator.NewTokenEngine[model.Identity](config.AuthConfigs{
		TokenSecret: "secret",
		Expiration:  config.Duration{Duration: time.Minute},
	})
	token, err := engine.Generate("user1", model.Identity{UserID: "user1", DisplayName: "Alice"})
	require.NoError(t, err)

	var gotID, gotName string
	handler := Chain(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID = xcontext.RequestUserID(r.Context())
			gotName = xcontext.RequestUserName(r.Context())
		}),
		WithContext(testutil.MockContext()),
		Logger(),
		Authenticate(engine),
	)

	testCases := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantID     string
	}{
		{name: "header", header: "Bearer " + token, wantStatus: http.StatusOK, wantID: "user1"},
		{name: "query", query: "?token=" + token, wantStatus: http.StatusOK, wantID: "user1"},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gotID, gotName = "", ""
			req := httptest.NewRequest(http.MethodPost, "/"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.wantStatus, rec.Code)
			require.Equal(t, tc.wantID, gotID)
			if tc.wantID != "" {
				require.Equal(t, "Alice", gotName)
			}
		})
	}
}

func TestAllowCors(t *testing.T) {
	handler := AllowCors()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
