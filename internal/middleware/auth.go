package middleware

import (
	"net/http"
	"strings"

	"github.com/questx-lab/chatsync/internal/model"
	"github.com/questx-lab/chatsync/pkg/authenticator"
	"github.com/questx-lab/chatsync/pkg/xcontext"
)

// Authenticate rejects requests without a valid token. The token is read
// from the Authorization header, or from the token query parameter for
// websocket upgrades.
func Authenticate(engine authenticator.TokenEngine[model.Identity]) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				token = r.URL.Query().Get("token")
			}

			if token == "" {
				http.Error(w, "You need to authenticate before", http.StatusUnauthorized)
				return
			}

			identity, err := engine.Verify(token)
			if err != nil || identity.UserID == "" {
				xcontext.Logger(r.Context()).Debugf("Invalid token: %v", err)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := xcontext.WithRequestUserID(r.Context(), identity.UserID)
			ctx = xcontext.WithRequestUserName(ctx, identity.DisplayName)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
