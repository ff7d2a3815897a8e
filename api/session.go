package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/warp/vacation-desk/generic"
	"github.com/warp/vacation-desk/vacation"
)

type viewerKey struct{}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireViewer passes only callers whose session and profile both load.
// Anonymous callers get 401, callers without a profile get 403.
func (h *Handler) RequireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		view, err := h.Gate.Enter(r.Context(), bearerToken(r))
		if err != nil {
			h.fail(w, err)
			return
		}
		switch view.State {
		case vacation.ViewAnonymous:
			h.fail(w, generic.ErrUnauthenticated)
			return
		case vacation.ViewProfileUnavailable:
			h.fail(w, generic.ErrProfileUnavailable)
			return
		}
		ctx := context.WithValue(r.Context(), viewerKey{}, view.Viewer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// viewerFrom returns the viewer set by RequireViewer.
func viewerFrom(ctx context.Context) *vacation.Viewer {
	v, _ := ctx.Value(viewerKey{}).(*vacation.Viewer)
	return v
}
