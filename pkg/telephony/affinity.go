package telephony

import (
	"fmt"
	"net/http"
	"strings"
)

// localInstanceSentinel means "any instance may serve this upgrade".
const localInstanceSentinel = "local"

// AffinityMiddleware wraps next so upgrade requests whose path carries a
// target instance id other than this host's own are redirected to the
// owning instance via a replay directive, instead of being upgraded
// locally. It must sit outermost so it intercepts the request before any
// route handler attempts the WebSocket upgrade handshake.
func AffinityMiddleware(instanceID string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := instanceFromPath(r.URL.Path)
		if target == "" || target == localInstanceSentinel || target == instanceID {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("fly-replay", fmt.Sprintf("instance=%s", target))
		w.WriteHeader(http.StatusTemporaryRedirect)
		fmt.Fprintf(w, "wrong instance: this call belongs on %s", target)
	})
}

// instanceFromPath extracts {instance} from a path of the form
// /conversation/{agent}/media-stream/{instance}. Returns "" if the path
// doesn't match that shape.
func instanceFromPath(path string) string {
	const marker = "/media-stream/"
	idx := strings.Index(path, marker)
	if idx < 0 {
		return ""
	}
	rest := path[idx+len(marker):]
	if rest == "" {
		return ""
	}
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}
