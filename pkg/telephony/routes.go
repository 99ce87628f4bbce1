package telephony

import (
	"log/slog"
	"net/http"
	"strings"
)

// SessionStarter is implemented by the Session Orchestrator (C6) and
// invoked once a media-stream upgrade has completed, with the agent id
// parsed from the upgrade path.
type SessionStarter interface {
	StartSession(ms *MediaStream, agentID string)
}

// MediaStreamHandler upgrades the connection and hands it to starter.
// It must be reached only after AffinityMiddleware has let the request
// through.
func MediaStreamHandler(starter SessionStarter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agentID := agentFromPath(r.URL.Path)
		ms, err := Upgrade(w, r)
		if err != nil {
			if logger != nil {
				logger.Error("telephony: upgrade failed", "err", err)
			}
			return
		}
		go starter.StartSession(ms, agentID)
	}
}

// agentFromPath extracts {agent} from /conversation/{agent}/media-stream/{instance}.
func agentFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if p == "conversation" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// RegisterRoutes wires the Ingress Webhook and the media-stream upgrade
// endpoint onto mux. The caller is responsible for wrapping mux with
// AffinityMiddleware at the outermost layer.
func RegisterRoutes(mux *http.ServeMux, ingress *IngressHandler, starter SessionStarter, logger *slog.Logger) {
	mux.Handle("/api/telephony/calls/incoming", ingress)
	mux.Handle("/conversation/", MediaStreamHandler(starter, logger))
}
