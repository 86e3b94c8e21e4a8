package agent

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
)

// Handler returns the agent's HTTP surface:
//
//	GET /fetch?url=<absolute http(s) url>   proxied fetch with offline fallback
//	GET /healthz                            lifecycle state and counters
func (a *Agent) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /fetch", a.handleFetch)
	mux.HandleFunc("GET /healthz", a.handleHealth)
	return mux
}

func (a *Agent) handleFetch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	target, err := url.Parse(raw)
	if raw == "" || err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		http.Error(w, "url must be an absolute http or https URL", http.StatusBadRequest)
		return
	}

	out, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := a.Fetch(r.Context(), out)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

type health struct {
	Origin string `json:"origin"`
	State  string `json:"state"`
	Stats  Stats  `json:"stats"`
}

func (a *Agent) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health{Origin: a.origin, State: a.State().String(), Stats: a.Stats()})
}
