package httpapi

import "net/http"

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Store == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	if err := r.deps.Store.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	version := r.deps.Version
	if version == "" {
		version = "dev"
	}
	payload := map[string]any{
		"name":         "rescue-console",
		"version":      version,
		"environment":  r.deps.Config.Environment,
		"default_lang": r.deps.Config.DefaultLang,
	}
	if r.deps.CaseAPI != nil {
		payload["case_api"] = map[string]bool{
			"enabled":   r.deps.CaseAPI.Enabled(),
			"connected": r.deps.CaseAPI.Connected(),
		}
	}
	writeJSON(w, http.StatusOK, payload)
}
