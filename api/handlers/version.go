package handlers

import "net/http"

// Build identity, set from main via SetVersion.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion records the build identity reported by GetVersion.
func SetVersion(v, c, d string) {
	version, commit, date = v, c, d
}

type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// GetVersion serves GET /api/version.
func GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: version, Commit: commit, Date: date})
}
