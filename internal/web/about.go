package web

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"

	"gnss-stamp/internal/stamp"
)

type AboutResponse struct {
	Service       string   `json:"service"`
	NowUTC        string   `json:"now_utc"`
	GoVersion     string   `json:"go_version"`
	PacketVersion int      `json:"packet_version"`
	SyncStatuses  []string `json:"sync_statuses"`
	ModulePath    string   `json:"module_path,omitempty"`
	Version       string   `json:"version,omitempty"`
	Commit        string   `json:"commit,omitempty"`
	Dirty         bool     `json:"dirty,omitempty"`
}

func AboutHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		resp := AboutResponse{
			Service:       "gnss-stamp",
			NowUTC:        time.Now().UTC().Format(time.RFC3339Nano),
			GoVersion:     runtime.Version(),
			PacketVersion: stamp.DefaultVersion,
		}
		for s := stamp.SyncUnknown; s.Known(); s++ {
			resp.SyncStatuses = append(resp.SyncStatuses, s.String())
		}
		if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
			resp.ModulePath = bi.Main.Path
			resp.Version = bi.Main.Version
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					resp.Commit = s.Value
				case "vcs.modified":
					resp.Dirty = s.Value == "true"
				}
			}
		}
		writeJSON(w, resp)
	})
}
