package worker

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// staleAfter is how many track intervals may pass without a successful cycle before the worker is unhealthy.
const staleAfter = 3

type healthResponse struct {
	Status      string            `json:"status"`
	LastSuccess map[string]string `json:"last_success"`
}

func (w *Worker) router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", w.health).Methods(http.MethodGet)
	return r
}

func (w *Worker) health(rw http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", LastSuccess: make(map[string]string)}

	for _, job := range []string{JobTrackWallets, JobProcessCommands} {
		if t, ok := w.lastSuccessOf(job); ok {
			resp.LastSuccess[job] = t.UTC().Format(time.RFC3339)
		}
	}

	code := http.StatusOK
	if t, ok := w.lastSuccessOf(JobTrackWallets); ok && time.Since(t) > staleAfter*w.cfg.TrackInterval {
		resp.Status = "stale"
		code = http.StatusServiceUnavailable
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(resp)
}
