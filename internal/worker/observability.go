package worker

import "net/http"

// ObservabilityHandler serves worker health and metrics on the side port.
func (w *Worker) ObservabilityHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		if err := w.db.Ping(r.Context()); err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_, _ = rw.Write([]byte("database unreachable"))
			return
		}
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte(w.metrics.Render()))
	})

	return mux
}
