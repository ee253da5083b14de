// Package logging builds the dashboard's slog loggers and carries them
// through request contexts.
//
//	logger := logging.NewFromEnv()
//	slog.SetDefault(logger)
//
//	func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
//	    log := logging.WithRequestID(r.Context(), h.logger)
//	    log.Info("state requested")
//	}
package logging
