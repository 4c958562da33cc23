package webhook

import (
	"net/http"

	"go.uber.org/zap"
)

// respondText writes a plain text provider acknowledgement
func respondText(w http.ResponseWriter, logger *zap.Logger, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		logger.Error("write webhook response", zap.Error(err))
	}
}
