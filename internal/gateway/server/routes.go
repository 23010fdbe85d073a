package server

import (
	"net/http"

	"go.uber.org/zap"

	"codereview/internal/gateway/handler"
	"codereview/internal/gateway/middleware"
)

func NewMux(h *handler.Handler, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)

	// Middleware
	return middleware.CORS(middleware.Logging(logger)(mux))
}
