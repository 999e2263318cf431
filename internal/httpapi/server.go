package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"

	"govee-decoder/internal/config"
	"govee-decoder/internal/metrics"
)

// Deps are the collaborators the API exposes. Any of them may be nil.
type Deps struct {
	Metrics *metrics.Metrics
	Stream  http.Handler
	Ready   func() bool
}

func NewMux(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()
	api := &decodeAPI{metrics: deps.Metrics}

	mux.Handle("GET /healthz", deps.Metrics.WrapHandler("healthz", healthz(deps.Ready)))
	mux.Handle("GET /api/v1/models", deps.Metrics.WrapHandler("models", http.HandlerFunc(api.handleModels)))
	mux.Handle("POST /api/v1/decode", deps.Metrics.WrapHandler("decode", http.HandlerFunc(api.handleDecode)))
	mux.Handle("POST /api/v1/models/{model}/decode", deps.Metrics.WrapHandler("decode_model", http.HandlerFunc(api.handleDecodeForModel)))
	mux.Handle("GET /metrics", deps.Metrics.Handler())
	if deps.Stream != nil {
		mux.Handle("GET /ws", deps.Stream)
	}
	return mux
}

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(cfg.AppEnv == "dev"),
	)
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           recovery(requestLogger(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	slog.Error("http handler panic", "panic", v)
}
