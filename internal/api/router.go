package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

// NewRouter собирает маршруты внешнего API. idempotency может быть nil,
// тогда POST-запросы обрабатываются без защиты от повторов.
func NewRouter(h *Handlers, idempotency domain.IdempotencyRepository, logger *log.Entry) *chi.Mux {
	if logger == nil {
		logger = log.New().WithField("component", "api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Get("/timeline", h.GetTimeline)

			r.Group(func(r chi.Router) {
				r.Use(Idempotency(idempotency, logger))
				r.Post("/commit", h.Commit)
				r.Post("/decline", h.Decline)
			})
		})

		r.Get("/sellers/{sellerID}/orders", h.GetSellerOrders)
		r.Get("/lockers", h.GetLockers)
	})

	return r
}

// requestLogger пишет одну строку structured-лога на запрос.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(started).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("http request")
		})
	}
}
