package api

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/mzansimarket/fulfillment/internal/domain"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	idempotencyTTL       = 24 * time.Hour
	maxIdempotentBody    = 1 << 20
	replayedStatusHeader = "Idempotency-Replayed"
)

// responseRecorder перехватывает статус и тело ответа для сохранения
// под idempotency-ключом.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// Idempotency делает POST-запросы повторяемыми: одинаковый ключ с одинаковым
// телом воспроизводит сохранённый ответ, с другим телом отвечает 422, а
// параллельный повтор во время обработки — 409. Запросы без ключа проходят
// без изменений.
func Idempotency(repo domain.IdempotencyRepository, logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(idempotencyHeader)
			if key == "" || repo == nil {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody))
			if err != nil {
				writeBadRequest(w, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(r.Method, r.URL.Path, body)

			_, err = repo.CreateProcessing(key, hash, time.Now().UTC().Add(idempotencyTTL))
			switch {
			case err == nil:
				// Первый запрос с этим ключом: обрабатываем и сохраняем ответ.
			case errors.Is(err, domain.ErrIdempotencyHashMismatch):
				writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
					Error: errorBody{Code: "IDEMPOTENCY_KEY_REUSED", Message: "idempotency key was used with a different request"},
				})
				return
			case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
				replayStored(w, repo, key, logger)
				return
			default:
				logger.WithError(err).Warn("idempotency record create failed, processing without key")
				next.ServeHTTP(w, r)
				return
			}

			recorder := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			markErr := error(nil)
			if recorder.status >= 200 && recorder.status < 300 {
				markErr = repo.MarkDone(key, recorder.body.Bytes(), recorder.status)
			} else {
				markErr = repo.MarkFailed(key, recorder.body.Bytes(), recorder.status)
			}
			if markErr != nil {
				logger.WithError(markErr).WithField("idempotency_key", key).Warn("failed to store idempotent response")
			}
		})
	}
}

// replayStored воспроизводит сохранённый ответ завершённого запроса.
// Если оригинал ещё обрабатывается, повтор получает 409.
func replayStored(w http.ResponseWriter, repo domain.IdempotencyRepository, key string, logger *log.Entry) {
	record, err := repo.Get(key)
	if err != nil {
		logger.WithError(err).WithField("idempotency_key", key).Warn("idempotency record lookup failed")
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: errorBody{Code: "REQUEST_IN_FLIGHT", Message: "original request is still being processed"},
		})
		return
	}

	if record.Status == domain.IdempotencyStatusProcessing {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: errorBody{Code: "REQUEST_IN_FLIGHT", Message: "original request is still being processed"},
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(replayedStatusHeader, "true")
	w.WriteHeader(record.HTTPStatus)
	if len(record.ResponseBody) > 0 {
		if _, err := w.Write(record.ResponseBody); err != nil {
			logger.WithError(err).Warn("failed to write replayed response")
		}
	}
}

func requestHash(method, path string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte{0})
	sum.Write([]byte(path))
	sum.Write([]byte{0})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}
