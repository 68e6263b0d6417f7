package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/josh-kwaku/corebank/internal/auth"
	"github.com/josh-kwaku/corebank/internal/handler"
	"github.com/josh-kwaku/corebank/internal/logging"
	"github.com/josh-kwaku/corebank/internal/repository"
)

type idempotencyRepository interface {
	Get(ctx context.Context, key string, operatorID string) (*repository.IdempotencyCacheEntry, error)
	Claim(ctx context.Context, entry *repository.IdempotencyCacheEntry) (bool, error)
	Complete(ctx context.Context, entry *repository.IdempotencyCacheEntry) error
	Release(ctx context.Context, key string, operatorID string) error
}

const (
	idempotencyTTL = 24 * time.Hour
	// idempotencyLease bounds how long a crashed request keeps its key claimed.
	idempotencyLease = 5 * time.Minute

	headerIdempotentReplayed = "X-Idempotent-Replayed"
)

// Idempotency claims the Idempotency-Key before the handler runs, so a
// retry that arrives while the first attempt is in flight gets a 409 with
// Retry-After instead of a second execution. Completed responses are
// replayed; a reused key with a different body is refused.
func Idempotency(repo idempotencyRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				handler.RespondAppError(w, handler.ErrMissingIdempotencyKey, nil)
				return
			}

			operator, ok := auth.OperatorFromContext(r.Context())
			if !ok {
				handler.RespondAppError(w, handler.ErrMissingToken, nil)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				handler.RespondAppError(w, handler.ErrInvalidRequest, nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			log := logging.FromContext(r.Context()).With("idempotency_key", key)
			reqHash := computeHash(r.Method, r.URL.Path, body)

			now := time.Now().UTC()
			claimed, err := repo.Claim(r.Context(), &repository.IdempotencyCacheEntry{
				Key:         key,
				OperatorID:  operator.OperatorID,
				RequestHash: reqHash,
				CreatedAt:   now,
				ExpiresAt:   now.Add(idempotencyLease),
			})
			if err != nil {
				log.Error("idempotency claim failed", "error", err)
				handler.RespondDomainError(w, err)
				return
			}
			if !claimed {
				replayStored(w, r, repo, log, key, operator.OperatorID, reqHash)
				return
			}

			// The claim outlives a client that hangs up mid-request.
			store := context.WithoutCancel(r.Context())
			settled := false
			defer func() {
				if settled {
					return
				}
				if err := repo.Release(store, key, operator.OperatorID); err != nil {
					log.Error("idempotency release failed", "error", err)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			// 5xx and retryable conflicts are released for another attempt.
			if rec.statusCode >= http.StatusInternalServerError || rec.Header().Get("Retry-After") != "" {
				return
			}

			settled = true
			done := time.Now().UTC()
			entry := &repository.IdempotencyCacheEntry{
				Key:          key,
				OperatorID:   operator.OperatorID,
				RequestHash:  reqHash,
				StatusCode:   rec.statusCode,
				ResponseBody: rec.body.Bytes(),
				CompletedAt:  &done,
				ExpiresAt:    done.Add(idempotencyTTL),
			}
			if err := repo.Complete(store, entry); err != nil {
				log.Error("idempotency cache store failed", "error", err)
			}
		})
	}
}

func replayStored(w http.ResponseWriter, r *http.Request, repo idempotencyRepository, log *slog.Logger, key, operatorID, reqHash string) {
	cached, err := repo.Get(r.Context(), key, operatorID)
	if err != nil {
		log.Error("idempotency cache lookup failed", "error", err)
		handler.RespondDomainError(w, err)
		return
	}
	if cached == nil {
		// Released or expired between our claim and this read.
		handler.RespondAppError(w, handler.ErrIdempotencyInProgress, nil)
		return
	}
	if cached.RequestHash != reqHash {
		handler.RespondAppError(w, handler.ErrIdempotencyConflict, nil)
		return
	}
	if cached.InProgress() {
		handler.RespondAppError(w, handler.ErrIdempotencyInProgress, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(headerIdempotentReplayed, "true")
	w.WriteHeader(cached.StatusCode)
	if _, err := w.Write(cached.ResponseBody); err != nil {
		log.Error("failed to write idempotent replay", "error", err)
	}
}

func computeHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return fmt.Sprintf("%x", h.Sum(nil))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
