package maintenance

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"taskboard/internal/observability"
)

// TokenPruner deletes stale refresh tokens in bounded batches.
type TokenPruner interface {
	CleanupStaleTokens(ctx context.Context, retention time.Duration, batchSize int) (int64, error)
}

// CleanupHandler prunes expired and long-revoked refresh tokens. It is gated
// by a cron secret so only the scheduler can trigger it.
type CleanupHandler struct {
	tokens     TokenPruner
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
}

func NewCleanupHandler(
	tokens TokenPruner,
	logger *observability.Logger,
	cronSecret string,
	retention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		tokens:     tokens,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") ||
		subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), []byte(h.cronSecret)) != 1 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	deleted, err := h.tokens.CleanupStaleTokens(r.Context(), h.retention, h.batchSize)
	if err != nil {
		h.logger.Error("token_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("token_cleanup_completed", map[string]any{
		"deleted_refresh_tokens": deleted,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                 "ok",
		"deleted_refresh_tokens": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
