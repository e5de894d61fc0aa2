package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"post-purge/internal/models/entities"
	"post-purge/internal/models/ports"
)

const maxRequestBody = 1 << 20

type Handler struct {
	purgeUseCase   ports.PurgeUseCase
	streamInterval time.Duration
	logger         *zap.Logger
}

type startRunRequest struct {
	IDs []string `json:"ids"`
}

// NewHandler создает новый обработчик HTTP-запросов
func NewHandler(uc ports.PurgeUseCase, streamInterval time.Duration, logger *zap.Logger) *Handler {
	if streamInterval <= 0 {
		streamInterval = time.Second
	}

	return &Handler{
		purgeUseCase:   uc,
		streamInterval: streamInterval,
		logger:         logger,
	}
}

// RegisterRoutes регистрирует пути API
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/health", h.HandleHealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/account", h.HandleAccount).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/posts", h.HandleListPosts).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/runs", h.HandleStartRun).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/runs/current", h.HandleCancelRun).Methods(http.MethodDelete)
	r.HandleFunc("/api/v1/status", h.HandleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/status/progress", h.HandleProgress).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/status/stream", h.HandleStatusStream).Methods(http.MethodGet)
}

// HandleHealthCheck проверяет работоспособность сервиса
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// HandleAccount возвращает учетную запись, под которой работает сервис
func (h *Handler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	account := h.purgeUseCase.Account()
	if account == nil {
		h.respondWithDomainError(w, entities.ErrNotInitialized)
		return
	}

	h.respondWithJSON(w, http.StatusOK, account)
}

// HandleListPosts возвращает последние посты пользователя
func (h *Handler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			h.respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = v
	}

	posts, err := h.purgeUseCase.ListRecentPosts(r.Context(), limit)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"posts": posts,
		"count": len(posts),
	})
}

// HandleStartRun запускает асинхронное удаление выбранных постов
func (h *Handler) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest

	// Декодируем JSON-запрос
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	runID, err := h.purgeUseCase.StartRun(r.Context(), req.IDs)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusAccepted, map[string]string{
		"run_id":     runID,
		"status":     "running",
		"status_url": "/api/v1/status",
	})
}

// HandleCancelRun отменяет активный запуск
func (h *Handler) HandleCancelRun(w http.ResponseWriter, r *http.Request) {
	if err := h.purgeUseCase.CancelRun(); err != nil {
		h.respondWithDomainError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "canceling"})
}

// HandleStatus возвращает состояние сервиса и прогресс
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, h.purgeUseCase.QueryStatus())
}

// HandleProgress возвращает только процент выполнения
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, map[string]int{
		"percent": h.purgeUseCase.QueryProgressPercent(),
	})
}

// HandleStatusStream отправляет состояние как Server-Sent Events, пока запуск активен
func (h *Handler) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	// Поток живет дольше WriteTimeout сервера
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("Cannot clear write deadline", zap.Error(err))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	for {
		status := h.purgeUseCase.QueryStatus()

		data, err := json.Marshal(status)
		if err != nil {
			h.logger.Error("Error encoding status", zap.Error(err))
			return
		}

		if _, err := fmt.Fprintf(w, "event: status\ndata: %s\n\n", data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			h.logger.Warn("Streaming is not supported", zap.Error(err))
			return
		}

		if !status.Running {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// Вспомогательные функции для ответов

// respondWithDomainError отображает ошибки сервиса на коды HTTP
func (h *Handler) respondWithDomainError(w http.ResponseWriter, err error) {
	if te, ok := entities.IsThrottle(err); ok {
		retryAfter := 0
		if te.Signal.ResetEpochSeconds != nil {
			if d := time.Until(time.Unix(*te.Signal.ResetEpochSeconds, 0)); d > 0 {
				retryAfter = int(d.Seconds()) + 1
			}
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.respondWithJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":       te.Error(),
			"retry_after": retryAfter,
		})
		return
	}

	switch {
	case errors.Is(err, entities.ErrNotInitialized), errors.Is(err, entities.ErrShuttingDown):
		h.respondWithError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, entities.ErrAlreadyInProgress):
		h.respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, entities.ErrNoActiveRun):
		h.respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrAuth):
		h.respondWithError(w, http.StatusUnauthorized, err.Error())
	default:
		var domainErr entities.DomainError
		if errors.As(err, &domainErr) {
			h.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Request failed", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]string{"error": message})
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	// Устанавливаем заголовок Content-Type
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	// Кодируем ответ в JSON
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Error encoding response", zap.Error(err))
	}
}
