package queue

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/donkicalc-api/internal/common"
)

// Inspector is the subset of *asynq.Inspector the admin endpoints need.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
	RunAllArchivedTasks(queue string) (int, error)
}

// AdminHandler exposes queue stats and archived (dead-lettered) task replay.
type AdminHandler struct {
	Inspector Inspector
	Queue     string
	PageSize  int
	Logger    zerolog.Logger
}

// Stats returns the queue counters and refreshes the depth gauges.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue inspector unavailable", nil)
		return
	}
	info, err := h.Inspector.GetQueueInfo(h.queue())
	if errors.Is(err, asynq.ErrQueueNotFound) {
		common.Data(w, http.StatusOK, queueStats{Queue: h.queue()})
		return
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	QueueDepth.WithLabelValues(info.Queue).Set(float64(info.Pending + info.Scheduled + info.Retry))
	QueueArchivedSize.WithLabelValues(info.Queue).Set(float64(info.Archived))
	common.Data(w, http.StatusOK, queueStats{
		Queue:     info.Queue,
		Pending:   info.Pending,
		Active:    info.Active,
		Scheduled: info.Scheduled,
		Retry:     info.Retry,
		Archived:  info.Archived,
		Processed: info.Processed,
		Failed:    info.Failed,
		LatencyMS: info.Latency.Milliseconds(),
		Paused:    info.Paused,
	})
}

// ListArchived pages through tasks that exhausted their retries.
func (h *AdminHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue inspector unavailable", nil)
		return
	}
	size, page := parsePagination(r, h.pageSize())
	tasks, err := h.Inspector.ListArchivedTasks(h.queue(), asynq.PageSize(size), asynq.Page(page))
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
		return
	}
	items := make([]archivedItem, 0, len(tasks))
	for _, t := range tasks {
		item := archivedItem{
			ID:       t.ID,
			Type:     t.Type,
			Retried:  t.Retried,
			MaxRetry: t.MaxRetry,
			LastErr:  t.LastErr,
		}
		if !t.LastFailedAt.IsZero() {
			failedAt := t.LastFailedAt
			item.LastFailedAt = &failedAt
		}
		if t.Type == TypeRatesRefresh {
			if p, err := DecodeRefreshPayload(t.Payload); err == nil {
				item.RequestedBy = p.RequestedBy
			}
		}
		items = append(items, item)
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"page": page,
		"size": size,
	})
}

// ReplayArchived moves archived tasks back to pending, either by id or all of them.
func (h *AdminHandler) ReplayArchived(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "queue inspector unavailable", nil)
		return
	}
	var req replayRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	ids := uniqueStrings(req.IDs)
	if len(ids) == 0 && !req.All {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "ids or all required", nil)
		return
	}

	if len(ids) == 0 {
		n, err := h.Inspector.RunAllArchivedTasks(h.queue())
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
			return
		}
		h.Logger.Info().Int("count", n).Msg("archived tasks replayed")
		common.Data(w, http.StatusOK, map[string]any{"replayed": n})
		return
	}

	replayed := make([]string, 0, len(ids))
	failed := make(map[string]string)
	for _, id := range ids {
		if err := h.Inspector.RunTask(h.queue(), id); err != nil {
			failed[id] = err.Error()
			continue
		}
		replayed = append(replayed, id)
	}
	resp := map[string]any{"replayed": replayed}
	if len(failed) > 0 {
		resp["failed"] = failed
	}
	common.Data(w, http.StatusOK, resp)
}

func (h *AdminHandler) queue() string {
	if h.Queue == "" {
		return DefaultQueue
	}
	return h.Queue
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}

// parsePagination reads limit and a 1-based page from the query string.
func parsePagination(r *http.Request, defaultLimit int) (limit, page int) {
	limit = defaultLimit
	page = 1
	if limit <= 0 {
		limit = 50
	}
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			page = parsed
		}
	}
	return
}

func uniqueStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

type queueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	LatencyMS int64  `json:"latencyMs"`
	Paused    bool   `json:"paused"`
}

type archivedItem struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	RequestedBy  string     `json:"requestedBy,omitempty"`
	Retried      int        `json:"retried"`
	MaxRetry     int        `json:"maxRetry"`
	LastErr      string     `json:"lastError,omitempty"`
	LastFailedAt *time.Time `json:"lastFailedAt,omitempty"`
}

type replayRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}
