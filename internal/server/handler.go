package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/plangraph/history"
	"github.com/BaSui01/plangraph/types"
)

// NewHandler 创建运维路由：
//
//	GET /metrics           Prometheus 指标
//	GET /healthz           存活检查
//	GET /runs/{id}         单次运行历史
//	GET /runs?workflow=... 按 workflow、status 或 since/until 查询运行历史
//
// store 为 nil 时不注册 /runs 路由。
func NewHandler(gatherer prometheus.Gatherer, store history.Store, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if store != nil {
		h := &runsHandler{store: store, logger: logger.With(zap.String("component", "runs_api"))}
		mux.HandleFunc("GET /runs/{id}", h.get)
		mux.HandleFunc("GET /runs", h.list)
	}
	return Chain(mux, Recovery(logger), RequestID(), RequestLogger(logger))
}

type runsHandler struct {
	store  history.Store
	logger *zap.Logger
}

func (h *runsHandler) get(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *runsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		runs []*history.Run
		err  error
	)
	switch {
	case q.Get("workflow") != "":
		runs, err = h.store.ListByWorkflow(r.Context(), q.Get("workflow"))
	case q.Get("status") != "":
		runs, err = h.store.ListByStatus(r.Context(), history.Status(q.Get("status")))
	case q.Get("since") != "":
		since, perr := time.Parse(time.RFC3339, q.Get("since"))
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC 3339"})
			return
		}
		until := time.Now()
		if s := q.Get("until"); s != "" {
			if until, perr = time.Parse(time.RFC3339, s); perr != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "until must be RFC 3339"})
				return
			}
		}
		runs, err = h.store.ListByTimeRange(r.Context(), since, until)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "one of workflow, status or since is required"})
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	if runs == nil {
		runs = []*history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *runsHandler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, history.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error(), "code": string(types.ErrRunNotFound)})
		return
	}
	h.logger.Error("history query failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history store unavailable"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
