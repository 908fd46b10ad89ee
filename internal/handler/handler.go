package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/tablegate/tablegate/internal/cache"
	"github.com/tablegate/tablegate/internal/engine"
	"github.com/tablegate/tablegate/internal/exec"
	"github.com/tablegate/tablegate/internal/schema"
)

// exactCountThreshold is the planner estimate below which we run an exact
// count. Above this, the estimate is returned directly.
const exactCountThreshold = 50_000

type Handler struct {
	exec     exec.Executor
	registry *schema.Registry
	cache    *cache.Cache
}

func New(ex exec.Executor, registry *schema.Registry, c *cache.Cache) *Handler {
	return &Handler{exec: ex, registry: registry, cache: c}
}

// Routes registers all table API routes on the router.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/api/{table}", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/{table}/count", h.Count).Methods(http.MethodGet)
	r.HandleFunc("/api/{table}/aggregate", h.Aggregate).Methods(http.MethodGet)
	r.HandleFunc("/api/{table}/grouped", h.Grouped).Methods(http.MethodGet)
	r.HandleFunc("/api/{table}/tree", h.Tree).Methods(http.MethodGet)
	r.HandleFunc("/api/{table}/{id}", h.GetByID).Methods(http.MethodGet)
}

// engineFor builds the per-request engine for a registered table.
func (h *Handler) engineFor(r *http.Request) (*engine.Engine, *engine.Params, error) {
	name := mux.Vars(r)["table"]
	cfg := h.registry.Get(name)
	if cfg == nil {
		return nil, nil, engine.NotFoundErr("no table registered as " + name)
	}
	params, err := ParseParams(r)
	if err != nil {
		return nil, nil, err
	}
	eng, err := engine.New(cfg, h.exec.Dialect())
	if err != nil {
		return nil, nil, err
	}
	return eng, params, nil
}

// List handles GET /api/{table}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	eng, params, err := h.engineFor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	key := cache.Key(eng.Config().Name, r.URL.RawQuery, params.Roles, params.Tenant)
	result, err := h.cache.Get(r.Context(), key, func(ctx context.Context) (any, error) {
		return h.list(ctx, eng, params)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) list(ctx context.Context, eng *engine.Engine, params *engine.Params) (*engine.Envelope, error) {
	plan, err := eng.Compile(params)
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)

	var total *int64
	if !plan.CursorMode {
		g.Go(func() error {
			n, err := h.resolveCount(ctx, plan)
			if err != nil {
				return err
			}
			total = &n
			return nil
		})
	}

	var rows []map[string]any
	g.Go(func() error {
		sqlStr, args, err := plan.BuildList()
		if err != nil {
			return err
		}
		rows, err = h.exec.Query(ctx, sqlStr, args...)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, wrapExecErr(err)
	}

	data, meta := plan.ShapeRows(rows, params)
	meta.Total = total
	return &engine.Envelope{Data: data, Meta: meta}, nil
}

// GetByID handles GET /api/{table}/{id}.
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	eng, params, err := h.engineFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	plan, err := eng.Compile(params)
	if err != nil {
		writeError(w, err)
		return
	}
	sqlStr, args, err := plan.BuildGet(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.exec.Query(r.Context(), sqlStr, args...)
	if err != nil {
		writeError(w, wrapExecErr(err))
		return
	}
	if len(rows) == 0 {
		writeError(w, engine.NotFoundErr("record not found"))
		return
	}
	data, _ := plan.ShapeRows(rows, params)
	writeJSON(w, http.StatusOK, map[string]any{"data": data[0]})
}

// Count handles GET /api/{table}/count and always returns the exact count.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	eng, params, err := h.engineFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	plan, err := eng.Compile(params)
	if err != nil {
		writeError(w, err)
		return
	}
	sqlStr, args, err := plan.BuildCount()
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := h.exec.QueryValue(r.Context(), sqlStr, args...)
	if err != nil {
		writeError(w, wrapExecErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

// Aggregate handles GET /api/{table}/aggregate.
func (h *Handler) Aggregate(w http.ResponseWriter, r *http.Request) {
	eng, params, err := h.engineFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	plan, err := eng.Compile(params)
	if err != nil {
		writeError(w, err)
		return
	}
	sqlStr, args, err := plan.BuildAggregate()
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.exec.Query(r.Context(), sqlStr, args...)
	if err != nil {
		writeError(w, wrapExecErr(err))
		return
	}
	aggs := map[string]any{}
	if len(rows) > 0 {
		aggs = rows[0]
	}
	writeJSON(w, http.StatusOK, map[string]any{"aggregations": aggs})
}

// Grouped handles GET /api/{table}/grouped.
func (h *Handler) Grouped(w http.ResponseWriter, r *http.Request) {
	eng, params, err := h.engineFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	plan, err := eng.Compile(params)
	if err != nil {
		writeError(w, err)
		return
	}
	sqlStr, args, err := plan.BuildGrouped()
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.exec.Query(r.Context(), sqlStr, args...)
	if err != nil {
		writeError(w, wrapExecErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Tree handles GET /api/{table}/tree.
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	eng, params, err := h.engineFor(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sqlStr, args, err := eng.BuildTree(params)
	if err != nil {
		writeError(w, err)
		return
	}
	rows, err := h.exec.Query(r.Context(), sqlStr, args...)
	if err != nil {
		writeError(w, wrapExecErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": rows})
}

// resolveCount uses the planner-estimate trick for cheap counting on large
// tables, falling back to an exact count when the estimate is small or the
// dialect lacks estimation.
func (h *Handler) resolveCount(ctx context.Context, plan *engine.Plan) (int64, error) {
	if engine.Supports(h.exec.Dialect(), engine.FeatureEstimatedCount) {
		estSQL, estArgs, err := plan.BuildEstimate()
		if err == nil {
			if v, err := h.exec.QueryValue(ctx, "EXPLAIN (FORMAT JSON) "+estSQL, estArgs...); err == nil {
				if estimated := parsePlanRows(v); estimated > exactCountThreshold {
					return estimated, nil
				}
			}
		}
	}

	countSQL, countArgs, err := plan.BuildCount()
	if err != nil {
		return 0, err
	}
	v, err := h.exec.QueryValue(ctx, countSQL, countArgs...)
	if err != nil {
		return 0, err
	}
	return toInt64(v), nil
}

// parsePlanRows extracts "Plan Rows" from EXPLAIN (FORMAT JSON) output.
func parsePlanRows(v any) int64 {
	var raw []byte
	switch t := v.(type) {
	case string:
		raw = []byte(t)
	case []byte:
		raw = t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return 0
		}
		raw = b
	}
	var plan []struct {
		Plan struct {
			PlanRows float64 `json:"Plan Rows"`
		} `json:"Plan"`
	}
	if err := json.Unmarshal(raw, &plan); err != nil || len(plan) == 0 {
		return 0
	}
	return int64(plan[0].Plan.PlanRows)
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	}
	return 0
}

// wrapExecErr keeps engine errors typed and hides driver errors.
func wrapExecErr(err error) error {
	if _, ok := err.(*engine.Error); ok {
		return err
	}
	return engine.QueryErr(err)
}
