package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"tdrlane/pkg/db"
	"tdrlane/pkg/domain"
	"tdrlane/pkg/httpx"
	"tdrlane/pkg/ledger"
	"tdrlane/pkg/ratelimiter"
	"tdrlane/services/orchestrator/internal/config"
	"tdrlane/services/orchestrator/internal/docclient"
	"tdrlane/services/orchestrator/internal/engine"
	"tdrlane/services/orchestrator/internal/matchclient"
	"tdrlane/services/orchestrator/internal/metrics"
	"tdrlane/services/orchestrator/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.LoadFromPath(os.Getenv("TDR_CONFIG"))
	catalog, err := config.LoadCatalog(cfg.WorkflowsPath)
	if err != nil {
		log.Fatalf("load workflow catalog: %v", err)
	}

	var st store.Store
	var lg ledger.Store
	if cfg.StoreMode == "postgres" {
		pool := db.MustConnect(cfg.DBURL)
		st = store.NewPG(pool)
		lg = ledger.NewPGStore(pool)
	} else {
		st = store.NewMemory()
		lg = ledger.NewMemoryStore()
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	eng := engine.New(st, lg, engine.Options{
		Catalog:        catalog,
		Matcher:        matchclient.New(cfg.MatchBaseURL),
		Consents:       docclient.New(cfg.DocBaseURL),
		Metrics:        m,
		ComputeTimeout: cfg.ComputeTimeout,
	})

	lim := ratelimiter.New(cfg.RateRPS, cfg.RateBurst, 10*time.Minute)
	r := newRouter(eng, lim, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("orchestrator listening on %s (store=%s)", addr, cfg.StoreMode)
	log.Fatal(http.ListenAndServe(addr, r))
}

func actorFrom(r *http.Request) domain.ActorContext {
	return domain.ActorContext{
		ActorID:  r.Header.Get("X-Actor-Id"),
		Role:     domain.Role(r.Header.Get("X-Actor-Role")),
		Workflow: domain.Workflow(r.Header.Get("X-Actor-Workflow")),
	}
}

// writeEngineError maps domain errors onto the stable HTTP error codes.
func writeEngineError(w http.ResponseWriter, err error) {
	var de *domain.DeniedError
	if errors.As(err, &de) {
		httpx.WriteError(w, 403, domain.CodeActionDenied, de.Message, map[string]any{"reason": string(de.Reason)})
		return
	}
	var te *domain.TransitionError
	if errors.As(err, &te) {
		httpx.WriteError(w, 409, domain.CodeInvalidTransition, te.Error(), map[string]any{"from": string(te.From), "to": string(te.To)})
		return
	}
	var bve *domain.BidValueError
	if errors.As(err, &bve) {
		httpx.WriteError(w, 400, domain.CodeInvalidBidValue, bve.Error(), map[string]any{"field": bve.Field})
		return
	}
	if errors.Is(err, engine.ErrComputationFailed) {
		httpx.WriteError(w, 502, domain.CodeComputationFailed, err.Error(), nil)
		return
	}
	if errors.Is(err, ledger.ErrHalted) {
		httpx.WriteError(w, 409, domain.CodeLedgerIntegrityViolation, err.Error(), nil)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		httpx.WriteError(w, 404, "NOT_FOUND", err.Error(), nil)
		return
	}
	httpx.WriteError(w, 500, "INTERNAL", err.Error(), nil)
}

func roundT(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "t"))
}

func newRouter(eng *engine.Engine, lim *ratelimiter.KeyedLimiter, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// Mutations need an authenticated actor and pass the per-actor limiter.
	requireActor := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := actorFrom(r)
			if r.Method != http.MethodGet {
				if actor.ActorID == "" {
					httpx.WriteError(w, 401, "UNAUTHENTICATED", "X-Actor-Id header is required", nil)
					return
				}
				if !lim.Allow(actor.ActorID, time.Now()) {
					httpx.WriteError(w, 429, "RATE_LIMITED", "too many requests for this actor", nil)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}

	r.Route("/projects", func(api chi.Router) {
		api.Use(requireActor)

		api.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Workflow string         `json:"workflow"`
				Title    string         `json:"title"`
				Metadata map[string]any `json:"metadata"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			rcpt, p, err := eng.CreateProject(r.Context(), actorFrom(r), domain.Workflow(req.Workflow), req.Title, req.Metadata)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "receipt": rcpt, "project": p})
		})

		api.Get("/{project_id}", func(w http.ResponseWriter, r *http.Request) {
			p, err := eng.GetProject(r.Context(), chi.URLParam(r, "project_id"))
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "project": p})
		})

		api.Post("/{project_id}/publish", func(w http.ResponseWriter, r *http.Request) {
			rcpt, p, err := eng.PublishProject(r.Context(), actorFrom(r), chi.URLParam(r, "project_id"))
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "receipt": rcpt, "project": p})
		})

		api.Post("/{project_id}/members", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				ParticipantID string `json:"participant_id"`
				Portal        string `json:"portal"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			rcpt, m, err := eng.Enroll(r.Context(), actorFrom(r), chi.URLParam(r, "project_id"), req.ParticipantID, req.Portal)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "receipt": rcpt, "membership": m})
		})

		api.Get("/{project_id}/members", func(w http.ResponseWriter, r *http.Request) {
			ms, err := eng.ListMemberships(r.Context(), chi.URLParam(r, "project_id"))
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "memberships": ms})
		})

		api.Post("/{project_id}/members:remove", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				ParticipantID string `json:"participant_id"`
				Portal        string `json:"portal"`
				Confirm       bool   `json:"confirm"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			// Removal is destructive for the participant; an explicit confirm
			// flag is required on every call.
			if !req.Confirm {
				httpx.WriteError(w, 400, "CONFIRM_REQUIRED", "set confirm=true to remove a member", nil)
				return
			}
			rcpt, err := eng.RemoveMember(r.Context(), actorFrom(r), chi.URLParam(r, "project_id"), req.ParticipantID, req.Portal)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "receipt": rcpt, "removed": true})
		})

		api.Post("/{project_id}/rounds", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				WindowStart *time.Time `json:"window_start"`
				WindowEnd   *time.Time `json:"window_end"`
			}
			// The window is optional; an empty body opens an unbounded round.
			if err := httpx.ReadJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			rcpt, round, err := eng.OpenRound(r.Context(), actorFrom(r), chi.URLParam(r, "project_id"), domain.BidWindow{Start: req.WindowStart, End: req.WindowEnd})
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 201, map[string]any{"request_id": httpx.NewRequestID(), "receipt": rcpt, "round": round})
		})

		api.Get("/{project_id}/rounds", func(w http.ResponseWriter, r *http.Request) {
			rounds, err := eng.ListRounds(r.Context(), chi.URLParam(r, "project_id"))
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "rounds": rounds})
		})

		api.Get("/{project_id}/rounds/current", func(w http.ResponseWriter, r *http.Request) {
			round, err := eng.CurrentRound(r.Context(), chi.URLParam(r, "project_id"))
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "round": round})
		})

		api.Post("/{project_id}/rounds/{t}/close", func(w http.ResponseWriter, r *http.Request) {
			t, err := roundT(r)
			if err != nil {
				httpx.WriteError(w, 400, "BAD_PARAM", "t must be an integer", nil)
				return
			}
			rcpt, err := eng.CloseRound(r.Context(), actorFrom(r), chi.URLParam(r, "project_id"), t)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "receipt": rcpt})
		})

		api.Post("/{project_id}/rounds/{t}/lock", func(w http.ResponseWriter, r *http.Request) {
			t, err := roundT(r)
			if err != nil {
				httpx.WriteError(w, 400, "BAD_PARAM", "t must be an integer", nil)
				return
			}
			rcpt, err := eng.LockRound(r.Context(), actorFrom(r), chi.URLParam(r, "project_id"), t)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "receipt": rcpt})
		})

		api.Post("/{project_id}/rounds/{t}/bid", func(w http.ResponseWriter, r *http.Request) {
			t, err := roundT(r)
			if err != nil {
				httpx.WriteError(w, 400, "BAD_PARAM", "t must be an integer", nil)
				return
			}
			var req struct {
				Action  string         `json:"action"` // SAVE | SUBMIT
				Payload map[string]any `json:"payload"`
			}
			if err := httpx.ReadJSON(r, &req); err != nil {
				httpx.WriteError(w, 400, "BAD_JSON", err.Error(), nil)
				return
			}
			action := domain.BidAction(req.Action)
			if action != domain.BidSave && action != domain.BidSubmit {
				httpx.WriteError(w, 400, "BAD_PARAM", "action must be SAVE or SUBMIT", nil)
				return
			}
			rcpt, err := eng.UpsertBid(r.Context(), actorFrom(r), chi.URLParam(r, "project_id"), t, req.Payload, action)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "receipt": rcpt})
		})

		api.Get("/{project_id}/rounds/{t}/bid", func(w http.ResponseWriter, r *http.Request) {
			t, err := roundT(r)
			if err != nil {
				httpx.WriteError(w, 400, "BAD_PARAM", "t must be an integer", nil)
				return
			}
			bid, err := eng.MyBid(r.Context(), actorFrom(r), chi.URLParam(r, "project_id"), t)
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "bid": bid})
		})

		api.Post("/{project_id}/rounds/{t}/matching:run", func(w http.ResponseWriter, r *http.Request) {
			runCompute(w, r, eng.RunMatching)
		})
		api.Post("/{project_id}/rounds/{t}/settlement:run", func(w http.ResponseWriter, r *http.Request) {
			runCompute(w, r, eng.RunSettlement)
		})

		api.Get("/{project_id}/rounds/{t}/matching", func(w http.ResponseWriter, r *http.Request) {
			viewResult(w, r, eng.MatchingResult)
		})
		api.Get("/{project_id}/rounds/{t}/settlement", func(w http.ResponseWriter, r *http.Request) {
			viewResult(w, r, eng.SettlementResult)
		})

		api.Get("/{project_id}/ledger", func(w http.ResponseWriter, r *http.Request) {
			entries, err := eng.LedgerEntries(r.Context(), chi.URLParam(r, "project_id"))
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "entries": entries})
		})

		api.Post("/{project_id}/ledger:verify", func(w http.ResponseWriter, r *http.Request) {
			res, err := eng.VerifyLedger(r.Context(), chi.URLParam(r, "project_id"))
			if err != nil {
				writeEngineError(w, err)
				return
			}
			httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "valid": res.Valid, "broken_at": res.BrokenAt, "entries": res.Entries})
		})
	})

	return r
}

type computeFn func(ctx context.Context, actor domain.ActorContext, projectID string, t int, force bool) (store.Result, bool, error)

func runCompute(w http.ResponseWriter, r *http.Request, fn computeFn) {
	t, err := roundT(r)
	if err != nil {
		httpx.WriteError(w, 400, "BAD_PARAM", "t must be an integer", nil)
		return
	}
	force := r.URL.Query().Get("force") == "true"
	res, cached, err := fn(r.Context(), actorFrom(r), chi.URLParam(r, "project_id"), t, force)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "cached": cached, "result": res})
}

type viewFn func(ctx context.Context, actor domain.ActorContext, projectID string, t int) (*store.Result, error)

func viewResult(w http.ResponseWriter, r *http.Request, fn viewFn) {
	t, err := roundT(r)
	if err != nil {
		httpx.WriteError(w, 400, "BAD_PARAM", "t must be an integer", nil)
		return
	}
	res, err := fn(r.Context(), actorFrom(r), chi.URLParam(r, "project_id"), t)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, 200, map[string]any{"request_id": httpx.NewRequestID(), "result": res})
}
