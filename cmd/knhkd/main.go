// Command knhkd is the single long-running process that wires together
// the hot/warm/cold execution tiers, the lockchain, the beat scheduler,
// and the MAPE-K control loop described by spec.md. It is not a CLI
// surface: it reads its configuration, starts the telemetry HTTP server,
// and drives the beat/warm/MAPE-K loop until signaled.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"

	"github.com/knhk/workflow-kernel/internal/config"
	"github.com/knhk/workflow-kernel/internal/kerrors"
	"github.com/knhk/workflow-kernel/internal/klog"
	"github.com/knhk/workflow-kernel/internal/telemetry"
	"github.com/knhk/workflow-kernel/pkg/beat"
	"github.com/knhk/workflow-kernel/pkg/byzantine"
	"github.com/knhk/workflow-kernel/pkg/coldplanner"
	"github.com/knhk/workflow-kernel/pkg/hotkernel"
	"github.com/knhk/workflow-kernel/pkg/lockchain"
	lockchainstore "github.com/knhk/workflow-kernel/pkg/lockchain/store"
	"github.com/knhk/workflow-kernel/pkg/mapek"
	"github.com/knhk/workflow-kernel/pkg/overlay"
	"github.com/knhk/workflow-kernel/pkg/receipt"
	"github.com/knhk/workflow-kernel/pkg/sigma"
	"github.com/knhk/workflow-kernel/pkg/snapshotstore"
	"github.com/knhk/workflow-kernel/pkg/warmscheduler"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file; defaults are used if empty")
	bindAddr := flag.String("bind", ":8080", "address the telemetry/admission server listens on")
	redisAddr := flag.String("redis-addr", "127.0.0.1:6379", "beat scheduler's Redis address")
	lockchainDSN := flag.String("lockchain-dsn", "", "Postgres DSN for the lockchain store; receipts are kept in-memory only if empty")
	develop := flag.Bool("dev", false, "use human-readable development logging instead of JSON")
	cycleInterval := flag.Duration("cycle-interval", 5*time.Second, "interval between warm epochs and MAPE-K cycles")
	flag.Parse()

	log, err := klog.New(*develop)
	if err != nil {
		panic(err)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error(err, "failed to load configuration", "path", *configPath)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *bindAddr, *redisAddr, *lockchainDSN, *cycleInterval); err != nil {
		log.Error(err, "knhkd exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logr.Logger, bindAddr, redisAddr, lockchainDSN string, cycleInterval time.Duration) error {
	store := snapshotstore.New()
	genesis, err := sigma.Build(nil, nil, nil, nil, nil)
	if err != nil {
		return err
	}
	store.Publish(genesis)
	log.Info("published genesis snapshot", klog.NewFields().SnapshotHash(genesis.Hash()).KV()...)

	chain := lockchain.New()

	var lcStore *lockchainstore.Store
	if lockchainDSN != "" {
		lcStore, err = lockchainstore.Open(ctx, lockchainDSN)
		if err != nil {
			return err
		}
		defer lcStore.Close()
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()
	beatScheduler := beat.New(rdb, cfg.Beat)

	warmSched := warmscheduler.New()
	aggregator := byzantine.NewAggregator(cfg.Byzantine.QuorumSize, cfg.Byzantine.ThresholdFactor)

	coldClient := newAnalysisClient(cfg.ColdPlanner)
	coldPlanner := coldplanner.NewPlanner(
		"cold-planner",
		coldClient,
		coldplanner.BreakerSettings{
			FailureRatio: cfg.ColdPlanner.BreakerFailureRatio,
			MinRequests:  cfg.ColdPlanner.BreakerMinRequests,
			OpenTimeout:  time.Duration(cfg.ColdPlanner.BreakerOpenTimeoutSec) * time.Second,
		},
		store,
		overlay.NewValidator().WithMinSectors(cfg.Validator.MinSectors).WithMaxTicks(uint32(cfg.Validator.MaxTicks)),
		cfg.ColdPlanner.MaxCommitAttempts,
	)

	controller := mapek.NewController(
		cfg.Monitor.MaxHistorySize,
		cfg.Planner.SuccessRateAdmitThreshold,
		mapek.RiskLevel(cfg.Planner.RiskRequiresApproval),
		actionInvoker(log, coldPlanner, store),
		coldPlanner,
	)
	controller.Monitor.RegisterMetric("ring_depth", mapek.MetricResource, 0, float64(cfg.Beat.HighWaterMarkPerDomain), "deltas")

	router := chi.NewRouter()
	router.Mount("/", telemetry.NewServer())
	router.Post("/v1/deltas/{domain}", admitDeltaHandler(log, beatScheduler, controller))

	httpServer := &http.Server{Addr: bindAddr, Handler: router}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.ListenAndServe()
	}()

	var epochID atomic.Uint64

	ticker := time.NewTicker(cycleInterval)
	defer ticker.Stop()

	log.Info("knhkd started", "bind_addr", bindAddr, "redis_addr", redisAddr)

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		case err := <-serverErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ticker.C:
			id := epochID.Add(1)
			if result, err := runWarmEpoch(ctx, store, warmSched, chain, lcStore, id, uint32(cfg.Warm.EpochTickBudget)); err != nil {
				log.Error(err, "warm epoch failed", "epoch_id", id)
			} else if len(result.Dispatched) > 0 {
				log.Info("warm epoch dispatched", "epoch_id", id, "dispatched", len(result.Dispatched), "rolled", len(result.Rolled), "overran", result.Overran)
			}

			if median, flagged, err := aggregateRingDepth(ctx, beatScheduler, aggregator, cfg.Beat.DomainCount); err != nil {
				if kind, ok := kerrors.KindOf(err); !ok || kind != kerrors.KindResourceExhausted {
					log.Error(err, "byzantine ring-depth aggregation failed")
				}
			} else {
				if len(flagged) > 0 {
					log.Info("byzantine aggregation flagged domains", "domains", flagged)
				}
				if err := controller.Monitor.UpdateMetric("ring_depth", median); err != nil {
					log.Error(err, "failed to record ring_depth metric")
				}
			}

			record, pending, err := controller.RunCycle(ctx)
			if err != nil {
				log.Error(err, "MAPE-K cycle failed")
				continue
			}
			fields := klog.NewFields().Component("mapek").Operation("run_cycle")
			log.Info("MAPE-K cycle completed", append(fields.KV(),
				"outcome", record.Outcome, "effectiveness", record.Effectiveness, "pending_approvals", len(pending))...)
		}
	}
}

// admitDeltaHandler stamps an inbound delta with the current beat cycle
// and folds its ring depth into the MAPE-K monitor so a flooded domain
// shows up as a symptom on the next cycle (spec §4.7 admission feeding
// §4.8 monitoring).
func admitDeltaHandler(log logr.Logger, scheduler *beat.Scheduler, controller *mapek.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		domainStr := chi.URLParam(r, "domain")
		domainID, err := strconv.ParseUint(domainStr, 10, 32)
		if err != nil {
			http.Error(w, "invalid domain id", http.StatusBadRequest)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		cycleID, err := scheduler.AdmitDelta(r.Context(), uint32(domainID), body)
		if err != nil {
			if kind, ok := kerrors.KindOf(err); ok && kind == kerrors.KindResourceExhausted {
				http.Error(w, "ring full", http.StatusTooManyRequests)
				return
			}
			log.Error(err, "admit_delta failed", "domain_id", domainID)
			http.Error(w, "admit failed", http.StatusInternalServerError)
			return
		}

		if depth, err := scheduler.RingDepth(r.Context(), uint32(domainID)); err != nil {
			log.Error(err, "failed to read ring depth", "domain_id", domainID)
		} else if err := controller.Monitor.UpdateMetric("ring_depth", float64(depth)); err != nil {
			log.Error(err, "failed to record ring_depth metric")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"cycle_id":` + strconv.FormatUint(cycleID, 10) + `}`))
	}
}

// runWarmEpoch schedules and dispatches one epoch over every hook
// currently registered with warmSched, pinning each hook's own stored
// opcode/window/operands against the store's current snapshot and
// appending a receipt per dispatched hook to both the in-memory lockchain
// and, when lcStore is non-nil, the durable Postgres-backed log. An empty
// hook registry (the common case until hooks are registered out of band)
// is a no-op, not an error.
func runWarmEpoch(ctx context.Context, store *snapshotstore.Store, warmSched *warmscheduler.Scheduler, chain *lockchain.Chain, lcStore *lockchainstore.Store, epochID uint64, tauEpoch uint32) (warmscheduler.DispatchResult, error) {
	hookIDs := warmSched.RegisteredIDs()
	if len(hookIDs) == 0 {
		return warmscheduler.DispatchResult{}, nil
	}

	plan, err := warmSched.ScheduleEpoch(epochID, hookIDs, tauEpoch, hookIDs)
	if err != nil {
		return warmscheduler.DispatchResult{}, err
	}

	ref, ok := store.Current()
	if !ok {
		return warmscheduler.DispatchResult{}, errors.New("no current snapshot to evaluate the epoch against")
	}
	defer ref.Release()
	snap := ref.Snapshot()

	eval := func(ctx context.Context, hookID uint64) (uint32, error) {
		meta, ok := warmSched.Hook(hookID)
		if !ok {
			return 0, kerrors.Wrapf(errors.New("hook not registered"), "resolve hook %d for warm dispatch", hookID)
		}

		var eng hotkernel.Engine
		if err := eng.Pin(snap, meta.Window.Predicate, meta.Window.Offset, meta.Window.Length); err != nil {
			return 0, kerrors.Wrapf(err, "pin run window for hook %d", hookID)
		}
		ir := hotkernel.IR{
			TaskID:     hookID,
			Opcode:     meta.Opcode,
			S:          meta.Operands.S,
			P:          meta.Operands.P,
			O:          meta.Operands.O,
			K:          meta.Operands.K,
			Comparator: meta.Operands.Comparator,
		}
		rctx := receipt.Context{CycleID: epochID, HookID: hookID, SnapshotHash: snap.Hash()}
		_, r, err := eng.EvalBool(ir, rctx)
		if err != nil {
			return 0, kerrors.Wrapf(err, "evaluate hook %d", hookID)
		}

		metadata := map[string]string{"hook_id": strconv.FormatUint(hookID, 10)}
		if _, err := chain.Append(r, metadata); err != nil {
			return 0, kerrors.Wrapf(err, "append hook %d receipt to in-memory lockchain", hookID)
		}

		if lcStore != nil {
			metadataJSON, err := json.Marshal(metadata)
			if err != nil {
				return 0, kerrors.Wrapf(err, "marshal lockchain metadata for hook %d", hookID)
			}
			idx := chain.Len() - 1
			entry, _ := chain.Entry(idx)
			if err := lcStore.AppendEntry(ctx, idx, entry, metadataJSON); err != nil {
				return 0, kerrors.Wrapf(err, "persist hook %d receipt to durable lockchain store", hookID)
			}
		}

		return r.TicksConsumed, nil
	}

	return warmscheduler.Dispatch(ctx, plan, 4, eval)
}

// aggregateRingDepth treats each beat domain's ring depth as one node's
// 1-dimensional contribution and runs it through the Byzantine-tolerant
// aggregator, returning the coordinate-wise median depth across domains
// and the ids of any domain whose reported depth looks like a fault
// rather than honest variance (spec §4.9 applied to §4.7 admission state).
func aggregateRingDepth(ctx context.Context, scheduler *beat.Scheduler, aggregator *byzantine.Aggregator, domainCount int) (float64, []string, error) {
	contributions := make([]byzantine.Contribution, 0, domainCount)
	for d := 0; d < domainCount; d++ {
		depth, err := scheduler.RingDepth(ctx, uint32(d))
		if err != nil {
			return 0, nil, err
		}
		contributions = append(contributions, byzantine.Contribution{
			NodeID: strconv.Itoa(d),
			Vector: []float64{float64(depth)},
		})
	}

	result, err := aggregator.Aggregate(contributions)
	if err != nil {
		return 0, nil, err
	}
	return result.Median[0], result.Byzantine, nil
}

// newAnalysisClient wires the real Anthropic client when an API key is
// present in the environment, and falls back to the local no-op client
// otherwise — a cold planner with nothing to call still proposes no
// changes rather than blocking startup (spec §4.5).
func newAnalysisClient(cfg config.ColdPlannerConfig) coldplanner.AnalysisClient {
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		return coldplanner.NullClient{}
	}
	return coldplanner.NewAnthropicClient(cfg.Model)
}

// actionInvoker runs a MAPE-K action. Restructure-class actions are
// cold-path: they ask the cold planner to propose an overlay against the
// store's current snapshot instead of invoking anything directly, so
// Execute's subsequent Promote call has something staged to commit.
// Every other action type is a local remediation with no external effect
// modeled here.
func actionInvoker(log logr.Logger, planner *coldplanner.Planner, store *snapshotstore.Store) mapek.Invoker {
	return func(ctx context.Context, action mapek.Action) (mapek.ExecutionStatus, string, error) {
		if action.Type != mapek.ActionRestructure {
			return mapek.StatusSuccessful, "applied " + string(action.Type) + " action: " + action.Description, nil
		}

		baseHash, _ := store.Hash()
		result, err := planner.Propose(ctx, action.ID, baseHash, coldplanner.RootCauseRequest{
			Problem: action.Description,
			Context: map[string]string{"target": action.Target},
		})
		if err != nil {
			log.Error(err, "cold planner proposal failed", "action_id", action.ID.String())
			return mapek.StatusFailed, "", err
		}
		return mapek.StatusSuccessful, result.Summary, nil
	}
}
