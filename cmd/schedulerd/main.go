package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/terminal-bench/tempermill/internal/engine"
	"github.com/terminal-bench/tempermill/internal/risk"
	"github.com/terminal-bench/tempermill/pkg/cache"
	"github.com/terminal-bench/tempermill/pkg/circuit"
	"github.com/terminal-bench/tempermill/pkg/errs"
	"github.com/terminal-bench/tempermill/pkg/lock"
	"github.com/terminal-bench/tempermill/pkg/messaging"
	"github.com/terminal-bench/tempermill/pkg/repository/postgres"
	"github.com/terminal-bench/tempermill/shared/events"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8090"
	}

	dbURL := os.Getenv("DATABASE_URL")
	natsURL := os.Getenv("NATS_URL")
	etcdEndpoints := os.Getenv("ETCD_ENDPOINTS")
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	ctx := context.Background()

	repo, err := postgres.Open(ctx, dbURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer repo.Close()

	var endpoints []string
	if etcdEndpoints != "" {
		endpoints = strings.Split(etcdEndpoints, ",")
	}
	lockManager, err := lock.NewManager(lock.Config{Endpoints: endpoints})
	if err != nil {
		log.Fatalf("failed to connect to etcd: %v", err)
	}
	defer lockManager.Close()

	natsClient, err := messaging.NewClient(messaging.Config{
		URL:            natsURL,
		Name:           "schedulerd",
		ReconnectWait:  time.Second,
		MaxReconnects:  5,
	})
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	breakers := circuit.NewBreakerGroup(circuit.Config{
		MaxFailures: 5,
		Timeout:     10 * time.Second,
		HalfOpenMax: 2,
	})

	riskCache := cache.New(redisAddr, 30*time.Second)
	defer riskCache.Close()

	eng := engine.New(repo).WithCache(riskCache)

	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	r.POST("/api/v1/plans/:plan_id/schedule", withPlanLock(lockManager, breakers, func(c *gin.Context, planID int32) {
		result, err := eng.BuildSchedule(c.Request.Context(), planID)
		if err != nil {
			respondErr(c, err)
			return
		}
		publishPlanScheduled(natsClient, planID, result)
		c.JSON(http.StatusOK, gin.H{"plan": result.Plan, "items": result.Items, "evaluation": result.Eval})
	}))

	r.GET("/api/v1/plans/:plan_id/risk", withPlanID(func(c *gin.Context, planID int32) {
		analysis, err := eng.RiskAnalysis(c.Request.Context(), planID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, analysis)
	}))

	r.POST("/api/v1/plans/:plan_id/risk/ignore", withPlanLock(lockManager, breakers, func(c *gin.Context, planID int32) {
		var req struct {
			ConstraintType string `json:"constraint_type"`
			CoilID         string `json:"material_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := eng.IgnoreRisk(c.Request.Context(), planID, req.ConstraintType, req.CoilID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}))

	r.POST("/api/v1/plans/:plan_id/risk/unignore", withPlanLock(lockManager, breakers, func(c *gin.Context, planID int32) {
		var req struct {
			ConstraintType string `json:"constraint_type"`
			CoilID         string `json:"material_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := eng.UnignoreRisk(c.Request.Context(), planID, req.ConstraintType, req.CoilID); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "unignored"})
	}))

	r.POST("/api/v1/plans/:plan_id/risk/apply-suggestion", withPlanLock(lockManager, breakers, func(c *gin.Context, planID int32) {
		var req struct {
			ConstraintType string `json:"constraint_type"`
			CoilID         string `json:"material_id"`
			Sequence       int    `json:"sequence"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := eng.ApplyRiskSuggestion(c.Request.Context(), planID, risk.ViolationItem{
			ConstraintType: req.ConstraintType, CoilID: req.CoilID, Sequence: req.Sequence,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}))

	r.POST("/api/v1/plans/:plan_id/undo", withPlanLock(lockManager, breakers, func(c *gin.Context, planID int32) {
		actionType, remaining, err := eng.Undo(c.Request.Context(), planID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"action_type": actionType, "remaining": remaining})
	}))

	r.POST("/api/v1/plans/:plan_id/redo", withPlanLock(lockManager, breakers, func(c *gin.Context, planID int32) {
		actionType, remaining, err := eng.Redo(c.Request.Context(), planID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"action_type": actionType, "remaining": remaining})
	}))

	r.GET("/api/v1/plans/:plan_id/undo-redo-count", withPlanID(func(c *gin.Context, planID int32) {
		undoCount, redoCount, err := eng.UndoRedoCounts(c.Request.Context(), planID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"undo": undoCount, "redo": redoCount})
	}))

	r.GET("/api/v1/coils/waiting-forecast", func(c *gin.Context) {
		buckets, err := eng.WaitingForecast(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, buckets)
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown:", err)
	}
}

// withPlanID parses the :plan_id path parameter before calling fn.
func withPlanID(fn func(c *gin.Context, planID int32)) gin.HandlerFunc {
	return func(c *gin.Context) {
		planID, err := parsePlanID(c.Param("plan_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan_id"})
			return
		}
		fn(c, planID)
	}
}

// withPlanLock wraps fn with a distributed per-plan lock and a named
// circuit breaker. Only lock-acquisition errors count toward the
// breaker; fn answers its own errors and they are not counted.
func withPlanLock(lockManager *lock.Manager, breakers *circuit.BreakerGroup, fn func(c *gin.Context, planID int32)) gin.HandlerFunc {
	return withPlanID(func(c *gin.Context, planID int32) {
		ctx := c.Request.Context()

		err := breakers.Execute(ctx, "plan-lock", func() error {
			planLock, err := lockManager.Acquire(ctx, planID)
			if err != nil {
				return err
			}
			defer planLock.Unlock(ctx)

			fn(c, planID)
			return nil
		})
		if err == circuit.ErrCircuitOpen {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "plan locking temporarily unavailable"})
		}
	})
}

// publishPlanScheduled wraps the scheduling result in the shared event
// envelope and publishes it over NATS. A publish failure is logged but
// never fails the request — the schedule was already persisted.
func publishPlanScheduled(natsClient *messaging.Client, planID int32, result engine.ScheduleResult) {
	evt, err := events.NewEvent(events.PlanScheduled, planID, "plan", events.PlanScheduledData{
		PlanID:        planID,
		StrategyID:    result.Plan.StrategyID,
		TotalCount:    result.Eval.Metrics.TotalCount,
		TotalWeight:   result.Eval.Metrics.TotalWeight,
		RollChanges:   result.Eval.Metrics.RollChangeCount,
		ScoreOverall:  float64(result.Eval.ScoreOverall),
	}, events.Metadata{Source: "schedulerd"})
	if err != nil {
		log.Printf("build plan.scheduled event: %v", err)
		return
	}
	if err := natsClient.Publish("tempermill.plan.scheduled", evt); err != nil {
		log.Printf("publish plan.scheduled: %v", err)
	}
}

func parsePlanID(raw string) (int32, error) {
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.PlanNotFound:
		status = http.StatusNotFound
	case errs.NothingToUndo, errs.NothingToRedo, errs.InvalidInput:
		status = http.StatusBadRequest
	case errs.ConstraintViolation:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
