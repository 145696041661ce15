package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"criptosee-api/internal/config"
	cronrunner "criptosee-api/internal/cron"
	"criptosee-api/internal/jobs"
	"criptosee-api/internal/svc"
)

const shutdownTimeout = 10 * time.Second

var (
	configFile = flag.String("f", "etc/criptosee.yaml", "config file")
	runOnce    = flag.String("once", "", "run a single job and exit: sync|predict|evaluate")
)

func main() {
	flag.Parse()

	c := config.MustLoad(*configFile)
	if err := c.SetUp(); err != nil {
		log.Fatalf("setup failed: %v", err)
	}
	defer logx.Close()

	svcCtx := svc.NewServiceContext(*c)
	if svcCtx.Store == nil {
		log.Fatal("postgres DSN is required for the scheduler")
	}
	if svcCtx.LLM == nil {
		log.Fatal("llm config is required for the scheduler")
	}

	jc := svcCtx.JobsConfig
	perPage, maxPages := 0, 0
	if providerCfg := c.Provider.Value; providerCfg != nil {
		perPage, maxPages = providerCfg.PerPage, providerCfg.MaxPages
	}

	syncJob := jobs.NewSyncJob(svcCtx.Provider, svcCtx.Store, perPage, maxPages, jc.HistoryKeep)
	predictJob := jobs.NewPredictJob(svcCtx.Store, svcCtx.LLM, svcCtx.PromptTmpl, jc.Model, jc.HistoryWindow, jc.LeaseTTL)
	evaluateJob := jobs.NewEvaluateJob(svcCtx.Store, jc.EvaluateBatch)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *runOnce != "" {
		if err := runSingle(ctx, *runOnce, syncJob, predictJob, evaluateJob); err != nil {
			log.Fatalf("job %s failed: %v", *runOnce, err)
		}
		return
	}

	runner := cronrunner.New(ctx)
	mustAdd(runner, jc.SyncSchedule, logged("sync", syncJob.Run))
	mustAdd(runner, jc.EvaluateSchedule, logged("evaluate", evaluateJob.Run))
	for _, tier := range jobs.Tiers {
		tier := tier
		mustAdd(runner, jc.Schedule(tier.Name), logged("predict:"+tier.Name, func(ctx context.Context) error {
			return predictJob.RunTier(ctx, tier)
		}))
	}
	runner.Start()

	// Prime the tables before the first scheduled ticks fire.
	go func() {
		logged("sync", syncJob.Run)(ctx)
		logged("predict", predictJob.Run)(ctx)
		logged("evaluate", evaluateJob.Run)(ctx)
	}()

	<-ctx.Done()
	logx.Info("shutdown signal received")

	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()
	select {
	case <-done:
		logx.Info("all jobs stopped cleanly")
	case <-time.After(shutdownTimeout):
		logx.Error("shutdown timeout exceeded, forcing exit")
	}
}

func runSingle(ctx context.Context, name string, syncJob *jobs.SyncJob, predictJob *jobs.PredictJob, evaluateJob *jobs.EvaluateJob) error {
	switch name {
	case "sync":
		return syncJob.Run(ctx)
	case "predict":
		return predictJob.Run(ctx)
	case "evaluate":
		return evaluateJob.Run(ctx)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
}

func mustAdd(runner *cronrunner.Runner, spec string, job func(context.Context)) {
	if _, err := runner.Add(spec, job); err != nil {
		log.Fatalf("bad cron spec %q: %v", spec, err)
	}
}

func logged(name string, run func(context.Context) error) func(context.Context) {
	return func(ctx context.Context) {
		err := run(ctx)
		if err == nil || errors.Is(err, jobs.ErrLockHeld) || errors.Is(err, context.Canceled) {
			return
		}
		logx.WithContext(ctx).Errorw("job failed",
			logx.Field("job", name), logx.Field("error", err.Error()))
	}
}
