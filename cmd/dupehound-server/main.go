// Command dupehound-server runs the HTTP API and the job worker in one
// process. SIGINT/SIGTERM drain both.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dupehound/internal/modkit"
	"dupehound/internal/modkit/module"
	"dupehound/internal/modkit/repokit"
	"dupehound/internal/platform/config"
	"dupehound/internal/platform/logger"
	"dupehound/internal/platform/metrics"
	phttp "dupehound/internal/platform/net/http"
	"dupehound/internal/platform/store"

	"dupehound/internal/services/api"
	jobsdom "dupehound/internal/services/jobs/domain"
	scandom "dupehound/internal/services/scans/domain"

	accountsmod "dupehound/internal/services/accounts/module"
	catalogmod "dupehound/internal/services/catalog/module"
	detectmod "dupehound/internal/services/detect/module"
	jobsmod "dupehound/internal/services/jobs/module"
	scansmod "dupehound/internal/services/scans/module"
	workermod "dupehound/internal/services/worker/module"
)

func main() {
	root := config.New()
	dbCfg := root.Prefix("DUPEHOUND_DB_")
	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		AppName: "dupehound",
		DB: store.DBConfig{
			Enabled:     true,
			Path:        dbCfg.MayString("PATH", "dupehound.db"),
			MaxConns:    dbCfg.MayInt("MAX_CONNS", 4),
			SlowQueryMs: dbCfg.MayInt("SLOW_MS", 500),
			LogSQL:      dbCfg.MayBool("LOG_SQL", false),
			JournalMode: dbCfg.MayEnum("JOURNAL_MODE", "WAL", "WAL", "DELETE", "TRUNCATE", "MEMORY"),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// fail the boot if sqlite is not answering
	repokit.MustGuard(context.Background(), st)

	mtr := metrics.New()

	deps := modkit.Deps{
		Cfg:     root,
		DB:      st.DB,
		Log:     *l,
		Metrics: mtr,
	}

	// Build dependency modules bottom up
	jm := jobsmod.New(deps)
	queue := module.MustPortsOf[jobsmod.Ports](jm).Queue

	cm := catalogmod.New(deps)
	catPorts := module.MustPortsOf[catalogmod.Ports](cm)

	am := accountsmod.New(deps)
	accPorts := module.MustPortsOf[accountsmod.Ports](am)

	sm := scansmod.New(deps, queue, catPorts.Repos, catPorts.PRs, accPorts.Resolver)
	scanPorts := module.MustPortsOf[scansmod.Ports](sm)

	dm := detectmod.New(deps, scanPorts.Scans, scanPorts.Groups, catPorts.Repos, catPorts.PRs, accPorts.Resolver)
	detPorts := module.MustPortsOf[detectmod.Ports](dm)

	wm := workermod.New(deps, queue)
	runner := module.MustPortsOf[workermod.Ports](wm).Runner

	for _, mod := range []module.Module{jm, cm, am, sm, dm, wm} {
		module.Register(mod.Name(), mod.Ports())
	}

	for _, p := range scanPorts.Processors {
		runner.Register(p)
	}
	runner.Register(detPorts.Processor)

	// a permanently failed job takes its scan down with it
	runner.SetOnJobFailed(func(ctx context.Context, job *jobsdom.Job, cause error) {
		switch job.Type {
		case scandom.JobTypeScan, scandom.JobTypeIngest, scandom.JobTypeDetect:
		default:
			return
		}
		var p scandom.ScanJobPayload
		if err := scandom.DecodePayload(job.Payload, &p); err != nil || p.ScanID == 0 {
			l.Warn().Str("job_id", job.ID).Str("job_type", job.Type).Msg("failed job carries no scan id")
			return
		}
		if err := scanPorts.Scans.MarkFailed(ctx, p.ScanID, cause.Error()); err != nil {
			l.Error().Err(err).Int64("scan_id", p.ScanID).Msg("mark scan failed")
			return
		}
		mtr.Scan("failed")
	})

	// jobs stranded in running by a previous crash go back to queued
	recovered, err := queue.RecoverRunningJobs(context.Background())
	if err != nil {
		l.Panic().Err(err).Msg("job recovery failed")
	}
	if recovered > 0 {
		l.Info().Int("jobs", recovered).Msg("recovered interrupted jobs")
	}

	// http server (reads CORE_API_PORT)
	srv := phttp.NewServer(root.Prefix("CORE_"))
	api.Mount(srv.Router(), api.Options{
		Config:         root.Prefix("CORE_API_"),
		Store:          st,
		Logger:         l,
		Metrics:        mtr,
		EnableProfiler: root.MayBool("CORE_API_PROFILER", false),
		RequireKey:     root.MayBool("CORE_API_REQUIRE_KEY", false),
		Accounts:       accPorts.Accounts,
		Repos:          catPorts.Repos,
		Scans:          scanPorts.Scans,
		Groups:         scanPorts.Groups,
		Finder:         detPorts.Finder,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner.Start(ctx)

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(ctx) }()

	select {
	case <-ctx.Done():
		l.Info().Msg("shutdown signal received")
	case err := <-errc:
		if err != nil {
			l.Error().Err(err).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("http shutdown")
	}
	runner.Stop()
}
