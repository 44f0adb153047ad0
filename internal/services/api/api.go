// Package api provides the HTTP API for the application
package api

import (
	"context"

	"dupehound/internal/platform/config"
	"dupehound/internal/platform/logger"
	"dupehound/internal/platform/metrics"
	phttp "dupehound/internal/platform/net/http"
	"dupehound/internal/platform/store"

	"dupehound/internal/modkit"
	"dupehound/internal/modkit/httpkit"
	"dupehound/internal/modkit/module"

	accdom "dupehound/internal/services/accounts/domain"
	catdom "dupehound/internal/services/catalog/domain"
	detdom "dupehound/internal/services/detect/domain"
	scandom "dupehound/internal/services/scans/domain"

	accountsmod "dupehound/internal/services/api/accounts/module"
	metahttp "dupehound/internal/services/api/meta/http"
	metamod "dupehound/internal/services/api/meta/module"
	reposmod "dupehound/internal/services/api/repos/module"
	scansmod "dupehound/internal/services/api/scans/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
	EnableProfiler bool

	// RequireKey rejects requests without an account api key instead of
	// letting them through anonymous
	RequireKey bool

	// core service ports the transport modules adapt
	Accounts accdom.AccountsPort
	Repos    catdom.ReposPort
	Scans    scandom.ScansPort
	Groups   scandom.GroupsPort
	Finder   detdom.FinderPort
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	// shared deps for modules
	deps := modkit.Deps{
		Log:     *opt.Logger,
		Cfg:     opt.Config,
		DB:      opt.Store.DB,
		Metrics: opt.Metrics,
	}

	mods := []module.Module{
		metamod.New(deps),
		accountsmod.New(modkit.WithPorts(accountsmod.Ports{
			Accounts: opt.Accounts,
		})),
		reposmod.New(modkit.WithPorts(reposmod.Ports{
			Repos:  opt.Repos,
			Finder: opt.Finder,
		})),
		scansmod.New(modkit.WithPorts(scansmod.Ports{
			Scans:  opt.Scans,
			Groups: opt.Groups,
		})),
	}

	// versioned API with a common middleware stack; account keys resolve on
	// every request so handlers can hold callers to their own account
	stack := httpkit.CommonStack(opt.Config.MayCSV("CORS_ORIGINS", nil))
	if opt.Accounts != nil {
		keys := httpkit.KeyFunc(func(ctx context.Context, key string) (int64, error) {
			a, err := opt.Accounts.GetByAPIKey(ctx, key)
			if err != nil {
				return 0, err
			}
			return a.ID, nil
		})
		stack = append(stack, httpkit.AccountAuth(keys, opt.RequireKey))
	}

	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			// register each module's ports under its own name (for cross-module lookups)
			module.Register(m.Name(), m.Ports())

			// mount module routes under its Prefix()
			m.MountRoutes(api)
		}
	})

	// liveness, build info and the metrics endpoint stay at the server root
	httpkit.Get(r, "/healthz", metahttp.Healthz)
	httpkit.Get(r, "/version", metahttp.Version)
	r.Handle("/metrics", metrics.Handler())
}
