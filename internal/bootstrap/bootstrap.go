// Package bootstrap wires the configuration, certificate authority,
// filter chain, datastore, and proxy engine together into a runnable
// App, and drives its listeners' lifecycle to completion.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/nap32/ohm/internal/config"
	"github.com/nap32/ohm/internal/datastore"
	"github.com/nap32/ohm/internal/datastore/memory"
	"github.com/nap32/ohm/internal/datastore/mongo"
	"github.com/nap32/ohm/internal/filter"
	"github.com/nap32/ohm/internal/metrics"
	"github.com/nap32/ohm/internal/pki"
	"github.com/nap32/ohm/internal/proxy"
	"github.com/nap32/ohm/internal/transport"
)

// App holds every long-lived dependency assembled at startup and the
// set of listeners transport.Serve will drive.
type App struct {
	listeners []transport.Listener
	closers   []func(context.Context) error
}

// Build constructs the proxy engine and its listeners from cfg. The
// returned App is ready for Run; callers are responsible for calling
// Close once Run returns, to release the datastore connection.
func Build(cfg *config.Config) (*App, error) {
	ca, err := pki.Load(cfg.CAKeyRelativePath(), cfg.CAPemRelativePath())
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load CA: %w", err)
	}

	store, closeStore, err := buildDatastore(cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build datastore: %w", err)
	}

	sink := filter.NewDatastoreSink(store, slog.Default().With("component", "filter"))
	chain := filter.New(
		cfg.FilterIdentityProviders(),
		cfg.FilterAllowListHosts(),
		cfg.FilterDenyListHosts(),
		sink,
		slog.Default().With("component", "filter"),
	)

	engine := proxy.New(ca, chain, store, proxy.WithLogger(slog.Default().With("component", "proxy")))

	app := &App{closers: []func(context.Context) error{closeStore}}

	proxyAddr := fmt.Sprintf("127.0.0.1:%d", cfg.NetPort())
	app.listeners = append(app.listeners, newHTTPListener("proxy", proxyAddr, engine, nil))

	if addr := cfg.ObservabilityListenAddress(); addr != "" {
		app.listeners = append(app.listeners, newHTTPListener("metrics", addr, metrics.Handler(), nil))
	}

	return app, nil
}

// buildDatastore connects to MongoDB at cfg.DBURL, or falls back to
// an in-memory store when no URL is configured — convenient for local
// development without a running MongoDB instance.
func buildDatastore(cfg *config.Config) (datastore.Datastore, func(context.Context) error, error) {
	if cfg.DBURL() == "" {
		store := memory.New()
		return store, func(context.Context) error { return nil }, nil
	}

	store, err := mongo.Connect(context.Background(), cfg.DBURL(), cfg.DBName(), cfg.DBTrafficCollectionName(), cfg.DBAuthCollectionName())
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// Run starts every listener and blocks until ctx is cancelled or one
// of them fails, then drains them gracefully.
func (a *App) Run(ctx context.Context) error {
	return transport.Serve(ctx, a.listeners...)
}

// Close releases resources (e.g. the datastore connection) that
// outlive the listeners. Call it after Run returns.
func (a *App) Close(ctx context.Context) error {
	var first error
	for _, closeFn := range a.closers {
		if err := closeFn(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// httpListener adapts an *http.Server into a transport.Listener.
type httpListener struct {
	name string
	addr string
	srv  *http.Server
	log  *slog.Logger
}

func newHTTPListener(name, addr string, handler http.Handler, log *slog.Logger) *httpListener {
	if log == nil {
		log = slog.Default().With("component", name)
	}
	return &httpListener{
		name: name,
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: handler},
		log:  log,
	}
}

func (l *httpListener) Start(ctx context.Context) error {
	l.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	l.log.Info("starting listener", "name", l.name, "address", l.addr)
	if err := l.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%s listener: %w", l.name, err)
	}
	return nil
}

func (l *httpListener) Stop(ctx context.Context) error {
	l.log.Info("shutting down listener", "name", l.name)
	if err := l.srv.Shutdown(ctx); err != nil {
		return l.srv.Close()
	}
	return nil
}
