package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/maple-obs/maple-ingest/modules/auth"
	"github.com/maple-obs/maple-ingest/modules/forwarder"
	"github.com/maple-obs/maple-ingest/modules/receiver"
	"github.com/maple-obs/maple-ingest/modules/usage"
)

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second

	idleConnTimeout    = 30 * time.Second
	maxIdleConnPerHost = 5
)

// App wires the gateway's components and owns their lifecycle.
type App struct {
	cfg     *Config
	logger  log.Logger
	store   *auth.Store
	tracker *usage.Tracker
	server  *http.Server
}

// New builds the full gateway: key store, resolver, forwarder, optional
// usage tracker and the HTTP surface. Any error is a startup failure.
func New(cfg *Config, logger log.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	store, err := auth.OpenStore(ctx, auth.StoreConfig{
		URL:       cfg.DBURL,
		AuthToken: cfg.DBAuthToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init key store")
	}

	resolver := auth.NewResolver(store, cfg.LookupHMACKey)

	// One pooled client per role: the forwarder gets the per-request timeout
	// ceiling, the tracker keeps the client default.
	forwardClient := &http.Client{
		Timeout: cfg.ForwardTimeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: maxIdleConnPerHost,
			IdleConnTimeout:     idleConnTimeout,
		},
	}
	fwd := forwarder.New(cfg.ForwardEndpoint, forwardClient, logger)

	var tracker *usage.Tracker
	if cfg.MeteringEnabled() {
		tracker = usage.New(usage.Config{
			SecretKey:     cfg.AutumnSecretKey,
			APIURL:        cfg.AutumnAPIURL,
			FlushInterval: cfg.AutumnFlushInterval,
		}, &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: maxIdleConnPerHost,
				IdleConnTimeout:     idleConnTimeout,
			},
		}, logger)
	}

	rcv := receiver.New(receiver.Config{
		MaxBodyBytes: cfg.MaxRequestBodyBytes,
	}, resolver, fwd, tracker, logger)

	router := mux.NewRouter()
	rcv.RegisterRoutes(router)

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Content-Encoding", "x-maple-ingest-key"},
	})

	return &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		tracker: tracker,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: corsWrapper.Handler(router),
		},
	}, nil
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully: stop
// accepting requests, then stop the tracker so it can run its final flush.
func (a *App) Run(ctx context.Context) error {
	if a.tracker != nil {
		if err := services.StartAndAwaitRunning(ctx, a.tracker); err != nil {
			return errors.Wrap(err, "start usage tracker")
		}
	}

	level.Info(a.logger).Log(
		"msg", "maple ingest server listening",
		"addr", a.server.Addr,
		"forward_endpoint", a.cfg.ForwardEndpoint,
		"require_tls", a.cfg.RequireTLS,
		"max_body_bytes", humanize.IBytes(uint64(a.cfg.MaxRequestBodyBytes)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "ingest server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	if a.tracker != nil {
		if serr := services.StopAndAwaitTerminated(context.Background(), a.tracker); serr != nil && err == nil {
			err = serr
		}
	}

	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}

	return err
}
