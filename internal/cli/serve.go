package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"khata/internal/cache"
	apphttp "khata/internal/http"
	"khata/internal/log"
	"khata/internal/parser"
	"khata/internal/services"
)

const cacheSweepInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON API",
	Long: `Serve the ledger and report API. With --worker the change event
reconciler runs in the same process.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("worker", false, "Also consume change events and reconcile balances")
}

func runServe(cmd *cobra.Command, args []string) error {
	withWorker, _ := cmd.Flags().GetBool("worker")
	cfg, logger := env.cfg, env.logger

	ctx, stop := ShutdownContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	p, lru, err := newParser(ctx)
	if err != nil {
		return err
	}
	caches := cache.NewManager()
	if lru != nil {
		caches.Register("parser", lru)
	}

	srv := apphttp.NewServer(apphttp.Deps{
		Ledger:  a.ledger,
		Reports: a.reports,
		Records: a.store.Store,
		Prefs:   a.store.Store,
		Parser:  p,
		Ready:   a.ready,
	}, apphttp.Options{
		Addr:           ":" + cfg.Port,
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.RateLimit,
		Logger:         logger.WithComponent(log.ComponentHTTP),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting khata server", "port", cfg.Port, "backend", cfg.DataBackend, "events", a.events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		caches.Run(gctx, cacheSweepInterval)
		return nil
	})
	if withWorker {
		if a.events == nil {
			logger.Warn("AMQP_URL not set, reconciler disabled")
		} else {
			g.Go(func() error {
				return services.NewReconciler(a.reports).Run(gctx, a.events)
			})
		}
	}

	err = g.Wait()
	if lru != nil {
		st := lru.Stats()
		logger.Info("Parser cache stats", "hits", st.Hits, "misses", st.Misses, "size", st.Size)
	}
	if err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func newParser(ctx context.Context) (parser.Parser, *cache.LRUCache[parser.Result], error) {
	cfg := env.cfg
	return parser.New(ctx, parser.Options{
		Enabled:    cfg.ParserEnabled,
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		Timeout:    cfg.ParserTimeout,
		CacheSize:  cfg.ParserCacheSize,
		CacheTTL:   cfg.ParserCacheTTL,
		Categories: env.policy.Categories,
	})
}
