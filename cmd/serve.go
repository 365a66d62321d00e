package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/clearae/edflow/server"
	"github.com/clearae/edflow/sim/session"
)

var (
	host         string        // HTTP listen host
	port         int           // HTTP listen port
	seed         int64         // Master seed; 0 derives one from the clock
	tickInterval time.Duration // Wallclock length of one simulated minute
)

// serveCmd runs the tick driver and the HTTP surface until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation driver and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		masterSeed := seed
		if masterSeed == 0 {
			masterSeed = time.Now().UnixNano()
		}
		logrus.Infof("Starting edflow: listen=%s:%d, tick=%s, seed=%d",
			host, port, tickInterval, masterSeed)

		manager := session.NewManager(masterSeed, tickInterval)
		srv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", host, port),
			Handler: server.New(manager).Router(),
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := manager.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			logrus.Info("Shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", "0.0.0.0", "Listen host")
	serveCmd.Flags().IntVar(&port, "port", 8000, "Listen port")
	serveCmd.Flags().Int64Var(&seed, "seed", 0, "Master RNG seed (0 = time-derived)")
	serveCmd.Flags().DurationVar(&tickInterval, "tick-interval", session.DefaultTickInterval,
		"Wallclock duration of one tick (one simulated minute)")
	rootCmd.AddCommand(serveCmd)
}
