package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/agentflow/internal/infrastructure/sse"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the long-lived runtime with an event stream endpoint",
	Long: `Run the agentflow runtime as a long-lived process. On startup the
recovery routine reconciles persisted state with reality, then an HTTP
server exposes runtime events at /events via Server-Sent Events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}

		recovered, err := rt.Session.Recover(cmd.Context())
		if err != nil {
			return MapError(err)
		}
		if recovered > 0 {
			rt.Logger.Info("startup recovery done", "projects", recovered)
		}

		addr := serveAddr
		if addr == "" {
			addr = rt.Config.Server.Addr
		}

		mux := http.NewServeMux()
		mux.Handle("/events", sse.NewHandler(rt.Dispatcher))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		server := &http.Server{Addr: addr, Handler: mux}

		errCh := make(chan error, 1)
		go func() {
			rt.Logger.Info("event stream listening", "addr", addr)
			errCh <- server.ListenAndServe()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("server: %w", err)
		case <-stop:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	RootCmd.AddCommand(serveCmd)
}
