package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/arrowgate/docdedupe/internal/logging"
)

type serveStubOptions struct {
	addr string
}

// newServeStubCmd creates the serve-stub subcommand: a bare /metrics
// endpoint over the store's PrometheusRecorder, plus a /healthz liveness
// check. It exposes nothing else — the HTTP API a real deployment would put in front of
// this core is out of scope (spec.md §1 Non-goals), but the counters and
// histograms the core already tracks still need somewhere to be scraped
// from for a demo.
func newServeStubCmd() *cobra.Command {
	opts := &serveStubOptions{addr: ":9090"}

	cmd := &cobra.Command{
		Use:   "serve-stub",
		Short: "Serve /metrics over the recorder this process would otherwise discard",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServeStub(opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "Listen address")

	return cmd
}

func runServeStub(opts *serveStubOptions) error {
	env, err := loadEnvironment()
	if err != nil {
		return err
	}

	rt, err := newRuntime(env)
	if err != nil {
		return err
	}
	defer rt.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", rt.recorder.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	logging.WithComponent("cli").Info().Str("addr", opts.addr).Msg("serving /metrics")
	return http.ListenAndServe(opts.addr, mux)
}
