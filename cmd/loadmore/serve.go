package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/wp-loadmore/pkg/client"
	"github.com/Sternrassler/wp-loadmore/pkg/logging"
	"github.com/Sternrassler/wp-loadmore/pkg/metrics"
	"github.com/Sternrassler/wp-loadmore/pkg/widget"
)

// HeaderNextOffset carries the offset of the following page.
const HeaderNextOffset = "X-Next-Offset"

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve rendered post fragments",
		RunE: func(cmd *cobra.Command, args []string) error {
			wcfg, err := a.cfg.Widget.Widget()
			if err != nil {
				return err
			}
			ccfg, err := a.cfg.Widget.Client()
			if err != nil {
				return err
			}
			timeout, err := a.cfg.Server.Timeout()
			if err != nil {
				return err
			}
			c, err := client.New(ccfg)
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}

			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           newServer(wcfg, c, timeout).router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger := logging.NewLogger("server")
				logger.Info().Str("addr", srv.Addr).Msg("Starting fragment server")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

// server renders one page of posts per request. Each request runs a full
// widget cycle against a trigger that captures the inserted markup.
type server struct {
	cfg     widget.Config
	fetcher widget.Fetcher
	timeout time.Duration
	router  chi.Router
	logger  zerolog.Logger
}

func newServer(cfg widget.Config, fetcher widget.Fetcher, timeout time.Duration) *server {
	s := &server{
		cfg:     widget.DefaultConfig().Merge(cfg),
		fetcher: fetcher,
		timeout: timeout,
		logger:  logging.NewLogger("server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/fragment", s.handleFragment)

	s.router = r
	return s
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// fragmentTrigger stands in for the trigger element and keeps what the
// widget inserts.
type fragmentTrigger struct {
	html string
}

func (t *fragmentTrigger) AddClass(string)    {}
func (t *fragmentTrigger) RemoveClass(string) {}
func (t *fragmentTrigger) Remove()            {}
func (t *fragmentTrigger) InsertBefore(fragment string) error {
	t.html += fragment
	return nil
}

func (s *server) handleFragment(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg
	cfg.Params = s.cfg.Params.Clone()

	for _, key := range []string{widget.ParamOffset, widget.ParamPerPage} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer", key))
			return
		}
		cfg.Params.Set(key, n)
	}

	trigger := &fragmentTrigger{}
	wg, err := widget.New(nil, cfg, widget.WithTrigger(trigger), widget.WithFetcher(s.fetcher))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := wg.Load(ctx)
	if err != nil {
		var apiErr *client.APIError
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "upstream request timed out")
		case errors.As(err, &apiErr) && apiErr.StatusCode != 0:
			writeError(w, apiErr.StatusCode, apiErr.Message)
		case errors.As(err, &apiErr):
			writeError(w, http.StatusBadGateway, apiErr.Message)
		case errors.Is(err, client.ErrMalformedResponse):
			writeError(w, http.StatusBadGateway, "upstream response is not a list of posts")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(client.HeaderTotal, strconv.Itoa(res.Total))
	w.Header().Set(HeaderNextOffset, strconv.Itoa(res.Offset))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(trigger.html)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write fragment")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
