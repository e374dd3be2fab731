package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/wp-loadmore/internal/config"
	"github.com/Sternrassler/wp-loadmore/pkg/client"
	"github.com/Sternrassler/wp-loadmore/pkg/dom"
	"github.com/Sternrassler/wp-loadmore/pkg/widget"
)

type fetchOptions struct {
	page   string
	target string
	clicks int
	all    bool
	out    string
}

func newFetchCmd(a *app) *cobra.Command {
	opts := fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Load pages of posts into an HTML document",
		Long: "Mount the widget on --target inside --page (or a built-in skeleton), activate the trigger " +
			"--clicks times or until every post is loaded, and write the resulting document.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if opts.out != "" && opts.out != "-" {
				f, err := os.Create(opts.out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				out = f
			}
			return runFetch(ctx, a.cfg, opts, out)
		},
	}

	cmd.Flags().StringVar(&opts.page, "page", "", "HTML document to load posts into (default: built-in skeleton)")
	cmd.Flags().StringVar(&opts.target, "target", "#posts", "CSS selector of the container")
	cmd.Flags().IntVar(&opts.clicks, "clicks", 1, "number of trigger activations")
	cmd.Flags().BoolVar(&opts.all, "all", false, "load every page (implied by widget.infinite_scroll)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

// skeleton is the document used when no page is given.
func skeleton(triggerClass string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>Posts</title></head>
<body><main id="posts"><button type="button" class="%s">Load more</button></main></body></html>`,
		html.EscapeString(triggerClass))
}

func loadDocument(path, triggerClass string) (*dom.Document, error) {
	if path == "" {
		return dom.ParseString(skeleton(triggerClass))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer f.Close()
	return dom.Parse(f)
}

func runFetch(ctx context.Context, cfg config.Config, opts fetchOptions, out io.Writer) error {
	wcfg, err := cfg.Widget.Widget()
	if err != nil {
		return err
	}
	ccfg, err := cfg.Widget.Client()
	if err != nil {
		return err
	}
	c, err := client.New(ccfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	doc, err := loadDocument(opts.page, cfg.Widget.TriggerClass)
	if err != nil {
		return err
	}

	w, err := widget.Mount(doc, opts.target, wcfg,
		widget.WithFetcher(c),
		widget.WithDrainConfig(cfg.Widget.Drain()),
	)
	if err != nil {
		return err
	}

	if opts.all || cfg.Widget.InfiniteScroll {
		pages, err := w.LoadAll(ctx)
		if err != nil {
			return err
		}
		log.Info().Int("pages", pages).Int("offset", w.State().Offset).Msg("Loaded all posts")
	} else {
		for i := 0; i < opts.clicks; i++ {
			if _, err := w.Load(ctx); err != nil {
				if errors.Is(err, widget.ErrExhausted) {
					log.Info().Int("clicks", i).Msg("No more posts")
					break
				}
				return err
			}
		}
	}

	s, err := doc.HTML()
	if err != nil {
		return fmt.Errorf("serialize document: %w", err)
	}
	_, err = io.WriteString(out, s)
	return err
}
