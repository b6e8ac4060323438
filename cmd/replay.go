package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/boxedit/internal/browser/cdp"
	"github.com/xkilldash9x/boxedit/internal/browser/dom"
	"github.com/xkilldash9x/boxedit/internal/browser/layout"
	"github.com/xkilldash9x/boxedit/internal/config"
	"github.com/xkilldash9x/boxedit/internal/events"
	"github.com/xkilldash9x/boxedit/internal/observability"
	"github.com/xkilldash9x/boxedit/internal/replay"
	"github.com/xkilldash9x/boxedit/internal/script"
)

// pageSource says where replayed scripts run.
type pageSource struct {
	// html is an in-memory page; url a page loaded in Chrome.
	html []byte
	url  string
}

// pageOpener opens a fresh page for one script. The returned cleanup is
// always safe to call.
type pageOpener func(ctx context.Context, cfg config.Interface, src pageSource, logger *zap.Logger) (replay.Page, func(), error)

func defaultOpener(ctx context.Context, cfg config.Interface, src pageSource, logger *zap.Logger) (replay.Page, func(), error) {
	vp := cfg.Browser().Viewport
	if src.url == "" {
		doc, err := dom.Parse(bytes.NewReader(src.html), layout.Viewport{Width: float64(vp.Width), Height: float64(vp.Height)}, logger)
		if err != nil {
			return nil, func() {}, err
		}
		return replay.NewDOMPage(doc), func() {}, nil
	}
	page, err := cdp.Open(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, func() {}, err
	}
	if err := page.Navigate(ctx, src.url); err != nil {
		page.Close()
		return nil, func() {}, err
	}
	return page, page.Close, nil
}

type replayOptions struct {
	page    string
	url     string
	scripts []string
	svg     string
	follow  bool
}

func newReplayCmd(a *app, open pageOpener) *cobra.Command {
	var opts replayOptions
	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay gesture scripts against a page and print the resulting styles",
		Long: `Replay runs each gesture script against its own copy of the page, through
the same observer, box, overlay and controller a live editor uses, and prints
one JSON report per script. Pages given with --page are laid out in memory and
targets are XPath expressions; with --url the page is loaded in Chrome and
targets are CSS selectors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, a, opts, open)
		},
	}
	replayCmd.Flags().StringVar(&opts.page, "page", "", "HTML file to replay against")
	replayCmd.Flags().StringVar(&opts.url, "url", "", "page to load in Chrome instead of --page")
	replayCmd.Flags().StringArrayVar(&opts.scripts, "script", nil, "gesture script (repeatable)")
	replayCmd.Flags().StringVar(&opts.svg, "svg", "", "write an SVG snapshot of each overlay to this path")
	replayCmd.Flags().BoolVar(&opts.follow, "follow", false, "print live drag readouts to stderr")
	_ = replayCmd.MarkFlagRequired("script")
	replayCmd.MarkFlagsMutuallyExclusive("page", "url")
	replayCmd.MarkFlagsOneRequired("page", "url")
	return replayCmd
}

func runReplay(cmd *cobra.Command, a *app, opts replayOptions, open pageOpener) error {
	ctx := cmd.Context()
	cfg := a.cfg
	logger := observability.GetLogger()

	var src pageSource
	if opts.url != "" {
		src.url = opts.url
	} else {
		path, err := expandPath(opts.page)
		if err != nil {
			return err
		}
		if src.html, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("reading page: %w", err)
		}
	}

	scripts := make([]*script.Script, len(opts.scripts))
	for i, p := range opts.scripts {
		path, err := expandPath(p)
		if err != nil {
			return err
		}
		if scripts[i], err = script.Load(path); err != nil {
			return err
		}
	}

	var bus *events.Bus
	followDone := make(chan struct{})
	if opts.follow {
		bus = events.NewBus(logger, cfg.Events().BufferSize)
		msgs, _ := bus.Subscribe(events.AllTypes...)
		go follow(a.stderr, bus, msgs, cfg.Events(), followDone)
	} else {
		close(followDone)
	}

	runner := replay.NewRunner(cfg, logger, bus)
	runner.Snapshot = opts.svg != ""

	reports := make([]*replay.Report, len(scripts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, s := range scripts {
		g.Go(func() error {
			page, cleanup, err := open(gctx, cfg, src, logger)
			defer cleanup()
			if err != nil {
				return fmt.Errorf("%s: opening page: %w", s.Name, err)
			}
			report, err := runner.Run(gctx, page, s)
			if err != nil {
				return fmt.Errorf("%s: %w", s.Name, err)
			}
			reports[i] = report
			return nil
		})
	}
	err := g.Wait()
	if bus != nil {
		bus.Shutdown()
	}
	<-followDone
	if err != nil {
		return err
	}

	if opts.svg != "" {
		base, err := expandPath(opts.svg)
		if err != nil {
			return err
		}
		for i, r := range reports {
			if err := writeSVG(svgPath(base, i, len(reports)), r); err != nil {
				return err
			}
		}
	}

	out, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding reports: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

// follow prints bus messages until the bus shuts down. Drag updates are
// sampled at the configured readout interval.
func follow(w io.Writer, bus *events.Bus, msgs <-chan events.Message, cfg config.EventsConfig, done chan<- struct{}) {
	defer close(done)
	sampler := rate.Sometimes{Interval: cfg.ReadoutInterval}
	for msg := range msgs {
		switch p := msg.Payload.(type) {
		case events.DragPayload:
			sampler.Do(func() {
				fmt.Fprintf(w, "drag   %s %s\n", p.NodeID, p.Bounds)
			})
		case events.ExitPayload:
			fmt.Fprintf(w, "commit %s left=%s top=%s width=%s height=%s\n", p.NodeID, p.CSS.Left, p.CSS.Top, p.CSS.Width, p.CSS.Height)
		case events.EditingPayload:
			fmt.Fprintf(w, "%-6s %s\n", shortType(msg.Type), p.NodeID)
		case events.ErrorPayload:
			fmt.Fprintf(w, "error  %s %s: %s\n", p.NodeID, p.Kind, p.Message)
		}
		bus.Acknowledge(msg)
	}
}

func shortType(t events.MessageType) string {
	switch t {
	case events.TypeEnterEditing:
		return "enter"
	case events.TypeCancel:
		return "cancel"
	}
	return string(t)
}

// svgPath numbers the snapshot files when there is more than one report.
func svgPath(base string, i, n int) string {
	if n <= 1 {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, ext), i+1, ext)
}

func writeSVG(path string, r *replay.Report) error {
	if r == nil || r.SVG == nil {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := r.SVG.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
