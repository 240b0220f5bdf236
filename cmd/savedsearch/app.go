// ABOUTME: Local saved search commands backed by the SQLite store
// ABOUTME: Opens the model, optionally connected to the sync server, and prints results

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/2389/savedsearch/internal/config"
	"github.com/2389/savedsearch/internal/favorites"
	"github.com/2389/savedsearch/internal/remote"
	"github.com/2389/savedsearch/internal/store"
)

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	blobs   *store.SQLiteStore
	client  *remote.Client
	model   *favorites.Model
	changes chan string
	batches chan batchResult
}

type batchResult struct {
	batch   favorites.Batch
	applied int
}

func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, connect bool) (*app, error) {
	blobs, err := store.NewSQLiteStoreWithDriver(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		blobs:   blobs,
		changes: make(chan string, 256),
		batches: make(chan batchResult, 16),
	}

	opts := favorites.Options{
		Persistence: store.NewGateway(blobs, cfg.Storage.OrderKey, cfg.Storage.MappingKey, logger),
		Observer:    a,
		Logger:      logger,
	}

	if connect && cfg.Remote.URL != "" {
		client, err := remote.Dial(ctx, remote.ClientOptions{
			URL:            cfg.Remote.URL,
			DeviceID:       cfg.Remote.DeviceID,
			RequestTimeout: cfg.Remote.RequestTimeout,
			DedupeTTL:      cfg.Remote.DedupeTTL,
			DedupeSize:     cfg.Remote.DedupeSize,
			Logger:         logger,
		})
		if err != nil {
			warn("sync server unavailable, working offline: %v", err)
		} else {
			a.client = client
			opts.Remote = client
		}
	}

	model, err := favorites.Open(ctx, opts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening saved searches: %w", err)
	}
	a.model = model
	return a, nil
}

// OnChanged forwards applied remote changes to whichever command is
// listening. Commands that never listen must not stall the model.
func (a *app) OnChanged(tag string) {
	select {
	case a.changes <- tag:
	default:
		a.logger.Debug("change notification dropped", "tag", tag)
	}
}

// OnBatchApplied forwards reconciled batches so sync can tell when the
// server has answered.
func (a *app) OnBatchApplied(batch favorites.Batch, applied int) {
	select {
	case a.batches <- batchResult{batch: batch, applied: applied}:
	default:
		a.logger.Debug("batch notification dropped", "batch_id", batch.ID)
	}
}

func (a *app) Close() {
	if a.model != nil {
		_ = a.model.Close()
	}
	if a.client != nil {
		_ = a.client.Close()
	}
	if err := a.blobs.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

func (a *app) requireRemote() error {
	if a.cfg.Remote.URL == "" {
		return errors.New("remote.url is not configured")
	}
	if a.client == nil {
		return remote.ErrNotConnected
	}
	return nil
}

func (a *app) cmdList(ctx context.Context) error {
	entries, err := a.model.Entries(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		color.New(color.FgHiBlack).Println("No saved searches.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tTAG\tQUERY")
	fmt.Fprintln(w, "  -\t---\t-----")
	for i, e := range entries {
		fmt.Fprintf(w, "  %d\t%s\t%s\n", i, e.Tag, e.Query)
	}
	return w.Flush()
}

func (a *app) cmdAdd(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: savedsearch add TAG QUERY...")
	}
	tag := args[0]
	query := strings.Join(args[1:], " ")

	isNew, err := a.model.SaveQuery(ctx, tag, query)
	if err := a.localOnly(err); err != nil {
		return err
	}

	if isNew {
		success("saved %s", tag)
	} else {
		success("updated %s", tag)
	}
	return nil
}

func (a *app) cmdShow(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: savedsearch show TAG")
	}
	query, ok, err := a.model.QueryFor(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no saved search named %q", args[0])
	}
	fmt.Println(query)
	return nil
}

func (a *app) cmdRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: savedsearch rm INDEX")
	}
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}

	tag, err := a.model.DeleteAt(ctx, index)
	if err := a.localOnly(err); err != nil {
		return err
	}
	success("removed %s", tag)
	return nil
}

func (a *app) cmdRemoveTag(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: savedsearch rm-tag TAG")
	}

	removed, err := a.model.DeleteTag(ctx, args[0])
	if err := a.localOnly(err); err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("no saved search named %q", args[0])
	}
	success("removed %s", args[0])
	return nil
}

func (a *app) cmdMove(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: savedsearch mv FROM TO")
	}
	from, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	to, err := parseIndex(args[1])
	if err != nil {
		return err
	}

	if err := a.model.Move(ctx, from, to); err != nil {
		return err
	}
	success("moved %d to %d", from, to)
	return nil
}

// cmdSync asks the server for everything and returns once the server's
// reply has been applied, even when the reply is empty.
func (a *app) cmdSync(ctx context.Context) error {
	if err := a.requireRemote(); err != nil {
		return err
	}

	a.model.Synchronize()

	timeout := time.NewTimer(a.cfg.Remote.RequestTimeout)
	defer timeout.Stop()

	applied := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.client.Done():
			return remote.ErrNotConnected
		case <-timeout.C:
			return fmt.Errorf("no sync reply within %s", a.cfg.Remote.RequestTimeout)
		case res := <-a.batches:
			applied += res.applied
			if !res.batch.IsSyncReply() {
				continue
			}
			n, err := a.model.Count(ctx)
			if err != nil {
				return err
			}
			success("sync complete: %d changes applied, %d saved searches", applied, n)
			return nil
		}
	}
}

// cmdWatch prints every applied remote change until interrupted or the
// connection drops.
func (a *app) cmdWatch(ctx context.Context) error {
	if err := a.requireRemote(); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	gray.Printf("watching %s as %s (ctrl-c to stop)\n", a.cfg.Remote.URL, a.client.DeviceID())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-a.client.Done():
			return remote.ErrNotConnected
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case tag := <-a.changes:
				query, ok, err := a.model.QueryFor(gctx, tag)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				stamp := time.Now().Format("15:04:05")
				if ok {
					gray.Printf("%s ", stamp)
					cyan.Print(tag)
					fmt.Printf(" = %s\n", query)
				} else {
					gray.Printf("%s ", stamp)
					cyan.Print(tag)
					color.New(color.FgYellow).Println(" removed")
				}
			}
		}
	})

	a.model.Synchronize()
	return g.Wait()
}

// localOnly turns a failed push into a warning; the edit itself is saved.
func (a *app) localOnly(err error) error {
	if errors.Is(err, favorites.ErrRemotePush) {
		warn("saved locally, sync failed: %v", err)
		return nil
	}
	return err
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return n, nil
}

func success(format string, args ...any) {
	color.New(color.FgGreen).Print("✓ ")
	fmt.Printf(format+"\n", args...)
}

func warn(format string, args ...any) {
	color.New(color.FgYellow).Fprint(os.Stderr, "! ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
