// ABOUTME: Commands that talk to or run the sync server
// ABOUTME: Covers serve, health, remote-get and init

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/2389/savedsearch/internal/config"
	"github.com/2389/savedsearch/internal/remote"
	"github.com/2389/savedsearch/internal/syncd"
)

func runServe(ctx context.Context) error {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	logger := setupLogger(cfg.Logging, false)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	fmt.Println()

	srv, err := syncd.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating sync server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		addr := srv.Addr(gctx)
		if addr == nil {
			return nil
		}
		logger.Info("accepting sync sessions", "url", "ws://"+addr.String()+syncd.SyncPath)
		return nil
	})

	return g.Wait()
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runRemoteGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: savedsearch remote-get TAG")
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Remote.URL == "" {
		return errors.New("remote.url is not configured")
	}
	logger := setupLogger(cfg.Logging, true)

	client, err := remote.Dial(ctx, remote.ClientOptions{
		URL:            cfg.Remote.URL,
		DeviceID:       cfg.Remote.DeviceID,
		RequestTimeout: cfg.Remote.RequestTimeout,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	value, ok, err := client.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sync server has no value for %q", args[0])
	}
	fmt.Println(value)
	return nil
}

func runInit(args []string) error {
	force := false
	for _, arg := range args {
		switch arg {
		case "--force", "-f":
			force = true
		default:
			return fmt.Errorf("unknown flag %q", arg)
		}
	}

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
	}

	cfg := config.Default(getDataPath())
	if err := cfg.Write(configPath); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Wrote %s\n", configPath)
	color.New(color.FgHiBlack).Println("  Set remote.url to sync with a server, e.g. ws://127.0.0.1:8420/sync")
	return nil
}
