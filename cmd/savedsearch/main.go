// ABOUTME: Entry point for the savedsearch command line tool
// ABOUTME: Manages saved searches locally and keeps them in sync through a sync server

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/2389/savedsearch/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                         _                         _
 ___  __ ___   _____  __| |  ___  ___  __ _ _ __ ___| |__
/ __|/ _' \ \ / / _ \/ _' | / __|/ _ \/ _' | '__/ __| '_ \
\__ \ (_| |\ V /  __/ (_| | \__ \  __/ (_| | | | (__| | | |
|___/\__,_| \_/ \___|\__,_| |___/\___|\__,_|_|  \___|_| |_|
`

// getConfigPath returns the path to the config file.
// Priority: SAVEDSEARCH_CONFIG env var > XDG_CONFIG_HOME/savedsearch/config.yaml > ~/.config/savedsearch/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SAVEDSEARCH_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "savedsearch", "config.yaml")
}

// getDataPath returns the path to the savedsearch data directory.
// Priority: XDG_DATA_HOME/savedsearch > ~/.local/share/savedsearch
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "savedsearch")
}

// loadConfig reads the config file, or falls back to defaults when none
// has been written yet.
func loadConfig() (*config.Config, string, error) {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(getDataPath()), configPath, nil
	}
	if err != nil {
		return nil, configPath, fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func printUsage() {
	fmt.Println("Usage: savedsearch <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  list                   List saved searches, most recent first")
	fmt.Println("  add TAG QUERY...       Save QUERY under TAG")
	fmt.Println("  show TAG               Print the query saved under TAG")
	fmt.Println("  rm INDEX               Remove the saved search at INDEX")
	fmt.Println("  rm-tag TAG             Remove the saved search named TAG")
	fmt.Println("  mv FROM TO             Move the saved search at FROM to TO")
	fmt.Println("  sync                   Pull changes from the sync server")
	fmt.Println("  watch                  Stay connected and print changes as they arrive")
	fmt.Println("  remote-get TAG         Print the sync server's value for TAG")
	fmt.Println("  serve                  Run the sync server")
	fmt.Println("  health                 Check sync server health")
	fmt.Println("  init [--force]         Write a default config file")
	fmt.Println("  version                Print the version")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "list", "ls":
		err = withApp(ctx, cmd, false, func(a *app) error { return a.cmdList(ctx) })
	case "add":
		err = withApp(ctx, cmd, true, func(a *app) error { return a.cmdAdd(ctx, args) })
	case "show":
		err = withApp(ctx, cmd, false, func(a *app) error { return a.cmdShow(ctx, args) })
	case "rm":
		err = withApp(ctx, cmd, true, func(a *app) error { return a.cmdRemove(ctx, args) })
	case "rm-tag":
		err = withApp(ctx, cmd, true, func(a *app) error { return a.cmdRemoveTag(ctx, args) })
	case "mv":
		err = withApp(ctx, cmd, false, func(a *app) error { return a.cmdMove(ctx, args) })
	case "sync":
		err = withApp(ctx, cmd, true, func(a *app) error { return a.cmdSync(ctx) })
	case "watch":
		err = withApp(ctx, cmd, true, func(a *app) error { return a.cmdWatch(ctx) })
	case "remote-get":
		err = runRemoteGet(ctx, args)
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "init":
		err = runInit(args)
	case "version":
		fmt.Println(version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withApp loads config, opens the local store and runs fn. Commands that
// touch the remote connect to it when remote.url is configured.
func withApp(ctx context.Context, cmd string, connect bool, fn func(*app) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, cmd != "watch")

	a, err := openApp(ctx, cfg, logger, connect)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}
