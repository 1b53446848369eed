// hacmanager - fleet log retrieval for Hybris Administration Console portals
//
// Logs into every portal of the selected environment, caches their file
// catalogs and serves an interactive prompt for searching and downloading
// log files across the whole fleet.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/yunusemregul/hacmanager/internal/config"
	"github.com/yunusemregul/hacmanager/internal/fleet"
	"github.com/yunusemregul/hacmanager/internal/hac"
	"github.com/yunusemregul/hacmanager/internal/logging"
	"github.com/yunusemregul/hacmanager/internal/metrics"
	"github.com/yunusemregul/hacmanager/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the portals configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "logging init failed: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	log := logging.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		cancel()
		logging.Sync()
		os.Exit(0)
	}()

	// Metrics endpoint (optional)
	if cfg.MetricsAddr != "" {
		go func() {
			log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	// Storage sink (optional)
	sink, err := storage.New(ctx, cfg.Sink)
	if err != nil {
		log.Fatal("sink init failed", zap.Error(err))
	}
	if sink != nil {
		defer sink.Close()
		log.Info("mirroring relocated logs", zap.String("sink", sink.Type()))
	}

	// Build one client per portal of the selected environment
	portals := cfg.Portals()
	if len(portals) == 0 {
		log.Fatal("no portals configured", zap.String("environment", cfg.Environment))
	}

	clients := make([]hac.Portal, 0, len(portals))
	for _, p := range portals {
		if p.Credentials.Password == "" {
			p.Credentials.Password, err = promptPassword(p.Name)
			if err != nil {
				log.Fatal("could not read password", zap.String("portal", p.Name), zap.Error(err))
			}
		}
		client, err := hac.New(p, cfg.Endpoints, hac.Options{
			DownloadsDir: cfg.DownloadsDir,
			Sink:         sink,
		})
		if err != nil {
			log.Fatal("client init failed", zap.String("portal", p.Name), zap.Error(err))
		}
		clients = append(clients, client)
	}

	log.Info("initializing fleet",
		zap.String("environment", cfg.Environment),
		zap.Int("portals", len(clients)))

	fl := fleet.New(clients...)
	reportFailures(log, fl.InitializeAll(ctx))

	runPrompt(ctx, fl, log)
}

// promptPassword asks for one portal's password without echoing. When stdin
// is not a terminal (piped input) it falls back to a plain line read.
func promptPassword(portal string) (string, error) {
	fmt.Fprintf(os.Stderr, "password for %s: ", portal)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	r := bufio.NewReader(os.Stdin)
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func reportFailures(log *zap.Logger, results map[string]error) {
	for portal, err := range results {
		if err != nil {
			log.Warn("portal unavailable", zap.String("portal", portal), zap.Error(err))
		}
	}
}

// runPrompt is the interactive command loop.
func runPrompt(ctx context.Context, fl *fleet.Fleet, log *zap.Logger) {
	fmt.Println("type 'help' for available commands")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, arg := splitCommand(line)
		switch cmd {
		case "help":
			printHelp()

		case "exit", "quit":
			return

		case "files":
			reportFailures(log, fl.InitializeAll(ctx))
			for _, p := range fl.Portals() {
				fmt.Printf("%s: %d files\n", p.Name(), len(p.Search("")))
			}

		case "find":
			if arg == "" {
				fmt.Println("usage: find <pattern>")
				continue
			}
			printMatches(fl.SearchAll(arg))

		case "download":
			if arg == "" {
				fmt.Println("usage: download <pattern>")
				continue
			}
			for portal, err := range fl.DownloadAll(ctx, arg) {
				switch {
				case err == nil:
					fmt.Printf("%s: done\n", portal)
				case errors.Is(err, hac.ErrNoMatch):
					fmt.Printf("%s: no files matched\n", portal)
				default:
					fmt.Printf("%s: failed: %v\n", portal, err)
				}
			}

		default:
			fmt.Printf("unknown command %q, type 'help'\n", cmd)
		}
	}
}

func splitCommand(line string) (cmd, arg string) {
	parts := strings.SplitN(line, " ", 2)
	cmd = parts[0]
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}

func printMatches(results map[string][]hac.FileEntry) {
	total := 0
	for portal, files := range results {
		for _, f := range files {
			fmt.Printf("%s  %s  (%d bytes)\n", portal, f.Absolute, f.Size)
			total++
		}
	}
	if total == 0 {
		fmt.Println("no files matched")
	}
}

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  find <pattern>      search cached catalogs across all portals")
	fmt.Println("  download <pattern>  download, extract and relocate matching logs")
	fmt.Println("  files               refresh catalogs and show per-portal counts")
	fmt.Println("  exit                quit")
}
