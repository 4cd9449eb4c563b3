// Command telnetd runs the two concurrent Telnet echo servers: a
// character-mode server on port 9092 and a line-mode binary server on port
// 9093, shutting both down cleanly on SIGINT or SIGTERM.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stlalpha/vision3/internal/config"
	"github.com/stlalpha/vision3/internal/logging"
	"github.com/stlalpha/vision3/internal/telnet"
	"github.com/stlalpha/vision3/internal/telnetserver"
)

func main() {
	configPath := flag.String("config", "telnetd.json", "path to the JSON configuration file")
	debug := flag.Bool("debug", os.Getenv("DEBUG") == "1", "enable debug logging")
	flag.Parse()

	logging.DebugEnabled = *debug

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: failed to load configuration: %v", err)
	}

	access := config.NewAccessControl(cfg)
	watcher, err := config.NewWatcher(*configPath, access.Reload)
	if err != nil {
		logging.Warnf(configTag{}, "config hot-reload disabled: %v", err)
	} else {
		defer watcher.Stop()
	}

	charServer, err := telnetserver.NewServer(telnetserver.Config{
		Host:    cfg.Host,
		Port:    cfg.CharPort,
		Backlog: cfg.Backlog,
		Mode:    telnet.ModeChar,
		Access:  access,
	})
	if err != nil {
		log.Fatalf("FATAL: failed to create character-mode server: %v", err)
	}

	lineServer, err := telnetserver.NewServer(telnetserver.Config{
		Host:    cfg.Host,
		Port:    cfg.LinePort,
		Backlog: cfg.Backlog,
		Mode:    telnet.ModeLineBinary,
		Access:  access,
	})
	if err != nil {
		log.Fatalf("FATAL: failed to create line-mode binary server: %v", err)
	}

	serveErrs := make(chan error, 2)
	go func() { serveErrs <- charServer.ListenAndServe() }()
	go func() { serveErrs <- lineServer.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("INFO: received %s, shutting down", sig)
		charServer.Close()
		lineServer.Close()
		charServer.Wait()
		lineServer.Wait()
		os.Exit(0)
	case err := <-serveErrs:
		if err != nil {
			log.Fatalf("FATAL: server exited: %v", err)
		}
	}
}

// configTag satisfies logging's modeTagger for process-level log lines not
// tied to a session mode.
type configTag struct{}

func (configTag) String() string { return "[CONFIG]" }
