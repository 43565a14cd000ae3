// canmon is a live CAN bus traffic monitor. Frames arrive from a
// candump-over-TCP feed and/or an MQTT bridge, pass through a bounded
// in-memory pipeline, and are rendered on a terminal dashboard or logged
// headless. Only enrichment metadata (class catalog, source directory) is
// persisted; the stream itself never touches disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"canmon/canmqtt"
	"canmon/cansock"
	"canmon/catalog"
	"canmon/config"
	"canmon/frame"
	"canmon/pipeline"
	"canmon/remotestats"
	"canmon/sourcedir"
	"canmon/ui"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	headless := flag.Bool("headless", false, "disable the dashboard even on a terminal")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config: %v\n", err)
		os.Exit(1)
	}

	fanout, err := setupLogging(cfg.Logging, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging: %v\n", err)
	}
	log.SetFlags(0)
	log.SetOutput(fanout)
	defer fanout.Close()

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	useDashboard := cfg.UI.Dashboard && interactive && !*headless
	if !useDashboard {
		cfg.Print()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var remote *remotestats.Poller
	if cfg.RemoteStats.Enabled {
		remote = remotestats.NewPoller(remotestats.Config{
			Enabled:           true,
			URL:               cfg.RemoteStats.URL,
			FetchIntervalSec:  cfg.RemoteStats.FetchIntervalSec,
			RequestTimeoutSec: cfg.RemoteStats.RequestTimeoutSec,
			MaxRetries:        cfg.RemoteStats.MaxRetries,
			MaxAgeSec:         cfg.RemoteStats.MaxAgeSec,
		}, log.Default())
		remote.Start(ctx)
	}

	pipe, err := pipeline.New(cfg.Pipeline.Capacity, cfg.Pipeline.VisibleRows, cfg.Pipeline.TopClasses, remote)
	if err != nil {
		log.Fatalf("main: pipeline: %v", err)
	}

	var cat *catalog.Catalog
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Open(cfg.Catalog.Path)
		if err != nil {
			log.Fatalf("main: catalog: %v", err)
		}
		defer cat.Close()
		if cfg.Catalog.Plist != "" {
			imported, skipped, err := cat.ImportPlist(cfg.Catalog.Plist)
			switch {
			case err != nil:
				log.Printf("main: catalog import: %v", err)
			case skipped:
				log.Printf("main: catalog unchanged (%d classes)", cat.Len())
			default:
				log.Printf("main: catalog imported %d classes", imported)
			}
		}
	}

	var sources *sourcedir.Store
	if cfg.SourceDir.Enabled {
		sources, err = sourcedir.Open(cfg.SourceDir.Path)
		if err != nil {
			log.Fatalf("main: source directory: %v", err)
		}
		defer sources.Close()
	}

	frames := make(chan frame.Frame, 2048)

	var sock *cansock.Client
	if cfg.CANSock.Enabled {
		sock = cansock.NewClient(cfg.CANSock.Host, cfg.CANSock.Port, "candump feed")
		if err := sock.Connect(); err != nil {
			log.Printf("main: candump feed: %v (reconnecting in background)", err)
		}
		go forwardFrames(ctx, sock.Frames(), frames)
		defer sock.Stop()
	}

	var bridge *canmqtt.Client
	if cfg.MQTT.Enabled {
		bridge = canmqtt.NewClient(cfg.MQTT.Broker, cfg.MQTT.Port, cfg.MQTT.Topic)
		if err := bridge.Connect(); err != nil {
			log.Printf("main: CAN bridge: %v", err)
		} else {
			go forwardFrames(ctx, bridge.Frames(), frames)
			defer bridge.Stop()
		}
	}

	go ingestLoop(ctx, frames, pipe, sources)

	dash := ui.NewDashboard(pipe, cat, cfg.UI.TargetFPS, useDashboard)
	go statsLoop(ctx, pipe, cat, dash)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if dash != nil {
		go func() {
			dash.WaitReady()
			fanout.SetConsoleSink(dash.SystemWriter(), false)
			log.Printf("main: %s ready", cfg.Server.Name)
		}()
		go func() {
			<-sigCh
			dash.Stop()
		}()
		if err := dash.Run(); err != nil {
			fanout.SetConsoleSink(os.Stdout, true)
			log.Printf("main: dashboard: %v", err)
		}
		fanout.SetConsoleSink(os.Stdout, true)
	} else {
		log.Printf("main: %s running headless, Ctrl-C to stop", cfg.Server.Name)
		<-sigCh
	}

	log.Println("main: shutting down")
	cancel()
}

// forwardFrames fans one transport channel into the shared ingest channel,
// dropping on overflow so a stalled consumer never blocks a reader.
func forwardFrames(ctx context.Context, in <-chan frame.Frame, out chan<- frame.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- f:
			default:
				log.Println("main: ingest channel full, dropping frame")
			}
		}
	}
}

// ingestLoop runs every arriving frame through the pipeline gate and feeds
// admitted traffic to the source directory.
func ingestLoop(ctx context.Context, frames <-chan frame.Frame, pipe *pipeline.Pipeline, sources *sourcedir.Store) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-frames:
			if pipe.Accept(f) {
				sources.Observe(f.Source, f.Time)
			}
		}
	}
}

// statsLoop periodically rebuilds the stats snapshot for the dashboard and,
// when headless, logs a summary line every 30 seconds.
func statsLoop(ctx context.Context, pipe *pipeline.Pipeline, cat *catalog.Catalog, dash *ui.Dashboard) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var tick int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			if dash != nil {
				dash.SetSnapshot(buildSnapshot(pipe, cat))
				continue
			}
			if tick%30 == 0 {
				stats := pipe.Stats()
				log.Printf("stats: %d frames (%d errors, %d classes), buffer %d/%d",
					stats.Total, stats.Errors, stats.UniqueClasses, pipe.Size(), pipe.Capacity())
			}
		}
	}
}

func buildSnapshot(pipe *pipeline.Pipeline, cat *catalog.Catalog) ui.Snapshot {
	stats := pipe.Stats()
	return ui.Snapshot{
		GeneratedAt: time.Now().UTC(),
		StatsLines:  ui.FormatStats(stats, pipe.State(), pipe.Size(), pipe.Capacity()),
		ClassLines:  ui.FormatTopClasses(stats, cat),
	}
}
