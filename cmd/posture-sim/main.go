// posture-sim: synthetic landmark detector
// Feeds the daemon a repeating upright-to-slouch cycle for demos and
// testing without a camera.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/posturekit/go-posture/internal/log"
	"github.com/posturekit/go-posture/pkg/feed"
)

func main() {
	url := flag.String("url", "ws://localhost:8093/ws/landmarks/sim", "Daemon ingest endpoint")
	source := flag.String("source", "sim", "Detector source name")
	interval := flag.Duration("interval", 250*time.Millisecond, "Frame interval")
	cycle := flag.Duration("cycle", 60*time.Second, "Upright-to-slouch cycle length")
	jitter := flag.Float64("jitter", 0.002, "Coordinate noise amplitude")
	dropout := flag.Int("dropout", 0, "Report no detection every Nth frame (0 = never)")
	seed := flag.Int64("seed", 1, "Noise seed")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log.Init(*logLevel)

	fmt.Println()
	fmt.Println("🧪 posture-sim")
	fmt.Printf("   Target: %s\n", *url)
	fmt.Printf("   Cycle:  %s every %s\n", *cycle, *interval)
	fmt.Println()

	cfg := feed.DefaultConfig()
	cfg.URL = *url
	cfg.Source = *source
	cfg.Interval = *interval

	synth := feed.NewSynthesizer(
		feed.WithCycle(*cycle),
		feed.WithStep(*interval),
		feed.WithJitter(*jitter),
		feed.WithDropout(*dropout),
		feed.WithSeed(*seed),
	)

	client, err := feed.NewClient(cfg, synth)
	if err != nil {
		fmt.Fprintf(os.Stderr, "posture-sim: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n👋 Shutting down...")
		cancel()
	}()

	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("stream ended", "error", err)
		os.Exit(1)
	}

	stats := client.Stats()
	fmt.Printf("Sent %d frames (%d reconnects)\n", stats.FramesSent, stats.ReconnectCount)
}
