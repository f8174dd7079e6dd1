// posturectl: command line client for the posture daemon
// Queries status, triggers calibration and threshold recomputes over the
// daemon's HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/posturekit/go-posture/internal/httpc"
	"github.com/posturekit/go-posture/pkg/posture"
)

const defaultAddr = "http://localhost:8093"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: posturectl [-addr %s] <command>

Commands:
  status       Daemon and session state
  metrics      Latest classification result
  calibrate    Capture a new baseline from the next frame
  events [n]   Recent posture events (default 20)
  thresholds   Active threshold set
  recompute    Recompute adaptive thresholds now
  config       Engine configuration
`, defaultAddr)
}

func main() {
	flag.Usage = usage
	addr := flag.String("addr", defaultAddr, "Daemon base URL")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	base := strings.TrimRight(*addr, "/")

	var err error
	switch flag.Arg(0) {
	case "status":
		err = showStatus(base)
	case "metrics":
		err = showMetrics(base)
	case "calibrate":
		err = calibrate(base)
	case "events":
		limit := 20
		if flag.NArg() > 1 {
			if n, convErr := strconv.Atoi(flag.Arg(1)); convErr == nil {
				limit = n
			}
		}
		err = showEvents(base, limit)
	case "thresholds":
		err = showJSON(base + "/api/thresholds")
	case "recompute":
		err = recompute(base)
	case "config":
		err = showJSON(base + "/api/config")
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "posturectl: %v\n", apiError(err))
		os.Exit(1)
	}
}

func showStatus(base string) error {
	var s struct {
		State          string  `json:"state"`
		Calibrated     bool    `json:"calibrated"`
		SessionID      string  `json:"session_id"`
		UptimeSeconds  float64 `json:"uptime_seconds"`
		Ticks          uint64  `json:"ticks"`
		FramesDropped  uint64  `json:"frames_dropped"`
		Detectors      int     `json:"detectors"`
		Dashboards     int     `json:"dashboards"`
		HistorySamples int     `json:"history_samples"`
	}
	if err := httpc.GetJSON(base+"/api/status", &s); err != nil {
		return err
	}

	fmt.Printf("State:       %s\n", s.State)
	fmt.Printf("Calibrated:  %v\n", s.Calibrated)
	fmt.Printf("Session:     %s\n", s.SessionID)
	fmt.Printf("Uptime:      %s\n", (time.Duration(s.UptimeSeconds) * time.Second).String())
	fmt.Printf("Ticks:       %d\n", s.Ticks)
	fmt.Printf("Dropped:     %d frames\n", s.FramesDropped)
	fmt.Printf("Detectors:   %d\n", s.Detectors)
	fmt.Printf("Dashboards:  %d\n", s.Dashboards)
	fmt.Printf("History:     %d samples\n", s.HistorySamples)
	return nil
}

func showMetrics(base string) error {
	var raw json.RawMessage
	if err := httpc.GetJSON(base+"/api/metrics", &raw); err != nil {
		return err
	}
	if string(bytes.TrimSpace(raw)) == "null" {
		fmt.Println("No classification yet - is a detector connected?")
		return nil
	}
	return printJSON(raw)
}

func calibrate(base string) error {
	var resp struct {
		Baseline posture.Baseline `json:"baseline"`
		State    string           `json:"state"`
	}
	if err := httpc.PostJSON(base+"/api/calibrate", &resp); err != nil {
		return err
	}

	fmt.Println("Calibrated ✅")
	fmt.Printf("  Head forward:      %6.2f°\n", resp.Baseline.HeadForwardDeg)
	fmt.Printf("  Shoulder tilt:     %6.2f°\n", resp.Baseline.ShoulderTiltDeg)
	fmt.Printf("  Shoulder symmetry: %6.2f°\n", resp.Baseline.ShoulderSymmetryDeg)
	fmt.Printf("  Back rounding:     %6.2f°\n", resp.Baseline.BackRoundingDeg)
	return nil
}

func showEvents(base string, limit int) error {
	var resp struct {
		Events []posture.Event `json:"events"`
		Count  int             `json:"count"`
	}
	url := fmt.Sprintf("%s/api/events?limit=%d", base, limit)
	if err := httpc.GetJSON(url, &resp); err != nil {
		return err
	}

	if resp.Count == 0 {
		fmt.Println("No events recorded")
		return nil
	}
	for _, ev := range resp.Events {
		fmt.Printf("%s  %-9s after %-8s head %+.1f° tilt %+.1f°\n",
			ev.At.Format(time.RFC3339),
			ev.Severity,
			ev.Duration,
			ev.HeadForwardDeltaDeg,
			ev.ShoulderTiltDeltaDeg,
		)
	}
	return nil
}

func recompute(base string) error {
	var resp struct {
		Reason     string          `json:"reason"`
		Thresholds json.RawMessage `json:"thresholds"`
	}
	if err := httpc.PostJSON(base+"/api/thresholds/recompute", &resp); err != nil {
		return err
	}

	if resp.Reason != "" {
		fmt.Printf("Not recomputed: %s\n", resp.Reason)
		return nil
	}
	fmt.Println("Thresholds recomputed")
	return printJSON(resp.Thresholds)
}

func showJSON(url string) error {
	var raw json.RawMessage
	if err := httpc.GetJSON(url, &raw); err != nil {
		return err
	}
	return printJSON(raw)
}

func printJSON(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}

// apiError unwraps the daemon's error payload so failures read as one
// line instead of a JSON dump.
func apiError(err error) error {
	var se *httpc.StatusError
	if !errors.As(err, &se) {
		return err
	}
	var resp struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(se.Body, &resp) != nil || resp.Error == "" {
		return err
	}
	if resp.Reason != "" {
		return fmt.Errorf("%s (%s)", resp.Error, resp.Reason)
	}
	return errors.New(resp.Error)
}
