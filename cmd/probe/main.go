// Command probe is a smoke-test client for a running relay. It opens a
// websocket, identifies, joins a scope, sends one message, waits for the echo,
// then pulls /metrics and renders the backend call summaries as a table.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"chat-relay/observability"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	RelayURL string        `envconfig:"RELAY_URL" default:"ws://localhost:8080/ws"`
	Scope    string        `envconfig:"PROBE_SCOPE" default:"lobby"`
	Username string        `envconfig:"PROBE_USERNAME" default:"probe"`
	Timeout  time.Duration `envconfig:"PROBE_TIMEOUT" default:"10s"`
	Colours  bool          `envconfig:"PROBE_COLOURS" default:"true"`
}

type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Probe error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if !config.Colours {
		color.Disable()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	// 2. Open the websocket and run the scripted exchange.
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.RelayURL, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to relay at %s: %w", config.RelayURL, err)
	}
	defer func() { _ = conn.Close() }()

	localID := uuid.NewString()
	script := []frame{
		{Event: "identify", Payload: mustJSON(map[string]string{"username": config.Username})},
		{Event: "join", Payload: mustJSON(map[string]string{"scope": config.Scope})},
		{Event: "message:send", Payload: mustJSON(map[string]string{
			"scope":   config.Scope,
			"text":    "probe " + time.Now().UTC().Format(time.RFC3339),
			"localId": localID,
		})},
	}
	for _, f := range script {
		if err := conn.WriteJSON(f); err != nil {
			return exitRuntime, fmt.Errorf("sending %s: %w", f.Event, err)
		}
	}

	// 3. Wait for our own message to come back with the local id attached.
	echoed, err := awaitEcho(ctx, conn, localID)
	if err != nil {
		return exitRuntime, err
	}
	if echoed {
		color.Green.Println("OK: message echoed with localId intact")
	} else {
		color.Red.Println("FAIL: message never echoed")
	}

	// 4. Pull metrics and render them.
	if err := renderMetrics(ctx, config.RelayURL); err != nil {
		return exitRuntime, err
	}
	if !echoed {
		return exitRuntime, nil
	}
	return exitOK, nil
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

func awaitEcho(ctx context.Context, conn *websocket.Conn, localID string) (bool, error) {
	deadline, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(deadline)
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			return false, fmt.Errorf("reading frame: %w", err)
		}
		switch f.Event {
		case "message":
			var payload struct {
				LocalID string `json:"localId"`
			}
			if json.Unmarshal(f.Payload, &payload) == nil && payload.LocalID == localID {
				return true, nil
			}
		case "error":
			color.Red.Printf("error event: %s\n", string(f.Payload))
		}
	}
}

// renderMetrics fetches the JSON metrics surface of the relay the websocket
// URL points at and prints one row per backend call class.
func renderMetrics(ctx context.Context, relayURL string) error {
	metricsURL := strings.Replace(relayURL, "ws://", "http://", 1)
	metricsURL = strings.Replace(metricsURL, "wss://", "https://", 1)
	metricsURL = strings.TrimSuffix(metricsURL, "/ws") + "/metrics"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metricsURL, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetching metrics: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var summaries map[string]observability.Summary
	if err := json.NewDecoder(resp.Body).Decode(&summaries); err != nil {
		return fmt.Errorf("decoding metrics: %w", err)
	}

	classes := make([]string, 0, len(summaries))
	for class := range summaries {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Class", "Count", "Avg ms", "P50", "P90", "P99", "Success"})
	for _, class := range classes {
		s := summaries[class]
		success := fmt.Sprintf("%.0f%%", s.SuccessRate*100)
		if s.SuccessRate < 1 {
			success = color.Yellow.Sprint(success)
		}
		table.Append([]string{
			class,
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.2f", s.AvgMs),
			fmt.Sprintf("%.2f", s.P50Ms),
			fmt.Sprintf("%.2f", s.P90Ms),
			fmt.Sprintf("%.2f", s.P99Ms),
			success,
		})
	}
	table.Render()
	return nil
}
