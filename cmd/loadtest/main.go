package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	gateway := flag.String("gateway", "ws://gateway:8000/ws/session", "gateway WebSocket URL")
	concurrency := flag.Int("concurrency", 10, "number of concurrent sessions")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	actions := flag.Int("actions", 5, "UI actions per session")
	flag.Parse()

	fmt.Printf("Load test: %d concurrent sessions for %s\n", *concurrency, *duration)
	fmt.Printf("Gateway: %s | Actions per session: %d\n\n", *gateway, *actions)

	var mu sync.Mutex
	var results []sessionResult
	var wg sync.WaitGroup

	deadline := time.Now().Add(*duration)

	for range *concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for time.Now().Before(deadline) {
				r := runSession(*gateway, *actions)
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	printSummary(results)
}

type sessionResult struct {
	success bool
	startMs float64
	cartMs  float64
	totalMs float64
	err     string
}

type serverEvent struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

func runSession(gateway string, actions int) sessionResult {
	begin := time.Now()

	conn, _, err := websocket.DefaultDialer.Dial(gateway, nil)
	if err != nil {
		return sessionResult{err: fmt.Sprintf("dial: %v", err)}
	}
	defer conn.Close()

	meta, _ := json.Marshal(map[string]string{
		"client_name": "loadtest",
		"mode":        "voice",
	})
	if err = conn.WriteMessage(websocket.TextMessage, meta); err != nil {
		return sessionResult{err: fmt.Sprintf("send meta: %v", err)}
	}

	if err = sendCommand(conn, map[string]any{"type": "start"}); err != nil {
		return sessionResult{err: fmt.Sprintf("start: %v", err)}
	}
	if err = awaitEvent(conn, "ready"); err != nil {
		return sessionResult{err: fmt.Sprintf("await ready: %v", err)}
	}
	startMs := float64(time.Since(begin)) / float64(time.Millisecond)

	cartBegin := time.Now()
	addToCart := json.RawMessage(`{"type":"tool","payload":{"toolName":"add_to_cart",` +
		`"params":{"productId":"1","productName":"Wireless Headphones","price":199.99}}}`)
	for range actions {
		if err = sendCommand(conn, map[string]any{"type": "ui_action", "action": addToCart}); err != nil {
			return sessionResult{err: fmt.Sprintf("ui_action: %v", err)}
		}
		if err = awaitEvent(conn, "cart"); err != nil {
			return sessionResult{err: fmt.Sprintf("await cart: %v", err)}
		}
	}
	cartMs := float64(time.Since(cartBegin)) / float64(time.Millisecond)

	sendCommand(conn, map[string]any{"type": "stop"})
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	return sessionResult{
		success: true,
		startMs: startMs,
		cartMs:  cartMs,
		totalMs: float64(time.Since(begin)) / float64(time.Millisecond),
	}
}

func sendCommand(conn *websocket.Conn, cmd map[string]any) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// awaitEvent reads frames until the wanted event type arrives. Error events
// fail the session.
func awaitEvent(conn *websocket.Conn, eventType string) error {
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var ev serverEvent
		if err = json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Type == "error" {
			return fmt.Errorf("server error: %s (%s)", ev.Error, ev.Details)
		}
		if ev.Type == eventType {
			return nil
		}
	}
}

func printSummary(results []sessionResult) {
	var succeeded, failed int
	var startAll, cartAll, totalAll []float64

	for _, r := range results {
		if !r.success {
			failed++
			continue
		}
		succeeded++
		startAll = append(startAll, r.startMs)
		cartAll = append(cartAll, r.cartMs)
		totalAll = append(totalAll, r.totalMs)
	}

	fmt.Printf("\n=== Load Test Results ===\n")
	fmt.Printf("Sessions completed: %d\n", succeeded)
	fmt.Printf("Sessions failed:    %d\n", failed)

	if len(startAll) == 0 {
		fmt.Println("No successful sessions to report metrics")
		return
	}

	fmt.Printf("\n%-6s %8s %8s %8s\n", "Stage", "p50", "p95", "p99")
	fmt.Printf("%-6s %8.0fms %8.0fms %8.0fms\n", "Start", percentile(startAll, 50), percentile(startAll, 95), percentile(startAll, 99))
	fmt.Printf("%-6s %8.0fms %8.0fms %8.0fms\n", "Cart", percentile(cartAll, 50), percentile(cartAll, 95), percentile(cartAll, 99))
	fmt.Printf("%-6s %8.0fms %8.0fms %8.0fms\n", "E2E", percentile(totalAll, 50), percentile(totalAll, 95), percentile(totalAll, 99))
}

func percentile(data []float64, pct float64) float64 {
	sort.Float64s(data)
	idx := int(math.Ceil(pct/100*float64(len(data)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(data) {
		idx = len(data) - 1
	}
	return data[idx]
}
