//go:build ignore

// Loadtest is a concurrent TCP load generator that measures throughput,
// latency percentiles, and backend distribution through the proxy.
//
// Usage:
//
//	go run loadtest.go -addr localhost:8000 -concurrency 10 -connections 1000
//	go run loadtest.go -addr localhost:8000 -concurrency 50 -connections 5000 -out summary.json
//
// Pair it with scripts/backend.go: each backend prefixes replies with its
// name, which is how connections are attributed to backends.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type backendStats struct {
	Count     int             `json:"count"`
	Latencies []time.Duration `json:"-"`
}

type summary struct {
	Target        string         `json:"target"`
	Connections   int            `json:"connections"`
	Concurrency   int            `json:"concurrency"`
	Success       int32          `json:"success"`
	Failure       int32          `json:"failure"`
	DurationMS    int64          `json:"duration_ms"`
	ThroughputCPS float64        `json:"throughput_cps"`
	P50           float64        `json:"p50_ms"`
	P90           float64        `json:"p90_ms"`
	P99           float64        `json:"p99_ms"`
	Backends      map[string]int `json:"backends"`
}

func main() {
	var (
		addr        = flag.String("addr", "localhost:8000", "Proxy address")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent workers")
		connections = flag.Int("connections", 100, "Total number of connections to open")
		payload     = flag.String("payload", "ping", "Line sent on every connection")
		timeout     = flag.Duration("timeout", 5*time.Second, "Per-connection timeout")
		outJSON     = flag.String("out", "", "Write JSON summary to this file (optional)")
		verbose     = flag.Bool("v", false, "Verbose per-connection logging to stdout")
	)
	flag.Parse()

	jobs := make(chan int)
	var wg sync.WaitGroup

	var success, failure int32

	stats := make(map[string]*backendStats)
	var all []time.Duration
	var mu sync.Mutex

	testStart := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range jobs {
				start := time.Now()
				backend, err := exchange(*addr, *payload, *timeout)
				dur := time.Since(start)

				if err != nil {
					atomic.AddInt32(&failure, 1)
					if *verbose {
						fmt.Printf("[%d] idx=%d error=%v\n", workerID, idx, err)
					}
					continue
				}
				atomic.AddInt32(&success, 1)

				mu.Lock()
				bs, ok := stats[backend]
				if !ok {
					bs = &backendStats{}
					stats[backend] = bs
				}
				bs.Count++
				bs.Latencies = append(bs.Latencies, dur)
				all = append(all, dur)
				mu.Unlock()

				if *verbose {
					fmt.Printf("[%d] idx=%d backend=%s dur=%v\n", workerID, idx, backend, dur)
				}
			}
		}(i)
	}

	go func() {
		for i := 0; i < *connections; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()
	totalDuration := time.Since(testStart)

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	report := summary{
		Target:        *addr,
		Connections:   *connections,
		Concurrency:   *concurrency,
		Success:       success,
		Failure:       failure,
		DurationMS:    totalDuration.Milliseconds(),
		ThroughputCPS: float64(success+failure) / totalDuration.Seconds(),
		P50:           percentileMS(all, 0.50),
		P90:           percentileMS(all, 0.90),
		P99:           percentileMS(all, 0.99),
		Backends:      make(map[string]int, len(stats)),
	}

	fmt.Println("--- Load Test Summary ---")
	fmt.Printf("Target: %s\n", report.Target)
	fmt.Printf("Connections: %d  Concurrency: %d\n", report.Connections, report.Concurrency)
	fmt.Printf("Success: %d  Failure: %d\n", report.Success, report.Failure)
	fmt.Printf("Duration: %v  Throughput: %.2f conn/s\n", totalDuration, report.ThroughputCPS)
	fmt.Printf("Latency p50=%.2fms p90=%.2fms p99=%.2fms\n", report.P50, report.P90, report.P99)

	fmt.Println("\nBackend distribution:")
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		bs := stats[name]
		report.Backends[name] = bs.Count
		sort.Slice(bs.Latencies, func(i, j int) bool { return bs.Latencies[i] < bs.Latencies[j] })
		fmt.Printf("  %s -> %d (p50=%.2fms p99=%.2fms)\n", name, bs.Count,
			percentileMS(bs.Latencies, 0.50), percentileMS(bs.Latencies, 0.99))
	}

	if *outJSON != "" {
		f, err := os.Create(*outJSON)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create json file: %v\n", err)
			os.Exit(1)
		}
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		enc.Encode(report)
		f.Close()
		fmt.Printf("\nWrote JSON summary to %s\n", *outJSON)
	}

	if failure > 0 {
		os.Exit(2)
	}
}

// exchange sends one line over a fresh connection and returns the name of
// the backend that echoed it.
func exchange(addr, payload string, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}

	if _, err := fmt.Fprintf(conn, "%s\n", payload); err != nil {
		return "", err
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}

	name, echoed, ok := strings.Cut(strings.TrimSuffix(line, "\n"), " ")
	if !ok || echoed != payload {
		return "", fmt.Errorf("unexpected reply %q", line)
	}

	return name, nil
}

// percentileMS expects sorted input.
func percentileMS(sorted []time.Duration, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * pct)
	return float64(sorted[idx].Microseconds()) / 1000.0
}
