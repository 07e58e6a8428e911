// Package main — cmd/corkboard-bench/main.go
//
// POST round-trip latency measurement tool.
//
// Dials a running corkboard server, completes the handshake, then
// issues POST commands in a tight loop, measuring the wall-clock time
// from write to reply for each one.
//
// Output CSV columns:
//   iteration, latency_us, rejected (true/false)
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	iterations := flag.Int("iterations", 10000, "Number of POST round-trips to measure")
	outputFile := flag.String("output", "post_latency_raw.csv", "Output CSV file path")
	addr := flag.String("addr", "127.0.0.1:9000", "corkboard server address")
	color := flag.String("color", "red", "Color to POST with")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	boardW, boardH, err := readHandshake(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "handshake: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	_ = w.Write([]string{"iteration", "latency_us", "rejected"})

	var (
		totalRejected int
		hist          [10001]int
	)

	for i := 0; i < *iterations; i++ {
		x := i % boardW
		y := (i / boardW) % boardH
		cmd := fmt.Sprintf("POST %d %d %s bench-%d\n", x, y, *color, i)

		start := time.Now()
		if _, err := conn.Write([]byte(cmd)); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		line, err := r.ReadString('\n')
		latency := time.Since(start)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", err)
			os.Exit(1)
		}

		rejected := !strings.HasPrefix(line, "OK POSTED")
		if rejected {
			totalRejected++
		}

		latencyUs := int(latency.Microseconds())
		if latencyUs < len(hist) {
			hist[latencyUs]++
		}

		_ = w.Write([]string{
			strconv.Itoa(i),
			strconv.Itoa(latencyUs),
			strconv.FormatBool(rejected),
		})
	}

	p50, p95, p99 := computePercentiles(hist[:], *iterations)

	fmt.Printf("POST Latency Results (%d iterations)\n", *iterations)
	fmt.Printf("  Rejected: %d/%d (%.1f%%)\n", totalRejected, *iterations,
		float64(totalRejected)/float64(*iterations)*100)
	fmt.Printf("  p50: %dµs\n", p50)
	fmt.Printf("  p95: %dµs\n", p95)
	fmt.Printf("  p99: %dµs\n", p99)
	fmt.Printf("  Output: %s\n", *outputFile)
}

// readHandshake consumes the four fixed handshake lines and returns the
// advertised board dimensions.
func readHandshake(r *bufio.Reader) (boardW, boardH int, err error) {
	boardLine, err := r.ReadString('\n')
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(boardLine)
	if len(fields) != 3 || fields[0] != "BOARD" {
		return 0, 0, fmt.Errorf("unexpected handshake line: %q", boardLine)
	}
	boardW, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, err
	}
	boardH, err = strconv.Atoi(fields[2])
	if err != nil {
		return 0, 0, err
	}

	for i := 0; i < 3; i++ {
		if _, err := r.ReadString('\n'); err != nil {
			return 0, 0, err
		}
	}
	return boardW, boardH, nil
}

func computePercentiles(hist []int, total int) (p50, p95, p99 int) {
	targets := []struct {
		pct float64
		out *int
	}{
		{0.50, &p50},
		{0.95, &p95},
		{0.99, &p99},
	}
	cumulative := 0
	ti := 0
	for i, count := range hist {
		cumulative += count
		for ti < len(targets) && float64(cumulative) >= targets[ti].pct*float64(total) {
			*targets[ti].out = i
			ti++
		}
		if ti == len(targets) {
			break
		}
	}
	return
}
