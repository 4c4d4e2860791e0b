package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

// volatileFields differ between identical generation requests and are dropped before
// bodies are compared.
var volatileFields = []string{"requestId", "stats"}

type target struct {
	Name     string          `json:"name"`
	Path     string          `json:"path"`
	Payload  json.RawMessage `json:"payload"`
	Critical bool            `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type replay struct {
	Target     target
	Runs       int
	Statuses   map[int]int
	Mismatches int
	Error      error
	Slowest    time.Duration
}

func main() {
	var (
		base        string
		token       string
		targetsPath string
		runs        int
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL including prefix")
	flag.StringVar(&token, "token", os.Getenv("TIMETABLE_TOKEN"), "Bearer token")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "determinism_check", "targets.json"), "Path to JSON targets file")
	flag.IntVar(&runs, "runs", 5, "Replays per target")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flag.Parse()

	if runs < 2 {
		log.Fatalf("runs must be at least 2")
	}

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results  []replay
		breaking int
		optional int
	)
	for _, t := range targets {
		res := replayTarget(client, base, token, t, runs)
		if res.Error != nil || res.Mismatches > 0 || len(res.Statuses) > 1 {
			if t.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func replayTarget(client *http.Client, base, token string, tgt target, runs int) replay {
	res := replay{Target: tgt, Runs: runs, Statuses: make(map[int]int)}
	var first interface{}
	for i := 0; i < runs; i++ {
		status, body, dur, err := post(client, base, token, tgt)
		if err != nil {
			res.Error = fmt.Errorf("run %d: %w", i+1, err)
			return res
		}
		res.Statuses[status]++
		if dur > res.Slowest {
			res.Slowest = dur
		}
		normalized, err := normalizeBody(body)
		if err != nil {
			res.Error = fmt.Errorf("run %d: decode body: %w", i+1, err)
			return res
		}
		if i == 0 {
			first = normalized
			continue
		}
		if !reflect.DeepEqual(first, normalized) {
			res.Mismatches++
		}
	}
	return res
}

func post(client *http.Client, base, token string, tgt target) (int, []byte, time.Duration, error) {
	if client == nil {
		return 0, nil, 0, errors.New("nil client")
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(base, "/")+path, bytes.NewReader(tgt.Payload))
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, err
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// normalizeBody decodes a response and strips volatile fields. Non-JSON bodies, such as
// exports, are compared byte for byte.
func normalizeBody(body []byte) (interface{}, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return string(trimmed), nil
	}
	var v interface{}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, err
	}
	if envelope, ok := v.(map[string]interface{}); ok {
		if data, ok := envelope["data"].(map[string]interface{}); ok {
			for _, field := range volatileFields {
				delete(data, field)
			}
		}
	}
	return v, nil
}

func printReport(results []replay) {
	fmt.Println("Determinism Report")
	fmt.Println("==================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.Mismatches > 0 || len(res.Statuses) > 1 {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s POST %s\n", status, res.Target.Name, res.Target.Path)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Runs: %d | Statuses: %v | Mismatches: %d | Slowest: %s | Critical: %t\n",
			res.Runs, res.Statuses, res.Mismatches, res.Slowest, res.Target.Critical)
	}
}
