package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"
)

// volatileKeys differ between two independent computations of the same ledger.
var volatileKeys = map[string]bool{
	"id":           true,
	"createdAt":    true,
	"updatedAt":    true,
	"lockedAt":     true,
	"snapshotDate": true,
}

// target pairs a Go API path with the legacy callable function serving the
// same view. LegacyData is sent as the callable's data argument.
type target struct {
	Name           string                 `yaml:"name"`
	GoPath         string                 `yaml:"goPath"`
	LegacyFunction string                 `yaml:"legacyFunction"`
	LegacyData     map[string]interface{} `yaml:"legacyData"`
	Critical       bool                   `yaml:"critical"`
}

type targetsFile struct {
	Targets []target `yaml:"targets"`
}

type comparison struct {
	Target         target
	Diff           string
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f targetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return f.Targets, nil
}

func compareTarget(client *http.Client, goBase, legacyBase string, t target) comparison {
	res := comparison{Target: t}

	goReq, err := http.NewRequest(http.MethodGet, joinURL(goBase, t.GoPath), nil)
	if err != nil {
		res.Error = err
		return res
	}
	var goEnv struct {
		Data interface{} `json:"data"`
	}
	res.DurationGo, err = do(client, goReq, &goEnv)
	if err != nil {
		res.Error = fmt.Errorf("go request failed: %w", err)
		return res
	}

	payload, err := json.Marshal(map[string]interface{}{"data": t.LegacyData})
	if err != nil {
		res.Error = err
		return res
	}
	legacyReq, err := http.NewRequest(http.MethodPost, joinURL(legacyBase, t.LegacyFunction), bytes.NewReader(payload))
	if err != nil {
		res.Error = err
		return res
	}
	legacyReq.Header.Set("Content-Type", "application/json")
	var legacyEnv struct {
		Result interface{} `json:"result"`
	}
	res.DurationLegacy, err = do(client, legacyReq, &legacyEnv)
	if err != nil {
		res.Error = fmt.Errorf("legacy request failed: %w", err)
		return res
	}

	res.Diff = diffPayloads(legacyEnv.Result, goEnv.Data)
	return res
}

// do sends req and decodes a 200 response body into dest.
func do(client *http.Client, req *http.Request, dest interface{}) (time.Duration, error) {
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	elapsed := time.Since(start)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return elapsed, err
	}
	if resp.StatusCode != http.StatusOK {
		return elapsed, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return elapsed, fmt.Errorf("decode body: %w", err)
	}
	return elapsed, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// diffPayloads returns a cmp diff of two decoded JSON documents, ignoring
// volatile keys at any depth. An empty string means the views agree.
func diffPayloads(legacy, current interface{}) string {
	return cmp.Diff(legacy, current,
		cmpopts.IgnoreMapEntries(func(k string, _ interface{}) bool { return volatileKeys[k] }),
		cmpopts.EquateApprox(0, 0.05),
		cmpopts.EquateEmpty(),
	)
}

func printReport(w io.Writer, results []comparison) {
	fmt.Fprintln(w, "Shadow Compare Report")
	fmt.Fprintln(w, "=====================")
	for _, res := range results {
		status := "OK"
		switch {
		case res.Error != nil:
			status = "ERROR"
		case res.Diff != "":
			status = "DIFF"
		}
		fmt.Fprintf(w, "[%s] %s (critical: %t)\n", status, res.Target.Name, res.Target.Critical)
		fmt.Fprintf(w, "  go: %s (%s)  legacy: %s (%s)\n", res.Target.GoPath, res.DurationGo, res.Target.LegacyFunction, res.DurationLegacy)
		if res.Error != nil {
			fmt.Fprintf(w, "  error: %v\n", res.Error)
		} else if res.Diff != "" {
			fmt.Fprintf(w, "  diff (-legacy +go):\n%s\n", res.Diff)
		}
	}
}
