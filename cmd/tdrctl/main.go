package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"tdrlane/pkg/ledger"
)

const usage = "usage: tdrctl ledger verify --file <exported json> | tdrctl ledger export --base-url <orchestrator url> --project <project_id> --out <path>"

func main() {
	if len(os.Args) < 2 {
		failSummary("", "", usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "ledger":
		runLedger(os.Args[2:])
	default:
		failSummary("", "", "unknown command")
		os.Exit(2)
	}
}

func runLedger(args []string) {
	if len(args) < 1 {
		failSummary("", "", usage)
		os.Exit(2)
	}
	switch args[0] {
	case "verify":
		runLedgerVerify(args[1:])
	case "export":
		runLedgerExport(args[1:])
	default:
		failSummary("", "", usage)
		os.Exit(2)
	}
}

// runLedgerVerify re-walks an exported chain offline. Accepts either a bare
// entry array or the orchestrator's {"entries": [...]} envelope.
func runLedgerVerify(args []string) {
	fs := flag.NewFlagSet("ledger verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	filePath := fs.String("file", "", "path to exported ledger json")
	if err := fs.Parse(args); err != nil {
		failSummary("", "", err.Error())
		os.Exit(2)
	}
	if strings.TrimSpace(*filePath) == "" {
		failSummary("", "", "--file is required")
		os.Exit(2)
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		failSummary(*filePath, "", "read failed: "+err.Error())
		os.Exit(1)
	}
	entries, err := decodeEntries(data)
	if err != nil {
		failSummary(*filePath, "", "parse failed: "+err.Error())
		os.Exit(1)
	}

	res := ledger.VerifyEntries(entries)
	if !res.Valid {
		broken := ""
		if res.BrokenAt != nil {
			broken = fmt.Sprintf("%d", *res.BrokenAt)
		}
		failSummary(*filePath, broken, "chain verification failed")
		os.Exit(1)
	}
	passSummary(*filePath, len(entries))
}

func runLedgerExport(args []string) {
	fs := flag.NewFlagSet("ledger export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	baseURL := fs.String("base-url", "http://localhost:8085", "orchestrator base url")
	projectID := fs.String("project", "", "project id")
	outPath := fs.String("out", "", "path to write exported ledger json")
	if err := fs.Parse(args); err != nil {
		failSummary("", "", err.Error())
		os.Exit(2)
	}
	if strings.TrimSpace(*projectID) == "" || strings.TrimSpace(*outPath) == "" {
		failSummary("", "", "both --project and --out are required")
		os.Exit(2)
	}

	resp, err := http.Get(strings.TrimRight(*baseURL, "/") + "/projects/" + *projectID + "/ledger")
	if err != nil {
		failSummary(*outPath, "", "fetch failed: "+err.Error())
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		failSummary(*outPath, "", fmt.Sprintf("orchestrator returned %d", resp.StatusCode))
		os.Exit(1)
	}
	var out struct {
		Entries []ledger.Entry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		failSummary(*outPath, "", "decode failed: "+err.Error())
		os.Exit(1)
	}
	data, err := json.MarshalIndent(out.Entries, "", "  ")
	if err != nil {
		failSummary(*outPath, "", err.Error())
		os.Exit(1)
	}
	if err := os.WriteFile(*outPath, append(data, '\n'), 0o644); err != nil {
		failSummary(*outPath, "", "write failed: "+err.Error())
		os.Exit(1)
	}
	passSummary(*outPath, len(out.Entries))
}

func decodeEntries(data []byte) ([]ledger.Entry, error) {
	var entries []ledger.Entry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}
	var wrapped struct {
		Entries []ledger.Entry `json:"entries"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Entries, nil
}

func passSummary(path string, entries int) {
	fmt.Printf("{\"tool\":\"tdrctl\",\"status\":\"PASS\",\"path\":%s,\"entries\":%d,\"timestamp_utc\":\"%s\"}\n",
		jsonQuote(path), entries, time.Now().UTC().Format(time.RFC3339))
}

func failSummary(path, brokenAt, reason string) {
	fmt.Printf("{\"tool\":\"tdrctl\",\"status\":\"FAIL\",\"path\":%s,\"broken_at\":%s,\"reason\":%s,\"timestamp_utc\":\"%s\"}\n",
		jsonQuote(path), jsonQuote(brokenAt), jsonQuote(reason), time.Now().UTC().Format(time.RFC3339))
}

func jsonQuote(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}
