package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/yourorg/seekd/internal/version"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      any             `json:"id,omitempty"`
}

type searchResult struct {
	RelativePath string `json:"relative_path"`
	Line         int    `json:"line"`
	Character    int    `json:"character"`
	Preview      string `json:"preview"`
}

func main() {
	daemonAddr := flag.String("daemon-addr", "127.0.0.1:7043", "Daemon JSON-RPC listen address")
	daemonHTTP := flag.String("daemon-http", "127.0.0.1:7044", "Daemon HTTP management address")
	daemonPath := flag.String("daemon-path", "", "Path to the seekd executable. If empty, tries next to this binary or in PATH")
	startTimeout := flag.Duration("daemon-start-timeout", 5*time.Second, "Timeout waiting for the daemon to start")

	roots := flag.String("roots", "", "Comma-separated workspace roots (defaults to the current directory)")
	dir := flag.String("dir", "", "Restrict the search to one directory")
	file := flag.String("file", "", "Restrict the search to one file")
	mask := flag.String("mask", "", "File mask, e.g. '*.go,!*_test.go'")
	matchCase := flag.Bool("case", false, "Case-sensitive matching")
	wholeWord := flag.Bool("word", false, "Whole-word matching")
	useRegex := flag.Bool("regex", false, "Interpret the query as a regular expression")
	multiline := flag.Bool("multiline", false, "Allow the query to span lines")
	maxResults := flag.Int("max", 0, "Result cap (0 = daemon default)")
	noExcludes := flag.Bool("no-excludes", false, "Search ignored and excluded directories too")
	replace := flag.String("replace", "", "Replace every match with this text")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info().String())
		os.Exit(0)
	}

	query := strings.Join(flag.Args(), " ")
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: seek [flags] QUERY")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(*daemonAddr, *daemonHTTP, *daemonPath, *startTimeout, *roots, *dir, *file, *mask,
		*matchCase, *wholeWord, *useRegex, *multiline, *maxResults, *noExcludes, *replace, query); err != nil {
		fmt.Fprintln(os.Stderr, "seek:", err)
		os.Exit(1)
	}
}

func run(daemonAddr, daemonHTTP, daemonPath string, startTimeout time.Duration,
	roots, dir, file, mask string, matchCase, wholeWord, useRegex, multiline bool,
	maxResults int, noExcludes bool, replace, query string) error {

	if err := ensureDaemon(daemonAddr, daemonHTTP, daemonPath, startTimeout); err != nil {
		return err
	}

	rootList := splitList(roots)
	if len(rootList) == 0 && dir == "" && file == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		rootList = []string{cwd}
	}
	if len(rootList) > 0 {
		if _, err := callDaemon(daemonAddr, "SetWorkspaceRoots", map[string]any{"roots": rootList}); err != nil {
			return fmt.Errorf("set roots: %w", err)
		}
	}

	params := map[string]any{
		"query": query,
		"options": map[string]any{
			"match_case": matchCase,
			"whole_word": wholeWord,
			"use_regex":  useRegex,
			"multiline":  multiline,
			"file_mask":  mask,
		},
	}
	switch {
	case file != "":
		params["scope"] = "file"
		params["file_path"] = file
	case dir != "":
		params["scope"] = "directory"
		params["directory_path"] = dir
	}
	if maxResults > 0 {
		params["max_results"] = maxResults
	}
	if noExcludes {
		params["smart_excludes"] = false
	}

	if replace != "" {
		params["replacement"] = replace
		raw, err := callDaemon(daemonAddr, "ReplaceAll", params)
		if err != nil {
			return err
		}
		var out struct {
			Replaced int `json:"replaced"`
		}
		_ = json.Unmarshal(raw, &out)
		fmt.Printf("replaced %d occurrences\n", out.Replaced)
		return nil
	}

	raw, err := callDaemon(daemonAddr, "Search", params)
	if err != nil {
		return err
	}
	var out struct {
		Results []searchResult `json:"results"`
		Count   int            `json:"count"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	for _, r := range out.Results {
		fmt.Printf("%s:%d:%d: %s\n", r.RelativePath, r.Line+1, r.Character+1, r.Preview)
	}
	if out.Count == 0 {
		fmt.Fprintln(os.Stderr, "no matches")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func callDaemon(addr string, method string, params map[string]any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)
	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: mustMarshal(params), ID: 1}
	if err := enc.Encode(req); err != nil {
		return nil, err
	}
	var resp rpcResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s", resp.Error.Message)
	}
	return resp.Result, nil
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

func ensureDaemon(addr, httpAddr, daemonPath string, timeout time.Duration) error {
	if isPortOpen(addr, 150*time.Millisecond) {
		return nil
	}

	path := daemonPath
	if path == "" {
		path = findDaemonExecutable()
	}
	if path == "" {
		return fmt.Errorf("daemon not running and seekd executable not found; please set --daemon-path")
	}

	args := []string{"--listen", addr, "--http", httpAddr, "--log-level", "warn"}
	cmd := exec.Command(path, args...)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon failed: %w", err)
	}
	_ = cmd.Process.Release()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if isPortOpen(addr, 250*time.Millisecond) {
			return nil
		}
		time.Sleep(120 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not start within %s", timeout)
}

func isPortOpen(addr string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func findDaemonExecutable() string {
	// Prefer a sibling binary next to the current executable.
	exe, err := os.Executable()
	if err == nil {
		dir := filepath.Dir(exe)
		for _, name := range []string{"seekd.exe", "seekd"} {
			p := filepath.Join(dir, name)
			if st, err := os.Stat(p); err == nil && !st.IsDir() {
				return p
			}
		}
	}
	// Fallback: search in PATH.
	if p, err := exec.LookPath("seekd"); err == nil {
		return p
	}
	return ""
}
