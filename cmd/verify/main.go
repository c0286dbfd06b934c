package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trailhead/internal/verify"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	if len(os.Args) < 2 {
		usage()
		return
	}
	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "list":
		listCmd()
	case "serve":
		serveCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Println("verify usage:")
	fmt.Println("  verify run   [--url <url>] [--marker <selector>] [--button <label>] [--settle 3s] [--headless=false]")
	fmt.Println("  verify serve [--port 8787]")
	fmt.Println("  verify list  # list run ids")
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	url := fs.String("url", verify.DefaultTargetURL, "Target URL")
	marker := fs.String("marker", verify.DefaultMarker, "CSS selector that marks the rendered map view")
	button := fs.String("button", verify.DefaultButtonLabel, "Accessible label of the button to click")
	settle := fs.Duration("settle", verify.DefaultSettle, "Wait after the click before capturing markup")
	headless := fs.Bool("headless", true, "Headless mode")
	workspace := fs.String("workspace", ".", "Workspace for run directories")
	fs.Parse(args)

	res, err := verify.Run(verify.Options{
		TargetURL:   *url,
		Marker:      strings.TrimSpace(*marker),
		ButtonLabel: strings.TrimSpace(*button),
		Settle:      *settle,
		Headless:    headless,
		Workspace:   *workspace,
	})
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	fmt.Println("Page content:")
	fmt.Println(res.Markup)
	b, _ := json.MarshalIndent(res.Manifest, "", "  ")
	fmt.Println(string(b))
}

func listCmd() {
	runs, err := verify.FindRuns(".")
	if err != nil {
		log.Fatal(err)
	}
	for _, id := range runs {
		fmt.Println(id)
	}
}

func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 8787, "Port to listen on")
	fs.Parse(args)

	s := newServer(".")
	addr := fmt.Sprintf(":%d", *port)
	log.Infof("verify serve listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, s.routes()))
}

// --- server ---

type server struct {
	workspace string
}

func newServer(workspace string) *server {
	return &server{workspace: workspace}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	mux.HandleFunc("/v1/runs", s.handleRuns)
	mux.HandleFunc("/v1/runs/", s.handleRunByID)
	// static files for artifacts
	runsDir := filepath.Join(s.workspace, "runs")
	mux.Handle("/runs/", http.StripPrefix("/runs/", http.FileServer(http.Dir(runsDir))))
	return withCORS(mux)
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

type runRequest struct {
	URL      string `json:"url"`
	Marker   string `json:"marker"`
	Button   string `json:"button"`
	SettleMS int64  `json:"settle_ms"`
	Headless *bool  `json:"headless"`
}

func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST only"})
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	opts := verify.Options{
		TargetURL:   req.URL,
		Marker:      strings.TrimSpace(req.Marker),
		ButtonLabel: strings.TrimSpace(req.Button),
		Settle:      time.Duration(req.SettleMS) * time.Millisecond,
		Headless:    req.Headless,
		Workspace:   s.workspace,
	}

	res, err := verify.Run(opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, publishManifest(res.RunID, res.Manifest))
}

func (s *server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/runs/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}
	runID := parts[0]
	if len(parts) == 1 {
		manifestPath := filepath.Join(s.workspace, "runs", runID, "run.json")
		if _, err := os.Stat(manifestPath); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		manifest, err := verify.LoadManifest(manifestPath)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, publishManifest(runID, manifest))
		return
	}

	if len(parts) >= 2 && parts[1] == "logs" {
		logPath := filepath.Join(s.workspace, "runs", runID, "logs", "runner.ndjson")
		http.ServeFile(w, r, logPath)
		return
	}

	writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown path"})
}

// publishManifest rewrites artifact names into URLs served under /runs/.
func publishManifest(runID string, m verify.Manifest) verify.Manifest {
	base := "/runs/" + runID + "/artifacts/"
	if m.Screenshot != "" {
		m.Screenshot = base + m.Screenshot
	}
	if m.BeforeHTML != "" {
		m.BeforeHTML = base + m.BeforeHTML
	}
	if m.AfterHTML != "" {
		m.AfterHTML = base + m.AfterHTML
	}
	return m
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
