package verify

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trailhead/internal/markup"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	log "github.com/sirupsen/logrus"
)

// Defaults reproduce the original smoke-check invocation: a bare run with no
// flags drives the local dev server's distance-display flow.
const (
	DefaultTargetURL   = "http://localhost:5173/"
	DefaultMarker      = ".leaflet-container"
	DefaultButtonLabel = "Simulate Run"
	DefaultSettle      = 3 * time.Second

	defaultNavTimeout    = 40 * time.Second
	defaultMarkerTimeout = 30 * time.Second
)

// Options configure a verification run.
type Options struct {
	TargetURL     string
	Marker        string        // CSS selector that signals the map view has rendered
	ButtonLabel   string        // accessible name of the button to click
	Settle        time.Duration // fixed wait after the click, before capture
	NavTimeout    time.Duration
	MarkerTimeout time.Duration
	Headless      *bool  // nil means headless, the original script's mode
	Workspace     string // base path for the runs directory; defaults to cwd
}

// Result contains the captured markup plus artifact paths and manifest.
type Result struct {
	RunID     string
	RunDir    string
	Markup    string // final page markup, for the caller to emit
	Manifest  Manifest
	LogPath   string
	Artifacts struct {
		BeforeHTML string
		AfterHTML  string
		Screenshot string
	}
}

// Manifest is persisted to run.json.
type Manifest struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	TargetURL      string    `json:"target_url"`
	Marker         string    `json:"marker"`
	ButtonLabel    string    `json:"button_label"`
	SettleMS       int64     `json:"settle_ms"`
	BeforeHTML     string    `json:"before_html"`
	AfterHTML      string    `json:"after_html"`
	Screenshot     string    `json:"screenshot"`
	MarkupSuperset bool      `json:"markup_superset"`
	MissingNodes   []string  `json:"missing_nodes,omitempty"`
	LogPath        string    `json:"log_path"`
}

func (o *Options) applyDefaults() {
	if o.TargetURL == "" {
		o.TargetURL = DefaultTargetURL
	}
	if o.Marker == "" {
		o.Marker = DefaultMarker
	}
	if o.ButtonLabel == "" {
		o.ButtonLabel = DefaultButtonLabel
	}
	if o.Settle <= 0 {
		o.Settle = DefaultSettle
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = defaultNavTimeout
	}
	if o.MarkerTimeout <= 0 {
		o.MarkerTimeout = defaultMarkerTimeout
	}
	if o.Headless == nil {
		o.Headless = playwright.Bool(true)
	}
	if o.Workspace == "" {
		cwd, _ := os.Getwd()
		o.Workspace = cwd
	}
}

// Run executes one verification pass against the target application: navigate,
// wait for the map marker, click the labeled button, settle, capture markup.
// The sequence is strictly linear; the first failing stage aborts the run.
// The browser session is released on every exit path.
func Run(opts Options) (Result, error) {
	opts.applyDefaults()

	runID := uuid.NewString()
	runDir := filepath.Join(opts.Workspace, "runs", runID)
	artifactsDir := filepath.Join(runDir, "artifacts")
	logsDir := filepath.Join(runDir, "logs")
	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return Result{}, err
	}

	logPath := filepath.Join(logsDir, "runner.ndjson")
	logFile, err := os.Create(logPath)
	if err != nil {
		return Result{}, err
	}
	defer logFile.Close()
	runLog := newNDJSONLogger(logFile)

	runLog.info("runner", "installing playwright browsers", nil)
	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		return Result{}, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return Result{}, fmt.Errorf("start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: opts.Headless,
		Args:     []string{"--disable-dev-shm-usage"},
	})
	if err != nil {
		return Result{}, fmt.Errorf("launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return Result{}, fmt.Errorf("new page: %w", err)
	}

	start := time.Now()
	log.WithField("url", opts.TargetURL).Info("Navigating")
	runLog.info("browser", "navigating", map[string]any{"url": opts.TargetURL})
	if _, err := page.Goto(opts.TargetURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(opts.NavTimeout.Milliseconds())),
	}); err != nil {
		return Result{}, fmt.Errorf("navigate: %w", err)
	}

	log.WithField("marker", opts.Marker).Info("Waiting for map container")
	runLog.info("assert", "waiting for marker", map[string]any{"selector": opts.Marker})
	if _, err := page.WaitForSelector(opts.Marker, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(opts.MarkerTimeout.Milliseconds())),
	}); err != nil {
		return Result{}, fmt.Errorf("wait for marker %q: %w", opts.Marker, err)
	}
	log.Info("Map container found")
	runLog.info("assert", "marker found", nil)

	// Pre-click snapshot, baseline for the superset sanity check.
	before, err := page.Content()
	if err != nil {
		return Result{}, fmt.Errorf("capture pre-click markup: %w", err)
	}

	log.WithField("button", opts.ButtonLabel).Info("Clicking button")
	runLog.info("action", "clicking", map[string]any{"button": opts.ButtonLabel})
	button := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
		Name: opts.ButtonLabel,
	})
	if err := button.Click(); err != nil {
		return Result{}, fmt.Errorf("click %q: %w", opts.ButtonLabel, err)
	}
	log.Info("Button clicked")
	runLog.info("action", "clicked", nil)

	log.Info("Waiting for simulation")
	runLog.info("runner", "settling", map[string]any{"ms": opts.Settle.Milliseconds()})
	page.WaitForTimeout(float64(opts.Settle.Milliseconds()))

	after, err := page.Content()
	if err != nil {
		return Result{}, fmt.Errorf("capture markup: %w", err)
	}
	log.Info("Page content captured")
	runLog.info("artifact", "markup captured", map[string]any{"bytes": len(after)})

	screenshotPath := filepath.Join(artifactsDir, "screenshot.png")
	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(screenshotPath),
		FullPage: playwright.Bool(true),
	}); err != nil {
		runLog.warn("artifact", "screenshot failed", map[string]any{"error": err.Error()})
	}

	beforePath := filepath.Join(artifactsDir, "before.html")
	afterPath := filepath.Join(artifactsDir, "after.html")
	if err := os.WriteFile(beforePath, []byte(before), 0o644); err != nil {
		runLog.warn("artifact", "write before.html failed", map[string]any{"error": err.Error()})
	}
	if err := os.WriteFile(afterPath, []byte(after), 0o644); err != nil {
		runLog.warn("artifact", "write after.html failed", map[string]any{"error": err.Error()})
	}

	superset, missing, err := markup.Superset(before, after)
	if err != nil {
		runLog.warn("assert", "superset check failed to parse", map[string]any{"error": err.Error()})
	} else if !superset {
		log.WithField("missing", len(missing)).Warn("Final markup dropped nodes from the pre-click page")
		runLog.warn("assert", "markup not a superset", map[string]any{"missing": missing})
	} else {
		runLog.info("assert", "markup superset holds", nil)
	}

	manifest := Manifest{
		RunID:          runID,
		StartedAt:      start,
		FinishedAt:     time.Now(),
		TargetURL:      opts.TargetURL,
		Marker:         opts.Marker,
		ButtonLabel:    opts.ButtonLabel,
		SettleMS:       opts.Settle.Milliseconds(),
		BeforeHTML:     filepath.Base(beforePath),
		AfterHTML:      filepath.Base(afterPath),
		Screenshot:     filepath.Base(screenshotPath),
		MarkupSuperset: superset,
		MissingNodes:   missing,
		LogPath:        logPath,
	}

	manifestPath := filepath.Join(runDir, "run.json")
	if err := writeManifest(manifestPath, manifest); err != nil {
		runLog.warn("runner", "write manifest failed", map[string]any{"error": err.Error()})
	}

	runLog.info("runner", "run finished", map[string]any{"run_id": runID})

	res := Result{
		RunID:    runID,
		RunDir:   runDir,
		Markup:   after,
		Manifest: manifest,
		LogPath:  logPath,
	}
	res.Artifacts.BeforeHTML = filepath.Join("runs", runID, "artifacts", "before.html")
	res.Artifacts.AfterHTML = filepath.Join("runs", runID, "artifacts", "after.html")
	res.Artifacts.Screenshot = filepath.Join("runs", runID, "artifacts", "screenshot.png")
	return res, nil
}

// --- helpers ---

type ndjsonLogger struct {
	w *bufio.Writer
}

type logLine struct {
	TS    time.Time      `json:"ts"`
	Level string         `json:"level"`
	Scope string         `json:"scope"`
	Msg   string         `json:"msg"`
	Meta  map[string]any `json:"meta,omitempty"`
}

func newNDJSONLogger(file *os.File) *ndjsonLogger {
	return &ndjsonLogger{w: bufio.NewWriter(file)}
}

func (l *ndjsonLogger) write(level, scope, msg string, meta map[string]any) {
	line := logLine{TS: time.Now(), Level: level, Scope: scope, Msg: msg, Meta: meta}
	b, _ := json.Marshal(line)
	l.w.Write(b)
	l.w.WriteByte('\n')
	l.w.Flush()
}

func (l *ndjsonLogger) info(scope, msg string, meta map[string]any) {
	l.write("info", scope, msg, meta)
}
func (l *ndjsonLogger) warn(scope, msg string, meta map[string]any) {
	l.write("warn", scope, msg, meta)
}

func writeManifest(path string, manifest Manifest) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(manifest)
}

// LoadManifest reads a manifest from disk.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// FindRuns returns run directories under workspace/runs.
func FindRuns(workspace string) ([]string, error) {
	runsDir := filepath.Join(workspace, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
