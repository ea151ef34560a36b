// Integration test: start the collector in server mode, trigger one run over HTTP,
// wait for it to finish and open the dashboard to check the run is listed.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

type runRecord struct {
	ID           string `json:"id"`
	Query        string `json:"query"`
	Status       string `json:"status"`
	LeadsEmitted int    `json:"leads_emitted"`
	OutputPath   string `json:"output_path"`
	Error        string `json:"error"`
}

func main() {
	collectorPath := flag.String("bin", "bin/clinic-leads-collector", "path to the collector binary")
	configPath := flag.String("config", "deployments/clinic-leads-collector.toml", "collector config file")
	baseURL := flag.String("url", "http://localhost:8080", "collector base URL")
	query := flag.String("query", "Dentist in Maadi", "search query to collect")
	wait := flag.Duration("wait", 10*time.Minute, "how long to wait for the run to finish")
	flag.Parse()

	log.SetFlags(log.Ltime)

	// Step 1: Start the collector server
	log.Printf("Starting collector server...")
	collectorCmd := exec.Command(*collectorPath, "-serve", "-config", *configPath)
	collectorCmd.Stdout = os.Stdout
	collectorCmd.Stderr = os.Stderr

	if err := collectorCmd.Start(); err != nil {
		log.Fatalf("Failed to start collector: %v", err)
	}
	defer collectorCmd.Process.Kill()

	log.Printf("Collector server started (PID: %d)", collectorCmd.Process.Pid)
	if err := waitForHealth(*baseURL, 30*time.Second); err != nil {
		log.Fatalf("Collector never became healthy: %v", err)
	}

	// Step 2: Trigger a run
	log.Printf("Requesting collection for %q...", *query)
	body := fmt.Sprintf(`{"query":%q}`, *query)
	resp, err := http.Post(*baseURL+"/collect", "application/json", strings.NewReader(body))
	if err != nil {
		log.Fatalf("Collect request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatalf("Expected 202 from /collect, got %d", resp.StatusCode)
	}

	// Step 3: Poll until the run finishes
	run, err := waitForRun(*baseURL, *query, *wait)
	if err != nil {
		log.Fatalf("Run did not finish: %v", err)
	}
	log.Printf("Run %s finished with status %s (%d leads, file %q)", run.ID, run.Status, run.LeadsEmitted, run.OutputPath)
	if run.Error != "" {
		log.Printf("Run error: %s", run.Error)
	}

	// Step 4: Check the dashboard lists the run
	if err := checkDashboard(*baseURL, run.ID); err != nil {
		log.Fatalf("Dashboard check failed: %v", err)
	}

	log.Printf("Test complete!")
}

func waitForHealth(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("no healthy response within %s", timeout)
}

func waitForRun(baseURL, query string, timeout time.Duration) (*runRecord, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		time.Sleep(2 * time.Second)

		resp, err := http.Get(baseURL + "/runs")
		if err != nil {
			continue
		}
		var listing struct {
			Runs []runRecord `json:"runs"`
		}
		err = json.NewDecoder(resp.Body).Decode(&listing)
		resp.Body.Close()
		if err != nil {
			continue
		}

		for _, run := range listing.Runs {
			if run.Query == query && run.Status != "running" {
				return &run, nil
			}
		}
	}
	return nil, fmt.Errorf("no finished run for %q within %s", query, timeout)
}

func checkDashboard(baseURL, runID string) error {
	if err := playwright.Install(); err != nil {
		return fmt.Errorf("could not install playwright: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("could not start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch()
	if err != nil {
		return fmt.Errorf("could not launch browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return fmt.Errorf("could not create page: %w", err)
	}

	log.Printf("Opening dashboard...")
	if _, err := page.Goto(baseURL + "/"); err != nil {
		return fmt.Errorf("could not open dashboard: %w", err)
	}

	content, err := page.Content()
	if err != nil {
		return err
	}
	if !strings.Contains(content, runID) {
		return fmt.Errorf("run %s not listed on the dashboard", runID)
	}

	log.Printf("Dashboard lists run %s", runID)
	return nil
}
