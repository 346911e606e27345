package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Thin operator CLI: runs an on-demand probe sweep through the API and
// prints the per-target outcome.
func main() {
	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	key := os.Getenv("ADMIN_API_KEY")

	req, err := http.NewRequest(http.MethodPost, api+"/api/health-check", nil)
	if err != nil {
		fmt.Println("Bad API_BASE:", err)
		os.Exit(1)
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		fmt.Println("API returned status:", resp.Status, strings.TrimSpace(string(body)))
		os.Exit(1)
	}

	var out struct {
		Results []struct {
			Target struct {
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"target"`
			Status         string  `json:"status"`
			StatusCode     int     `json:"status_code"`
			ResponseTimeMS float64 `json:"response_time_ms"`
			ErrorMessage   string  `json:"error_message,omitempty"`
		} `json:"results"`
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Println("Bad response:", err)
		os.Exit(1)
	}

	for _, r := range out.Results {
		line := fmt.Sprintf("%-20s %-10s %3d  %6.0fms", r.Target.Name, r.Status, r.StatusCode, r.ResponseTimeMS)
		if r.ErrorMessage != "" {
			line += "  " + r.ErrorMessage
		}
		fmt.Println(line)
	}
	fmt.Printf("%d target(s) checked\n", out.Total)
}
