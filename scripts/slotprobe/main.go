// Command slotprobe walks a host's availability over the coming days and
// reports slot counts and response latency. It is a smoke tool for deploys:
// a connected host whose every day comes back empty usually means a broken
// calendar credential rather than a genuinely full diary.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"
)

type envelope struct {
	Data struct {
		HostSlug string `json:"host_slug"`
		Date     string `json:"date"`
		Slots    []struct {
			Start time.Time `json:"start"`
		} `json:"slots"`
	} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base     string
		slug     string
		timezone string
		days     int
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&slug, "slug", "", "Host slug to probe (required)")
	flag.StringVar(&timezone, "timezone", "", "Viewer timezone, defaults to the host's")
	flag.IntVar(&days, "days", 7, "Number of days to probe starting today")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if slug == "" {
		flag.Usage()
		log.Fatal("slug is required")
	}

	client := &http.Client{Timeout: timeout}
	var totalSlots, failures int

	for i := 0; i < days; i++ {
		date := time.Now().AddDate(0, 0, i).Format("2006-01-02")
		count, elapsed, err := probe(client, base, slug, date, timezone)
		if err != nil {
			failures++
			fmt.Printf("%s  ERROR  %v\n", date, err)
			continue
		}
		totalSlots += count
		fmt.Printf("%s  %3d slots  %s\n", date, count, elapsed.Round(time.Millisecond))
	}

	fmt.Printf("\n%d slots across %d days, %d failures\n", totalSlots, days, failures)
	if failures > 0 {
		os.Exit(1)
	}
}

func probe(client *http.Client, base, slug, date, timezone string) (int, time.Duration, error) {
	query := url.Values{"date": {date}}
	if timezone != "" {
		query.Set("timezone", timezone)
	}
	endpoint := fmt.Sprintf("%s/availability/%s?%s", base, url.PathEscape(slug), query.Encode())

	start := time.Now()
	resp, err := client.Get(endpoint)
	elapsed := time.Since(start)
	if err != nil {
		return 0, elapsed, err
	}
	defer resp.Body.Close()

	var body envelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, elapsed, fmt.Errorf("decode response: %w", err)
	}
	if body.Error != nil {
		return 0, elapsed, fmt.Errorf("%s: %s (HTTP %d)", body.Error.Code, body.Error.Message, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, elapsed, fmt.Errorf("unexpected HTTP %d", resp.StatusCode)
	}
	return len(body.Data.Slots), elapsed, nil
}
