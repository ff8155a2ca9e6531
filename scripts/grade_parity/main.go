// Command grade_parity compares aggregation results served by this API
// against the legacy plugin's web service for a list of
// (course, category, user) tuples. Run it against a copy of production
// data before cutting a course over.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type tuple struct {
	CourseID   string `json:"courseId"`
	CategoryID string `json:"categoryId"`
	UserID     string `json:"userId"`
	Critical   bool   `json:"critical"`
}

type tupleFile struct {
	Tuples []tuple `json:"tuples"`
}

type aggregation struct {
	Grade      *float64 `json:"weighted_grade"`
	Display    string   `json:"display_grade"`
	Completion float64  `json:"completion"`
}

type result struct {
	Tuple          tuple
	APIStatus      int
	LegacyStatus   int
	GradeMatch     bool
	DisplayMatch   bool
	Error          error
	DurationAPI    time.Duration
	DurationLegacy time.Duration
}

func main() {
	var (
		apiBase    string
		legacyBase string
		tuplesPath string
		token      string
		tolerance  float64
		timeout    time.Duration
	)

	flag.StringVar(&apiBase, "api-base", "http://localhost:8080/api/v1", "this API's base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:3000", "legacy plugin base URL")
	flag.StringVar(&tuplesPath, "tuples", filepath.Join("scripts", "grade_parity", "tuples.json"), "path to JSON tuples file")
	flag.StringVar(&token, "token", os.Getenv("PARITY_TOKEN"), "bearer token for both endpoints")
	flag.Float64Var(&tolerance, "tolerance", 0.00001, "numeric tolerance; the legacy plugin rounds grades to five decimals")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	tuples, err := loadTuples(tuplesPath)
	if err != nil {
		log.Fatalf("failed to load tuples: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results  []result
		breaking int
		optional int
	)

	for _, tp := range tuples {
		res := compareTuple(client, apiBase, legacyBase, token, tolerance, tp)
		if res.Error != nil || !res.GradeMatch || !res.DisplayMatch {
			if tp.Critical {
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

func loadTuples(path string) ([]tuple, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f tupleFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Tuples) == 0 {
		return nil, fmt.Errorf("no tuples defined in %s", path)
	}
	return f.Tuples, nil
}

func compareTuple(client *http.Client, apiBase, legacyBase, token string, tolerance float64, tp tuple) result {
	res := result{Tuple: tp}

	apiAgg, apiStatus, apiDur, err := fetchAggregation(client, apiURL(apiBase, tp), token)
	res.APIStatus = apiStatus
	res.DurationAPI = apiDur
	if err != nil {
		res.Error = fmt.Errorf("api request failed: %w", err)
		return res
	}

	legacyAgg, legacyStatus, legacyDur, err := fetchAggregation(client, legacyURL(legacyBase, tp), token)
	res.LegacyStatus = legacyStatus
	res.DurationLegacy = legacyDur
	if err != nil {
		res.Error = fmt.Errorf("legacy request failed: %w", err)
		return res
	}

	res.GradeMatch = gradesEqual(apiAgg.Grade, legacyAgg.Grade, tolerance)
	res.DisplayMatch = apiAgg.Display == legacyAgg.Display
	return res
}

func apiURL(base string, tp tuple) string {
	return fmt.Sprintf("%s/courses/%s/categories/%s/users/%s/aggregation",
		strings.TrimRight(base, "/"), tp.CourseID, tp.CategoryID, tp.UserID)
}

func legacyURL(base string, tp tuple) string {
	return fmt.Sprintf("%s/grade/aggregation?course=%s&category=%s&user=%s",
		strings.TrimRight(base, "/"), tp.CourseID, tp.CategoryID, tp.UserID)
}

func fetchAggregation(client *http.Client, url, token string) (*aggregation, int, time.Duration, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, time.Since(start), err
	}

	var envelope struct {
		Data aggregation `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, resp.StatusCode, time.Since(start), fmt.Errorf("decode body: %w", err)
	}
	return &envelope.Data, resp.StatusCode, time.Since(start), nil
}

func gradesEqual(a, b *float64, tolerance float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) <= tolerance
}

func printReport(results []result) {
	fmt.Println("Grade Parity Report")
	fmt.Println("===================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.GradeMatch || !res.DisplayMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] course=%s category=%s user=%s\n", status, res.Tuple.CourseID, res.Tuple.CategoryID, res.Tuple.UserID)
		fmt.Printf("  API Status: %d (%s)\n", res.APIStatus, res.DurationAPI)
		fmt.Printf("  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Grade match: %t | Display match: %t | Critical: %t\n", res.GradeMatch, res.DisplayMatch, res.Tuple.Critical)
		}
	}
}
