package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var baseURL = "http://localhost:8080"

func main() {
	if u := os.Getenv("PHILOGRAPH_URL"); u != "" {
		baseURL = u
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")
	docID := fmt.Sprintf("smoke-%d", time.Now().Unix())

	fmt.Println("1. Extracting document...")
	var summary struct {
		Success              bool     `json:"success"`
		RelationshipsCreated int      `json:"relationships_created"`
		Errors               []string `json:"errors"`
	}
	ok := sendRequest("POST", "/extract", map[string]interface{}{
		"text":        "Socrates teaches Plato. Plato teaches Aristotle. Aristotle critiques Plato.",
		"document_id": docID,
	}, &summary)
	if !ok || !summary.Success || summary.RelationshipsCreated == 0 {
		fmt.Printf("FAILED: Extract (%+v)\n", summary)
		os.Exit(1)
	}
	fmt.Println("PASSED: Extract")

	fmt.Println("2. Analyzing network...")
	var analysis struct {
		MostConnected []struct {
			Entity struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"entity"`
		} `json:"most_connected"`
	}
	if !sendRequest("POST", "/network", map[string]interface{}{"min_relationships": 1}, &analysis) || len(analysis.MostConnected) == 0 {
		fmt.Println("FAILED: Network analysis")
		os.Exit(1)
	}
	fmt.Println("PASSED: Network analysis")

	fmt.Println("3. Reading entity relationships...")
	top := analysis.MostConnected[0].Entity
	if !sendRequest("GET", "/entities/"+top.ID+"/relationships", nil, nil) {
		fmt.Printf("FAILED: Relationships of %s\n", top.Name)
		os.Exit(1)
	}
	fmt.Println("PASSED: Entity relationships")

	fmt.Println("4. Running expert review...")
	var item struct {
		ID string `json:"id"`
	}
	if !sendRequest("POST", "/validations", map[string]interface{}{
		"item_type":  "relationship",
		"item_data":  map[string]string{"subject": "Socrates", "relation": "TEACHES", "object": "Plato"},
		"confidence": 0.7,
	}, &item) {
		fmt.Println("FAILED: Submit validation")
		os.Exit(1)
	}
	var reviewed struct {
		Status string `json:"status"`
	}
	for _, expert := range []string{"smoke-a", "smoke-b"} {
		if !sendRequest("POST", "/validations/"+item.ID+"/annotations", map[string]interface{}{
			"expert_id":        expert,
			"expert_name":      expert,
			"status":           "APPROVED",
			"confidence_score": 1.0,
		}, &reviewed) {
			fmt.Println("FAILED: Annotate")
			os.Exit(1)
		}
	}
	if reviewed.Status != "APPROVED" {
		fmt.Printf("FAILED: Expected APPROVED, got %s\n", reviewed.Status)
		os.Exit(1)
	}
	fmt.Println("PASSED: Expert review")
}

func sendRequest(method, endpoint string, payload interface{}, out interface{}) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return false
	}
	fmt.Printf("Response: %s\n", string(respBody))

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			fmt.Printf("Error decoding response: %v\n", err)
			return false
		}
	}
	return true
}
