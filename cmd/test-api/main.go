// Package main is a smoke-test utility that verifies the linking backend's
// HTTP API is reachable and returning valid responses. It issues real HTTP
// requests to the health, readiness, and version endpoints and prints each
// status code and response body, making it useful for quick post-deployment
// checks without needing external tooling like curl or a full integration
// test suite.
package main

import (
	"fmt"
	"io"
	"net/http"
)

func main() {
	endpoints := []string{
		"http://localhost:8080/health",
		"http://localhost:8080/ready",
		"http://localhost:8080/version",
	}

	for _, url := range endpoints {
		resp, err := http.Get(url)
		if err != nil {
			fmt.Printf("%s: Error: %v\n", url, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			fmt.Printf("%s: Error reading body: %v\n", url, err)
			continue
		}

		fmt.Printf("%s\n", url)
		fmt.Printf("Status: %d\n", resp.StatusCode)
		fmt.Printf("Response:\n%s\n\n", string(body))
	}
}
