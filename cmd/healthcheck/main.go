package main

import (
	"net/http"
	"os"
)

func main() {
	port := os.Getenv("CLIENTMOCK_PORT")
	if port == "" {
		port = "8080"
	}
	resp, err := http.Get("http://localhost:" + port + "/__admin/health")
	if err != nil || resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
