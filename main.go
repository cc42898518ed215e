package main

import (
	"log"
	"net/http"
	"os"

	"url-vetting-poc/detection"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	// Get port from environment (for cloud deployment) or default to 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	cfg := detection.ConfigFromEnv()
	store := detection.NewModelStore(cfg.BundlePath)

	// The service cannot classify without a valid bundle; fail now, not on
	// the first request.
	if _, err := store.Bundle(); err != nil {
		log.Fatalf("[MODEL] %v", err)
	}

	pipeline := detection.NewPipeline(cfg, store)
	handlers := detection.NewHandlers(pipeline, store)

	http.HandleFunc("/check", handlers.Check)
	http.HandleFunc("/batch", handlers.Batch)
	http.HandleFunc("/healthz", handlers.Health)

	log.Printf("url-vetting service listening on :%s", port)
	log.Println("Endpoints:")
	log.Println("   POST /check    - Classify a single URL")
	log.Println("   POST /batch    - Classify a list of URLs")
	log.Println("   GET  /healthz  - Model bundle status")

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}
