package main

import (
	"fmt"
	"os"

	"github.com/primebank/guardrail/internal/auth"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/keygen/main.go <api-key>")
		fmt.Println("Generates the SHA-256 hash of an API key for use in config.yaml")
		os.Exit(1)
	}

	apiKey := os.Args[1]
	keyHash := auth.HashAPIKey(apiKey)

	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("SHA-256 Hash: %s\n", keyHash)
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("  actors:\n")
	fmt.Printf("    - id: \"<actor-id>\"\n")
	fmt.Printf("      name: \"<display name>\"\n")
	fmt.Printf("      role: \"USER\"\n")
	fmt.Printf("      key_hash: \"%s\"\n", keyHash)
}
