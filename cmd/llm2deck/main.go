// Package main provides the entry point for the LLM2Deck CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "llm2deck",
	Short: "Concurrent Anki deck generation from multiple LLM backends",
	Long:  "LLM2Deck fans each question out to several LLM backends, validates and merges their candidate card sets, and assembles the results into an Anki deck. Runs are persisted and resumable.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
