package cmd

import (
	"fmt"
	"os"
)

// Version information (injected at build time via ldflags).
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// runVersion prints version and credential status.
func runVersion() {
	fmt.Printf("stash %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)

	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Println()
		fmt.Println("GEMINI_API_KEY is not set; ask and serve will refuse requests.")
		fmt.Println("  export GEMINI_API_KEY=your-api-key")
	}
}
