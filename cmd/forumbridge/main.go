// Command forumbridge files GitHub issues from Discord forum threads.
package main

import (
	"fmt"
	"os"

	// Embedded root certificates for distroless/scratch images.
	_ "golang.org/x/crypto/x509roots/fallback"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
