package main

import (
	"fmt"
	"os"

	"trailhead/internal/verify"

	log "github.com/sirupsen/logrus"
)

// smoke runs the distance-display verification with its built-in defaults:
// no flags, no environment, no configuration. It expects the dev server to be
// reachable at the default target URL and prints the captured markup for
// manual inspection.
func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	result, err := verify.Run(verify.Options{Workspace: "."})
	if err != nil {
		log.Fatalf("verification failed: %v", err)
	}

	fmt.Println("Page content:")
	fmt.Println(result.Markup)
}
