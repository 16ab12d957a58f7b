// Command regionsync runs a single region sync, reports a region's stored
// version, or prints the query box for a center and radius.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
