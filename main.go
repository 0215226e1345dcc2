// ./main.go
package main

import (
	"github.com/joho/godotenv"

	"github.com/couchwatch/couchwatch/cmd"
)

// main is the entry point for the couchwatch application.
func main() {
	// Load a local .env if present. Missing files are fine; real deployments
	// configure through the environment or config.yaml.
	_ = godotenv.Load()

	cmd.Execute()
}
