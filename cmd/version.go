// File: cmd/version.go
package cmd

// Version is the build version, overridden at release time via
// -ldflags "-X github.com/couchwatch/couchwatch/cmd.Version=...".
var Version = "dev"
