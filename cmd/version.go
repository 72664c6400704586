// File: cmd/version.go
package cmd

// Version is the application version.
// This value is intended to be set at build time using ldflags.
// Example: go build -ldflags "-X github.com/xkilldash9x/marionette-cli/cmd.Version=1.0.0"
var Version = "0.1.0"
