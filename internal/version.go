// Package internal holds build metadata shared by the commands.
package internal

// Version is the current build version. Overridden at build time with
// -ldflags "-X github.com/voteguard/voteguard-node/internal.Version=...".
var Version = "dev"
