// Package version provides build information for Cadence.
package version

// Version is the current release version of Cadence.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/Cadence/internal/version.Version=x.y.z"
var Version = "0.3.0"
