// Package version holds the release version of the shortcuts tools.
package version

// Version is overridden at build time with:
//
//	go build -ldflags "-X github.com/BunnyStrike/deck-revealed-sub000/internal/version.Version=x.y.z"
var Version = "0.1.0"
