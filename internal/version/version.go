// Package version holds the build-wide version string referenced by
// every cmd/ utility's banner and by the in-session system stats
// screen.
package version

// Number is the displayed version string.
const Number = "3.0.0"
