// Package epiclink exposes build metadata shared by the CLI and tests.
package epiclink

// Version is the current release version. Kept in sync with the release
// tag by the mage release target.
const Version = "v0.3.0"
