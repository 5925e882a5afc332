// Package platformtag names the "<arch>-<os>" tag used both for the
// handshake banner's PLATFORM field (internal/launcher) and for
// embedded payload section names (internal/embed), per spec section
// 4.4's "On-disk payload format": `<arch>-<os>`, e.g. `x86_64-linux`.
package platformtag

import "runtime"

// Current returns the running binary's own platform tag.
func Current() string {
	return For(runtime.GOARCH, runtime.GOOS)
}

// For maps a Go arch/os pair to the platform tag vocabulary.
func For(goarch, goos string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "x86"
	}
	return arch + "-" + goos
}

// FromUname maps the output of `uname -m`/`uname -s` (used to probe a
// remote host that has no rjrssync binary to report its own tag) onto
// the same vocabulary.
func FromUname(machine, osName string) string {
	arch := machine
	switch machine {
	case "x86_64":
		arch = "x86_64"
	case "aarch64", "arm64":
		arch = "aarch64"
	case "i686", "i386":
		arch = "x86"
	}
	os := osName
	switch osName {
	case "Linux":
		os = "linux"
	case "Darwin":
		os = "darwin"
	}
	return arch + "-" + os
}
