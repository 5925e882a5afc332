package launcher

import "github.com/rjrssync/rjrssync/internal/platformtag"

// PlatformTag returns the "<arch>-<os>" tag used both for embedded
// payload section names (spec 4.4's "On-disk payload format") and for
// the handshake banner's PLATFORM field.
func PlatformTag() string { return platformtag.Current() }

func platformTagFor(goarch, goos string) string { return platformtag.For(goarch, goos) }
