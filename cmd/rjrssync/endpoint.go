package main

import (
	"regexp"
	"strings"

	"github.com/rjrssync/rjrssync/internal/boss"
)

// endpointPattern recognizes "[user@]host:path". A single-letter host
// is treated as a Windows drive letter ("C:\foo") rather than a remote
// host, mirroring rclone's own remote-vs-local-path disambiguation.
var endpointPattern = regexp.MustCompile(`^(?:([^@:]+)@)?([^@:]{2,}):(.+)$`)

// parseEndpoint splits a CLI positional argument into a boss.Endpoint,
// recording whether it ended in a path separator (significant per
// spec section 4.3's root-resolution rules) before any trimming.
func parseEndpoint(arg string) boss.Endpoint {
	trailingSlash := strings.HasSuffix(arg, "/") || strings.HasSuffix(arg, "\\")

	if m := endpointPattern.FindStringSubmatch(arg); m != nil {
		user, host, path := m[1], m[2], m[3]
		return boss.Endpoint{
			Path:          path,
			TrailingSlash: trailingSlash,
			Remote: &boss.RemoteSpec{
				User: user,
				Host: host,
			},
		}
	}

	return boss.Endpoint{Path: arg, TrailingSlash: trailingSlash}
}
