package version

import (
	_ "embed" // for go:embed
	"strconv"
	"strings"
)

// VERSION holds the server's version
//
//go:embed VERSION
var VERSION string

// RELEASE is the package release of this build. It is overwritten at link
// time with -ldflags "-X .../internal/version.RELEASE=<n>".
var RELEASE = "1"

// Version segments
var (
	MAJOR int
	MINOR int
	FIX   int
	PRE   int
)

func init() {
	VERSION = strings.TrimSpace(VERSION)
	v := strings.Split(VERSION, ".")
	MAJOR, _ = strconv.Atoi(v[0])
	if len(v) > 1 {
		MINOR, _ = strconv.Atoi(v[1])
	}
	if len(v) > 2 {
		ps := strings.Split(v[2], "-")
		FIX, _ = strconv.Atoi(ps[0])
		if len(ps) > 1 {
			pre := strings.TrimPrefix(ps[1], "pr")
			PRE, _ = strconv.Atoi(pre)
		}
	}
}

// Full returns the version string written into manifest metadata,
// formatted as "<version>-<release>".
func Full() string {
	return VERSION + "-" + RELEASE
}
