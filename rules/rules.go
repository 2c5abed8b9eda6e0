// Package rules handles the versioning of the bundled rule set and the
// export eligibility of entitlements.
package rules

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// versionPrefix marks the header line carrying the rules version
const versionPrefix = "// Version:"

// Version is a rules version of the form MAJOR.MINOR.
type Version struct {
	Major int
	Minor int
}

// String implements the fmt.Stringer interface
func (v Version) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// ParseVersion parses a MAJOR.MINOR version string.
func ParseVersion(s string) (Version, error) {
	major, minor, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Version{}, errors.Errorf("invalid rules version '%s'", s)
	}
	var v Version
	var err error
	if v.Major, err = strconv.Atoi(major); err != nil {
		return Version{}, errors.Wrapf(err, "invalid rules version '%s'", s)
	}
	// anything after a second dot is ignored
	minor, _, _ = strings.Cut(minor, ".")
	if v.Minor, err = strconv.Atoi(minor); err != nil {
		return Version{}, errors.Wrapf(err, "invalid rules version '%s'", s)
	}
	return v, nil
}

// VersionFromSource reads the version header from the first lines of a rules file.
func VersionFromSource(source string) (Version, error) {
	scanner := bufio.NewScanner(strings.NewReader(source))
	for i := 0; i < 10 && scanner.Scan(); i++ {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, versionPrefix) {
			return ParseVersion(strings.TrimPrefix(line, versionPrefix))
		}
	}
	return Version{}, errors.New("rules file has no version header")
}

// IsNewerOrCompatible decides whether incoming rules may replace the
// current ones: they must share the major version and have the same or a
// newer minor version. Anything replaces no rules at all.
func IsNewerOrCompatible(current *Version, incoming Version) bool {
	if current == nil {
		return true
	}
	return current.Major == incoming.Major && incoming.Minor >= current.Minor
}

// CanExport decides whether an entitlement may be written to a manifest for
// a consumer of the passed type. Entitlements from locally derived pools
// are never handed to manifest consumers.
func CanExport(ent *model.Entitlement, consumerType *model.ConsumerType) bool {
	if ent == nil || ent.Pool == nil {
		return false
	}
	if ent.Pool.Type == "" || ent.Pool.Type == model.PoolTypeNormal {
		return true
	}
	return consumerType == nil || !consumerType.Manifest
}
