package codec

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Rule file names
const (
	RulesFile       = "rules.js"
	LegacyRulesFile = "default-rules.js"
)

// RulesPath is the location of the current rules below root
func RulesPath(root string) string {
	return filepath.Join(Path(root, SegmentRules), RulesFile)
}

// LegacyRulesPath is the location of the legacy rules mirror below root
func LegacyRulesPath(root string) string {
	return filepath.Join(Path(root, SegmentLegacyRules), LegacyRulesFile)
}

// WriteRules stores the rules source in the current and the legacy location.
func WriteRules(root, source string) error {
	for _, p := range []string{RulesPath(root), LegacyRulesPath(root)} {
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return errors.Wrap(err, "codec: writing rules failed")
		}
		if err := os.WriteFile(p, []byte(source), 0o640); err != nil {
			return errors.Wrap(err, "codec: writing rules failed")
		}
	}
	return nil
}

// ReadRules returns the rules source from the current location. found is
// false for manifests without rules.
func ReadRules(root string) (source string, found bool, err error) {
	data, err := os.ReadFile(RulesPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, "codec: reading rules failed")
	}
	return string(data), true, nil
}
