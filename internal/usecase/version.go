package usecase

import (
	"fmt"
	"regexp"

	goversion "github.com/hashicorp/go-version"

	"github.com/eliteGoblin/focusd/version_guard/internal/domain"
)

// versionDirPattern is the accepted directory grammar: dot-separated digits
// (at least two components) and an optional qualifier introduced by '-' or '+'.
var versionDirPattern = regexp.MustCompile(`^(\d+(?:\.\d+)+)([-+][0-9A-Za-z][0-9A-Za-z.+-]*)?$`)

// ParseVersionID parses a version directory name.
// The qualifier is kept for display and ignored for ordering.
func ParseVersionID(name string) (domain.VersionID, error) {
	m := versionDirPattern.FindStringSubmatch(name)
	if m == nil {
		return domain.VersionID{}, fmt.Errorf("%q is not a version identifier", name)
	}

	v, err := goversion.NewVersion(m[1])
	if err != nil {
		return domain.VersionID{}, fmt.Errorf("parse %q: %w", name, err)
	}

	return domain.VersionID{
		Components: v.Segments64(),
		Qualifier:  m[2],
	}, nil
}

// MustParseVersionID is ParseVersionID for literals known to be valid.
func MustParseVersionID(name string) domain.VersionID {
	id, err := ParseVersionID(name)
	if err != nil {
		panic(err)
	}
	return id
}
