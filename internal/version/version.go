// Package version parses and orders MAJOR.MINOR.PATCH version strings.
//
// Versions identify both the running application and the schema stored in the
// database. Only strings matching the fixed pattern are accepted; ordering is
// structural, so "1.10.0" sorts after "1.2.3" and "01.2.0" equals "1.2.0".
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Pattern is the accepted version string pattern.
const Pattern = `^\d+\.\d+\.\d+$`

// ErrInvalid is returned when a string does not match Pattern.
var ErrInvalid = errors.New("invalid version")

var versionPattern = regexp.MustCompile(Pattern)

// Zero is the version of a database that has never been initialized.
var Zero = Version{}

// Version is a parsed MAJOR.MINOR.PATCH triple.
type Version struct {
	Major, Minor, Patch int
}

// Parse validates str against Pattern and returns the parsed version.
func Parse(str string) (Version, error) {
	str = strings.TrimSpace(str)
	if !versionPattern.MatchString(str) {
		return Version{}, fmt.Errorf("%w: %q does not match %s", ErrInvalid, str, Pattern)
	}
	var v Version
	for i, part := range strings.Split(str, ".") {
		num, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q: %v", ErrInvalid, str, err)
		}
		switch i {
		case 0:
			v.Major = num
		case 1:
			v.Minor = num
		case 2:
			v.Patch = num
		}
	}
	return v, nil
}

// MustParse is like Parse but panics on malformed input.
// It is meant for constants and tests.
func MustParse(str string) Version {
	v, err := Parse(str)
	if err != nil {
		panic(err)
	}
	return v
}

// Valid reports whether str matches Pattern.
func Valid(str string) bool {
	_, err := Parse(str)
	return err == nil
}

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// Compare returns -1 if a sorts before b, +1 if after and 0 if both are equal.
func Compare(a, b Version) int {
	switch {
	case a.Major != b.Major:
		return sign(a.Major - b.Major)
	case a.Minor != b.Minor:
		return sign(a.Minor - b.Minor)
	default:
		return sign(a.Patch - b.Patch)
	}
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return Compare(v, o) < 0 }

// Within reports whether v lies in the half-open window (lo, hi].
func (v Version) Within(lo, hi Version) bool {
	return Compare(lo, v) < 0 && Compare(v, hi) <= 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
