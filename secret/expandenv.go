package secret

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ExpandEnvStrict expands $VAR and ${VAR} from the process environment.
// See ExpandWith.
func ExpandEnvStrict(s string) (string, error) {
	return ExpandWith(s, os.LookupEnv)
}

// ExpandWith expands $VAR and ${VAR} references in s using lookup.
//
// Every referenced variable must be set, even to an empty value; otherwise
// the error matches ErrMissingEnv and lists the missing names in order. "$$"
// is a literal "$". Shell special parameters such as $1 expand to nothing.
func ExpandWith(s string, lookup func(string) (string, bool)) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var missing []string
	out := os.Expand(s, func(name string) string {
		switch {
		case name == "$":
			return "$"
		case !envNamePattern.MatchString(name):
			return ""
		}
		v, ok := lookup(name)
		if !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}
	return out, nil
}
