package common

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Clamp saturates v into [lo, hi]. When hi < lo the result is lo.
//
// Parameters:
//   - v: the value to clamp
//   - lo: the inclusive lower bound
//   - hi: the inclusive upper bound
//
// Returns:
//   - int: the clamped value
func Clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

// IsRemote reports whether ref is an http or https URL.
func IsRemote(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// JoinURI joins path elements onto a base that is either a URL or a filesystem path.
// URL bases are joined with forward slashes and keep their scheme and host; anything else goes through filepath.Join.
//
// Parameters:
//   - base: the base URL or directory
//   - elems: relative path elements to append
//
// Returns:
//   - string: the joined reference
func JoinURI(base string, elems ...string) string {
	if IsRemote(base) {
		u, err := url.Parse(base)
		if err == nil {
			u.Path = path.Join(append([]string{u.Path}, elems...)...)
			return u.String()
		}
	}
	return filepath.Join(append([]string{base}, elems...)...)
}

// DirOf returns the directory part of a URL or filesystem path, keeping URL scheme and host.
func DirOf(ref string) string {
	if IsRemote(ref) {
		u, err := url.Parse(ref)
		if err == nil {
			u.Path = path.Dir(u.Path)
			return u.String()
		}
	}
	return filepath.Dir(ref)
}
