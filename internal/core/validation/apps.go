package validation

import "fmt"

// =============================================================================
// App Name Validation Functions
// =============================================================================

// DefaultMaxApps is the default rule quota of a single load balancer listener.
const DefaultMaxApps = 100

// ValidateAppName checks that name can be used for every resource derived
// from it (target group, service, repositories, pipeline).
// Returns an empty string when the name is valid, otherwise the reason.
//
// Rules:
//   - ASCII letters, digits and hyphens only
//   - must not start or end with a hyphen
//
// Length is not checked here; the priority assigner enforces the limit.
//
// Example:
//
//	if reason := ValidateAppName("chat-app"); reason != "" {
//	    // reject
//	}
func ValidateAppName(name string) string {
	if name == "" {
		return "name is required"
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
		default:
			return fmt.Sprintf("invalid character %q at position %d", c, i)
		}
	}
	if name[0] == '-' || name[len(name)-1] == '-' {
		return "must not start or end with a hyphen"
	}
	return ""
}

// FindDuplicateApp returns the first name that appears more than once and the
// index of its second occurrence. Returns "", -1 when all names are unique.
//
// Example:
//
//	name, idx := FindDuplicateApp([]string{"a", "b", "a"}) // "a", 2
func FindDuplicateApp(names []string) (string, int) {
	seen := make(map[string]struct{}, len(names))
	for i, n := range names {
		if _, ok := seen[n]; ok {
			return n, i
		}
		seen[n] = struct{}{}
	}
	return "", -1
}

// CanAddApps checks whether count apps fit in one listener.
// Returns whether it is allowed and a reason if not.
func CanAddApps(count, maxApps int) (bool, string) {
	if maxApps <= 0 {
		maxApps = DefaultMaxApps
	}
	if count == 0 {
		return false, "at least one app is required"
	}
	if count > maxApps {
		return false, fmt.Sprintf("app limit exceeded: %d/%d", count, maxApps)
	}
	return true, ""
}
