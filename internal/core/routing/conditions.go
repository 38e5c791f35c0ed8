package routing

import "fmt"

// =============================================================================
// Rule Condition Functions
// =============================================================================

// BasePath returns the URL prefix an app is served under.
//
// Example:
//
//	BasePath("chat-app") // returns "/chat-app"
func BasePath(appName string) string {
	return "/" + appName
}

// PathPattern returns the path pattern routed to an app.
//
// Example:
//
//	PathPattern("chat-app") // returns "/chat-app/*"
func PathPattern(appName string) string {
	return fmt.Sprintf("/%s/*", appName)
}

// HealthCheckPath returns the path the load balancer probes on an app's targets.
//
// Example:
//
//	HealthCheckPath("chat-app") // returns "/chat-app/"
func HealthCheckPath(appName string) string {
	return fmt.Sprintf("/%s/", appName)
}

// Conditions returns the conditions of an app's listener rule.
//
// The header condition comes first and is omitted when the header name is
// empty. The path-pattern condition is always present.
func Conditions(params RuleParams) []Condition {
	conds := make([]Condition, 0, 2)

	if params.Header.Name != "" {
		conds = append(conds, Condition{
			Field:      FieldHTTPHeader,
			HeaderName: params.Header.Name,
			Values:     []string{params.Header.Value},
		})
	}

	conds = append(conds, Condition{
		Field:  FieldPathPattern,
		Values: []string{PathPattern(params.AppName)},
	})

	return conds
}
