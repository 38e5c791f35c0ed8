// Package validation provides pure validation functions for the app list.
//
// Functions return plain values (reason strings, allowed flags) rather than
// errors so callers can choose the error type that fits their layer. No I/O.
//
// # Functions
//
//   - ValidateAppName: character and hyphen rules for a single app name
//   - FindDuplicateApp: first repeated name in the configured list
//   - CanAddApps: listener rule quota check
package validation
