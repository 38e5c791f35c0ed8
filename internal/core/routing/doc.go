// Package routing provides pure functions for generating load balancer
// listener-rule conditions and health checks.
//
// Every app sits behind the same listener. A request reaches an app only when
// it carries the CDN's secret origin header and its path falls under the app's
// base path, so the load balancer cannot be used directly from the internet.
//
// # Functions
//
//   - Conditions: header and path-pattern conditions for an app's rule
//   - PathPattern: the path pattern matched by an app's rule
//   - HealthCheckPath: the target group health check path
//   - BasePath: the URL prefix the app is served under
//
// # Usage
//
//	conds := routing.Conditions(routing.RuleParams{
//	    AppName: "chat-app",
//	    Header:  routing.OriginHeader{Name: "X-Custom-Header", Value: secret},
//	})
package routing
