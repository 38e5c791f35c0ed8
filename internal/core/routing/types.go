package routing

// Condition field names understood by the load balancer.
const (
	FieldHTTPHeader  = "http-header"
	FieldPathPattern = "path-pattern"
)

// DefaultOriginHeaderName is the header the CDN adds to every origin request.
const DefaultOriginHeaderName = "X-Custom-Header"

// MaxHeaderValueLength is the longest value a header condition may match.
const MaxHeaderValueLength = 128

// OriginHeader is the secret header shared between the CDN and the listener.
type OriginHeader struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Condition is a single match condition of a listener rule.
type Condition struct {
	// Field is FieldHTTPHeader or FieldPathPattern.
	Field string `json:"field" yaml:"field"`

	// HeaderName is set only for FieldHTTPHeader conditions.
	HeaderName string `json:"header_name,omitempty" yaml:"header_name,omitempty"`

	Values []string `json:"values" yaml:"values"`
}

// RuleParams contains the inputs for generating an app's rule conditions.
type RuleParams struct {
	AppName string
	Header  OriginHeader
}
