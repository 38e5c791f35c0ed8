package priority

import "fmt"

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultMaxPriority is the largest rule priority accepted by an
	// application load balancer listener.
	DefaultMaxPriority = 50000

	// DefaultMaxNameLength matches the target group name limit, since the
	// app name is also used as the target group name.
	DefaultMaxNameLength = 32
)

// Config configures an Assigner.
type Config struct {
	// MaxPriority is the inclusive upper bound of assigned priorities.
	MaxPriority int

	// MaxNameLength is the longest name, in bytes, that is accepted.
	MaxNameLength int

	// Hash selects the hash family.
	Hash HashFamily
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		MaxPriority:   DefaultMaxPriority,
		MaxNameLength: DefaultMaxNameLength,
		Hash:          HashFNV1a32,
	}
}

// Validate checks that the configuration can produce valid priorities.
func (c Config) Validate() error {
	if c.MaxPriority < 1 {
		return fmt.Errorf("%w: max priority must be at least 1, got %d", ErrInvalidConfig, c.MaxPriority)
	}
	if c.MaxNameLength < 1 {
		return fmt.Errorf("%w: max name length must be at least 1, got %d", ErrInvalidConfig, c.MaxNameLength)
	}
	if !c.Hash.Valid() {
		return fmt.Errorf("%w: unknown hash family %q", ErrInvalidConfig, c.Hash)
	}
	return nil
}

// =============================================================================
// Assigner
// =============================================================================

// Assigner maps app names to routing-rule priorities.
// The zero value is not usable; create one with New.
type Assigner struct {
	config Config
}

// New creates an Assigner after validating cfg.
func New(cfg Config) (*Assigner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Assigner{config: cfg}, nil
}

// Config returns the assigner's configuration.
func (a *Assigner) Config() Config {
	return a.config
}

// Assign returns the priority for name, in [1, MaxPriority].
//
// Example:
//
//	a, _ := New(DefaultConfig())
//	p, err := a.Assign("chat-app") // same value on every call and every run
func (a *Assigner) Assign(name string) (int, error) {
	if err := ValidateName(name, a.config.MaxNameLength); err != nil {
		return 0, err
	}
	return Reduce(a.config.Hash.Sum(name), a.config.MaxPriority), nil
}

// ValidateName checks the assigner's input constraints.
func ValidateName(name string, maxLength int) error {
	if name == "" {
		return &InputError{Reason: "name is empty"}
	}
	if len(name) > maxLength {
		return &InputError{
			Name:   name,
			Reason: fmt.Sprintf("name is %d bytes, limit is %d", len(name), maxLength),
		}
	}
	return nil
}

// Reduce maps a hash value into [1, maxPriority]. Zero is never returned
// because load balancers reserve it. maxPriority must be at least 1;
// Config.Validate enforces this for an Assigner. Reduce panics otherwise.
func Reduce(sum uint64, maxPriority int) int {
	return int(sum%uint64(maxPriority)) + 1
}
