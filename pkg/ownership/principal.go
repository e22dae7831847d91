package ownership

import "fmt"

// Principal identifier length bounds.
const (
	MinPrincipalLen = 3
	MaxPrincipalLen = 64
)

// ValidatePrincipal checks that a principal identifier is well formed: between
// MinPrincipalLen and MaxPrincipalLen characters drawn from lowercase letters,
// digits, '.', '_' and '-'. Every principal carried by an init or update event
// is validated before any state is produced.
func ValidatePrincipal(principal string) error {
	if len(principal) < MinPrincipalLen || len(principal) > MaxPrincipalLen {
		return fmt.Errorf("%w: %q", ErrInvalidPrincipal, principal)
	}
	for _, r := range principal {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidPrincipal, principal)
		}
	}
	return nil
}
