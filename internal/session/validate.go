package session

import "unicode"

// ValidationResult is the outcome of the password policy check.
type ValidationResult struct {
	Valid    bool
	Message  string
	IsStrong bool
}

// ValidatePassword applies the password policy. Pure, no side effects.
//
// Under 6 characters is rejected. 6-7 characters is accepted but flagged
// weak. 8 or more characters is accepted; it only counts as strong with
// mixed case, a digit, and a symbol.
func ValidatePassword(password string) ValidationResult {
	if len(password) < MinPasswordLength {
		return ValidationResult{
			Valid:   false,
			Message: "Password must be at least 6 characters",
		}
	}
	if len(password) < StrongLength {
		return ValidationResult{
			Valid:   true,
			Message: "Weak password - consider using at least 8 characters",
		}
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	if hasUpper && hasLower && hasDigit && hasSymbol {
		return ValidationResult{
			Valid:    true,
			Message:  "Strong password",
			IsStrong: true,
		}
	}
	return ValidationResult{
		Valid:   true,
		Message: "Good password - add uppercase letters and symbols to make it stronger",
	}
}
