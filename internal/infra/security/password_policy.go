package security

const (
	defaultMinPasswordLength   = 10
	defaultMaxPasswordLength   = 128
	defaultMinCharacterClasses = 3
	defaultMinZxcvbnScore      = 3
)

// DefaultPasswordValidator returns the built-in validator enforcing the service password policy
// with length, character class, and zxcvbn strength checks.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(defaultMinPasswordLength),
		MaxLengthRule(defaultMaxPasswordLength),
		RequireCharacterClassesRule(defaultMinCharacterClasses),
		RequirePasswordStrengthRule(defaultMinZxcvbnScore),
	)
}

// NewPasswordValidatorWithContext allows callers to include additional user
// inputs (email, names) so trivially guessable passwords are rejected.
func NewPasswordValidatorWithContext(userInputs ...string) *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(defaultMinPasswordLength),
		MaxLengthRule(defaultMaxPasswordLength),
		RequireCharacterClassesRule(defaultMinCharacterClasses),
		RequirePasswordStrengthRule(defaultMinZxcvbnScore, userInputs...),
	)
}
