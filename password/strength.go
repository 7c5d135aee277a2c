package password

import zxcvbn "github.com/nbutton23/zxcvbn-go"

// Strength scores password from 0 (guessable) to 4 (very strong). userInputs
// (email, name) are penalized when they appear in the password.
func Strength(password string, userInputs ...string) int {
	if password == "" {
		return 0
	}
	return zxcvbn.PasswordStrength(password, userInputs).Score
}
