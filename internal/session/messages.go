package session

import "isdanary/backend/internal/identity"

const (
	LoginFallbackMessage  = "Unable to sign in. Please check your details and try again."
	SignupFallbackMessage = "Unable to create account. Please try again."

	PasswordMismatchMessage = "Passwords do not match."
	PasswordLengthMessage   = "Password should be at least 6 characters."
)

var codeMessages = map[string]string{
	identity.CodeInvalidCredential: "Invalid email or password.",
	identity.CodeWrongPassword:     "Invalid email or password.",
	identity.CodeUserNotFound:      "No account found for that email.",
	identity.CodeEmailInUse:        "An account already exists for that email.",
	identity.CodeInvalidEmail:      "Please enter a valid email address.",
	identity.CodeWeakPassword:      "Password is too weak.",
	identity.CodeInvalidToken:      "Your session has expired. Please sign in again.",
}

// Message maps an identity failure to the text shown to the user. Unknown
// failures get fallback.
func Message(err error, fallback string) string {
	if msg, ok := codeMessages[identity.Code(err)]; ok {
		return msg
	}
	return fallback
}
