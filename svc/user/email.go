package user

import (
	"fmt"

	"github.com/versecraft/api/pkg/email"
)

// Transactional email bodies are short inline HTML. Links embed single-use
// tokens; the frontend routes exchange them against the API.

func verificationEmail(to, baseURL, token string) email.SendEmailParams {
	link := fmt.Sprintf("%s/verify-email?token=%s", baseURL, token)
	return email.SendEmailParams{
		SendTo:  to,
		Subject: "Verify your VerseCraft email",
		Tag:     "email-verification",
		BodyHTML: fmt.Sprintf(`<h2>Welcome to VerseCraft</h2>
<p>Confirm your email address to finish setting up your account.</p>
<p><a href="%s">Verify email</a></p>
<p>If you did not create an account, you can ignore this message.</p>`, link),
	}
}

func passwordResetEmail(to, baseURL, token string) email.SendEmailParams {
	link := fmt.Sprintf("%s/reset-password?token=%s", baseURL, token)
	return email.SendEmailParams{
		SendTo:  to,
		Subject: "Reset your VerseCraft password",
		Tag:     "password-reset",
		BodyHTML: fmt.Sprintf(`<h2>Password reset</h2>
<p>Someone requested a password reset for your account. The link expires in one hour.</p>
<p><a href="%s">Choose a new password</a></p>
<p>If this was not you, your password is still safe and no action is needed.</p>`, link),
	}
}
