/*
Package authsdk provides a client SDK for the Acctly authentication service.

# Overview

The service authenticates with a password and, when the account has one
enabled, a second factor: a code from an authenticator app or a code sent by
email. The SDK covers both public operations (via SDKClient) and operations
that need a session (via Session).

	client := authsdk.NewSDKClient("https://auth.example.com")

	// Check service health
	health, err := client.GetLiveness(ctx)

	// Create an account
	acct, err := client.Signup(ctx, "user@example.com", "s3cret!pw")

# Logging In

LoginFlow walks through the login steps and keeps the challenge token in
between:

	flow := client.NewLoginFlow()
	state, err := flow.SubmitPrimary(ctx, email, password)
	if err != nil {
		return err
	}
	if state == authsdk.AwaitingSecondFactor {
		fmt.Printf("enter the %s code (%s left)\n", flow.Factor(), flow.Remaining().Round(time.Second))
		session, err := flow.SubmitCode(ctx, code)
		...
	}
	session := flow.Session()

States are AwaitingPrimary, AwaitingSecondFactor and Authenticated. A wrong
code leaves the challenge open so the user can retry. When the challenge
token expires, locally or as reported by the server, the flow falls back to
AwaitingPrimary and the password must be entered again. For email challenges
flow.Resend sends a fresh code without extending the challenge.

# Second Factors

A Session manages the account's factors:

	enroll, err := session.BeginAppEnrollment(ctx)
	// show enroll.QRCode, then with a code from the app:
	err = session.ConfirmAppEnrollment(ctx, enroll.EnrollmentToken, code)

	err = session.EnableEmailFactor(ctx)

	err = session.DisableFactor(ctx, authsdk.DisableFactorRequest{
		Password:   password,
		FactorType: "app",
		Code:       code,
	})

	status, err := session.GetFactorStatus(ctx)

Sessions are not refreshed. Once the session token expires every call
returns ErrTokenExpired.

# Error Handling

Every failed call returns an *Error carrying the HTTP status and a stable
code. Use IsCode to branch on it:

	_, err := flow.SubmitCode(ctx, code)
	switch {
	case authsdk.IsCode(err, authsdk.ErrorCodeInvalidCode):
		// ask again
	case authsdk.IsCode(err, authsdk.ErrorCodeTokenExpired):
		// back to the password form
	case authsdk.IsCode(err, authsdk.ErrorCodeTooManyAttempts):
		// wait before retrying
	}

# Thread Safety

SDKClient, Session and LoginFlow are safe for concurrent use.
*/
package authsdk
