// Package token signs and verifies the HS256 JWTs handed out by the service.
//
// Two kinds of token share one signer: session tokens minted after a
// successful OTP verification, and email confirmation tokens embedded in the
// confirmation link. They are told apart by the purpose claim, so a
// confirmation link can never be replayed as a session.
package token
