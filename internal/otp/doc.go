// Package otp implements the one-time passcode admission gate. Codes are
// issued over email, stored hashed with a short expiry, and consumed on
// first successful verification.
package otp
