// Package user implements account management: email/password registration
// with verification, Google sign-in, password reset, profile and avatar
// handling, and the credit balance the poem generator meters against.
//
// The MongoDB store also implements the billing reconciler's entitlement
// surface, so plan and credit changes driven by subscription webhooks land
// on the same user records through a single full-overwrite write path.
package user
