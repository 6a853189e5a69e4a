// Package billing integrates Paddle subscription billing: webhook
// verification and normalization, an event-ordered reconciliation state
// machine over MongoDB, hosted checkout creation, customer portal sessions,
// billing-history listing, and a periodic sweep that finalizes scheduled
// cancellations missed by webhooks.
//
// The package normalizes both Paddle Billing payload shapes into a single
// canonical Event, so the reconciler never sees provider-specific JSON.
// Every write is guarded by the event timestamp: replays and out-of-order
// deliveries are dropped as logged no-ops, which makes webhook handling
// safe to retry.
package billing
