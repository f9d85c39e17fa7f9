// Package billing implements the subscription lifecycle and
// credit-metering engine for the design studio.
//
// It owns the subscription state machine (pending, active, expired,
// cancelled), proration math for plan changes, quota evaluation against
// plan limits, atomic credit deduction when quota-consuming resources
// are created, and the batch sweep that expires lapsed subscriptions
// and spawns auto-renewal orders.
//
// Persistence is consumed through the Store and UnitOfWork interfaces;
// every multi-entity write runs inside a single transaction. Payment is
// an external collaborator: the engine creates pending orders with an
// opaque payment link and reacts to gateway callbacks, it never charges
// anything itself.
package billing
