// Package email sends transactional billing notifications.
//
// Production uses the Postmark API; local development can swap in the
// DevSender, which writes outbound messages to disk instead of sending
// them. The expiry sweeper uses this package to notify customers when a
// subscription lapses or a renewal order is created.
package email
