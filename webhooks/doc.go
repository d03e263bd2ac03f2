// Package webhooks fans domain events out to subscriber endpoints.
//
// Each matching subscription gets one delivery row. A delivery moves
// pending -> delivered, or pending -> retrying -> ... -> delivered|failed,
// with attempts growing by one per HTTP attempt.
package webhooks
