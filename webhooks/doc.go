// Package webhooks implements the inbound webhook core: HMAC signature
// verification over the raw request body and batch processing of event
// deltas with per-delta failure isolation.
//
// Verification always runs against the exact bytes received on the wire;
// re-serializing a parsed body changes its layout and breaks the HMAC check.
// The batch processor never aborts a batch for a single delta: each delta
// yields exactly one outcome and failures are reported in-band.
package webhooks
