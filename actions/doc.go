// Package actions exposes the integrations behind one uniform execution
// contract. Callers name an action and pass parameters; every outcome comes
// back as a core.ActionResult with failures reported in-band, which is what
// lets an agent framework invoke heterogeneous vendor APIs without
// per-integration error handling.
package actions
