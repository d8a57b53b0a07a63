// Package annotate calls the external annotation service for one frame at a
// time and validates what comes back.
//
// The client separates transport failures from content failures: transport
// problems (timeouts, 5xx) are retried under an explicit backoff policy,
// while a response that arrives but fails schema validation is terminal for
// the frame and never retried. Operators can therefore tell "service
// unreachable" apart from "service answered nonsense" in logs and the run
// ledger.
package annotate
