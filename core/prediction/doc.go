// Package prediction defines the channel to an external rating model. The
// model is optional: callers fall back to rule-based scoring whenever a
// ModelClient fails, times out or is not configured.
package prediction
