// Package errors provides the classified error primitives used across kitbuilder.
//
// A ClassifiedError carries a category (which pipeline step failed), a
// severity, a retry strategy and structured context. The CLI adapter maps
// categories to process exit codes so that a failed checkout, a failed
// build, a cross-host version mismatch and a failed artifact retrieval are
// distinguishable by callers and cron wrappers.
//
// Example usage:
//
//	err := errors.CheckoutError("svn checkout failed").
//		WithCause(runErr).
//		WithContext("host", host.Alias).
//		WithContext("url", url).
//		Build()
package errors
