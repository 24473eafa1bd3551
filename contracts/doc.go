// Package contracts adds design-by-contract checks to HTTP endpoints.
//
// An endpoint is a terminal Handler with an explicit Signature, optionally wrapped by
// contract layers:
//   - Require: a precondition checked before the endpoint runs; a failure short-circuits
//     the call with a *PreconditionError carrying the configured status code
//   - Snapshot: a capture evaluated before the endpoint runs and stored in the per-call
//     OLD container under its name
//   - Ensure: a postcondition checked after the endpoint returns, against the arguments,
//     the result and the OLD container; a failure returns a *PostconditionError
//
// Conditions are synchronous (Sync, Predicate) or asynchronous (Async, resolving through a
// Future) and declare which arguments they consume. The reserved names ResultParam and
// OldParam are only available to postconditions.
//
// Decorators are listed outermost first, like stacked decorators are read top to bottom:
//
//	ep, err := contracts.Decorate(
//		contracts.Handle(sig, listBooks),
//		contracts.Require(
//			contracts.Predicate(knownCategory, "category"),
//			contracts.StatusCode(404),
//			contracts.Description("The category must exist."),
//		),
//		contracts.Snapshot(contracts.Sync(countBooks), "count"),
//		contracts.Ensure(
//			contracts.Predicate(countUnchanged, contracts.OldParam),
//			contracts.Description("Listing does not change the book count."),
//		),
//	)
//
// Mistakes in the declaration (unknown parameters, duplicate snapshot names, a postcondition
// reading OLD without any snapshot, ...) are reported by Decorate as a *ConfigError.
//
// A Checker owns the enforcement Mode and the observability hooks. In Observed mode every
// contract is evaluated and failures are logged and counted, but calls proceed unaltered.
package contracts
