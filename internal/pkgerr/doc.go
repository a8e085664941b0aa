// Package pkgerr defines the error markers shared by the packaging pipeline.
//
// Every failure surfaced by the resolver, packager, archive builder,
// compression pipeline and repository is wrapped around one of the sentinel
// markers below so callers can classify it with errors.Is without parsing
// messages. Tier decides how the run orchestrator reacts: user input errors
// mark a specifier missing, package errors fail one package, fatal errors
// stop the invocation before any packaging starts.
package pkgerr
