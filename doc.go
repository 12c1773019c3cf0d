// Package steep is a signature driven static type checker for a dynamically
// typed object oriented language, served over the Language Server Protocol.
// Signatures are authored separately from code in .sig files, the checker
// validates that code conforms to them and reports diagnostics.
//
//	The repository splits into two halves. The solver half (src/types and
//	src/subtyping) decides subtyping obligations, records bounds for unknown
//	type variables, and infers substitutions satisfying every bound. The
//	server half (src/server and src/lsp) is an LSP master that multiplexes a
//	single client session across isolated worker processes: one for
//	interactive queries, one for signature watching, and N for batch
//	checking.
//
// The root package is a small convenience API, the `steep` binary in cmd is
// the full CLI.
package steep
