// Package core provides the ingestion, reconciliation and merge logic for
// combining delimited text files into one table.
//
// This package has no UI or transport dependencies. The web server, the CLI
// and tests all drive it through the same few entry points.
//
// # Pipeline
//
// A file goes through four stages before it can take part in a merge:
//
//  1. [ValidateFile] checks the extension, size, emptiness and quoting
//  2. [FileRegistry.CheckFieldCountCompatible] compares its width with the
//     admitted files (advisory: the caller decides whether to continue)
//  3. [NewSourceFile] derives the field count from the first record and
//     builds a table where every row is [Reconcile]d to that width
//  4. [FileRegistry.Admit] places it: a file wider than the current reference
//     becomes the new member 0, anything else is appended
//
// [Merge] then interleaves the members round-robin, bounded by the member with
// the fewest data rows, and [Serialize] renders the result as text.
//
// # Workspaces
//
// A [Workspace] owns one registry for one session. It serializes the
// check-then-admit sequence and runs exports in the background through a
// [Sink], bounded by an [ExportLimiter].
//
// # Error Handling
//
// Ingestion failures reject a file outright and are reported with sentinel
// errors ([ErrUnsupportedExtension], [ErrEmptyFile], [ErrMalformedRecord]).
// [ErrFieldCountIncompatible] is advisory. Merge bounds problems never fail
// a merge; they mark the table Partial. [MapError] turns any of these into a
// user-facing message with a support code.
package core
