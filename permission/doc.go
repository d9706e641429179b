// Package permission defines the portal's closed role set and the static
// role→permission authorization table.
//
// The [Matrix] is pure data: it is built once at process start, frozen, and
// consulted by the authorization guard on every request. Lookups never touch
// I/O and never return errors; an unknown role or permission key simply
// resolves to false.
//
// # What this package must NOT do
//
//   - Mutate the matrix after construction (it is shared, unsynchronized,
//     read-only state by contract).
//   - Special-case individual users; grants are per-role. The single
//     exception is [RoleSystemAdmin], which satisfies every check.
package permission
