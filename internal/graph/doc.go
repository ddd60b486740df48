// Package graph holds the registry of executable tasks and the primitives
// that compose them.
//
// Leaf ids have the form "<namespace>:<name>"; every leaf is indexed under
// its namespace when it is registered, which is what ComposeByPrefix reads.
// A Graph is filled once at startup and sealed; after that it is only read,
// so it is safe for concurrent use.
package graph
