// Package project holds the registry of user-managed projects.
//
// Project Representation:
//
// Each project represents a user's codebase with:
//   - Unique project ID (UUID when created here, opaque otherwise)
//   - Project name (user-friendly)
//   - Project path (filesystem location)
//   - Last-known container-runtime status
//   - Settings merged from two independent producers
//
// Settings Ownership:
//
// Settings are split into disjoint regions so producers never clobber
// each other:
//   - Config: the parsed project config file (filesystem producer)
//   - Repository: the version-control remote (remote producer)
//
// Registry Interface:
//
// The Registry provides:
//   - Create / Add / Remove: membership, driven by outside collaborators
//   - List / Get: ordered snapshots
//   - UpdateStatus / UpdateSettings: atomic single field-group writes
//
// A write addressed to an id that is no longer registered is a no-op.
package project
