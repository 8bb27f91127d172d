// Package models defines the core domain models for a shared bill session.
//
// # Models
//
//   - Session: one shared bill and everything nested under it
//   - Participant: a person attached to the session (one owner, any number of editors)
//   - Item: a billed line with unit price and quantity
//   - Scope / Share / Assignments: claims on a whole item or on one unit of it
//   - Charge: tax, fee, discount or gratuity applied on top of the item subtotal
//   - ParticipantTotal: per-person result, frozen when the session is finalized
//
// # Ownership
//
// The Session exclusively owns its participants, items, assignments, charges
// and saved mode snapshots. Assignments reference participants and items by
// ID only; deleting either must cascade through Assignments and SavedModes.
//
// # Design Principles
//
//  1. Avoid circular references: use ID strings instead of pointers for relationships
//  2. Scopes are a tagged union, never ad-hoc string keys; the string form
//     only exists on the wire (see Scope.Key and ParseScope)
//  3. Sessions are values: Clone returns a deep copy so the server and client
//     replicas can mutate freely inside a transaction or an optimistic update
package models
