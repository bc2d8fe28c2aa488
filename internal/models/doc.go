// Package models defines the records owned by the tripsplit server around
// the allocation and settlement engines.
//
// Participants are identified by opaque id strings; there are no user
// accounts. Expenses and transfers are the settlement package's own types
// and are persisted as such, so the only model here is the Trip that groups
// them.
//
// Relationships use ID strings instead of pointers.
package models
