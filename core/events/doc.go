// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - RunStateEvent: a scheduling run moved to a new state
//   - PlanCommittedEvent: a plan was persisted
//   - UrgentInsertedEvent: an urgent order was inserted into a plan
//   - EntryAdjustedEvent: an entry was moved or changed status
package events
