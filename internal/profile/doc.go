// Package profile defines the persisted player document model.
//
// A profile is the unit of persistence and optimistic concurrency: a
// namespaced document holding items, free-form stat attributes, and two
// monotonic revision counters the client uses to reconcile its local state.
// Item template ids are pattern-matched by string prefix into a Category
// exactly once, when the item enters the document.
package profile
