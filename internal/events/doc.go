// Package events publishes generation lifecycle events.
//
// A Notifier builds LifecycleEvent values and hands them to a Bus with a
// bounded timeout. Publishing is best effort: failures are logged and never
// reach the caller. Subscribers feed deliveries into a ProgressTracker,
// which tolerates duplicated and reordered events.
package events
