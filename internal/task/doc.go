// Package task manages background job queuing, processing, and lifecycle.
// Jobs are persisted through a TaskStore before they are dispatched, routed
// to a Handler registered for their type, retried with exponential backoff
// and recovered after application restarts.
package task
