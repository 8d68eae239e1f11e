// Package redis adapts Redis to the dedup cache store and the lifecycle
// event bus. One client serves both.
package redis
