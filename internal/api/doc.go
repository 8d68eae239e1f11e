// Package api handles incoming HTTP requests, request validation and
// response formatting. It adapts HTTP to the generation service and the
// admin settings store.
package api
