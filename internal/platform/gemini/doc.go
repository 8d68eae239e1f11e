// Package gemini provides an implementation of provider.Client backed by
// Google's Gemini API through the google.golang.org/genai SDK.
//
// Calls ask for a JSON response, map SDK errors onto the provider error
// classes and retry briefly on transient failures. Content blocked by
// safety filters is reported as provider.ErrContentBlocked and is never
// retried.
package gemini
