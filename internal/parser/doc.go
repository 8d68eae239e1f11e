// Package parser recovers a structured JSON value from free-form model
// output. It runs a fixed, ordered list of extraction strategies from the
// most precise to the most forgiving and returns the first value that has
// the expected shape. Every strategy is exported so it can be exercised on
// its own.
package parser
