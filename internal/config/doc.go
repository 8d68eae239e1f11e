// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to server, queue, generation, routing and provider settings while keeping
// configuration details separate from business logic.
package config