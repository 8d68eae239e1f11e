// Package domain defines the generation request, artifact and item types
// shared by the orchestration packages, along with their validation rules.
package domain
