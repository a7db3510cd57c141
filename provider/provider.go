// Package provider implements batch translation backends: a direct OpenAI
// provider used by the extractor when no rustle service is configured, and a
// mock for tests. The rustle service client in package api satisfies the same
// interface.
package provider

import "github.com/rustledotdev/rustle"

// BatchTranslator is the interface for batch translation backends.
// This is an alias to the main package interface for convenience.
type BatchTranslator = rustle.BatchTranslator

// BatchRequest is an alias to the main package type.
type BatchRequest = rustle.BatchRequest

// BatchEntry is an alias to the main package type.
type BatchEntry = rustle.BatchEntry
