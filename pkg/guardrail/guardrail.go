// Package guardrail provides the public API for embedding the safety
// guardrail service. This is the stable surface for external consumers.
package guardrail

import (
	"github.com/primebank/guardrail/internal/runtime"
)

// Guardrail runs the two-stage safety pipeline, the access-control gate,
// and the HTTP API. See internal/runtime.Guardrail for full documentation.
type Guardrail = runtime.Guardrail

// Option is a functional option for configuring a Guardrail.
type Option = runtime.Option

// New creates a new Guardrail with the given options.
// Example:
//
//	g, err := guardrail.New(
//	    guardrail.WithConfigFile("config.yaml"),
//	    guardrail.WithSQLite("./data/guardrail.db"),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithConfig     = runtime.WithConfig
	WithConfigFile = runtime.WithConfigFile

	// Storage
	WithSQLite       = runtime.WithSQLite
	WithMemoryStores = runtime.WithMemoryStores

	// Evaluators
	WithFastEvaluator = runtime.WithFastEvaluator
	WithDeepEvaluator = runtime.WithDeepEvaluator

	// Advanced options
	WithLogger = runtime.WithLogger
)
