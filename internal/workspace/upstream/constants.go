package upstream

import "time"

const (
	// DefaultTimeout is the standard timeout for mirror operations
	DefaultTimeout = 30 * time.Second

	// BuildTimeout covers a full bundle compilation
	BuildTimeout = 90 * time.Second

	// GenerationTimeout is for generation requests, which can run for minutes in multi-pass mode
	GenerationTimeout = 5 * time.Minute

	// maxErrorBody caps how much of an error response is read into an error message
	maxErrorBody = 4 << 10
)
