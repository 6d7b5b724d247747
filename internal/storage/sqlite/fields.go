package sqlite

import "github.com/scrubslab/scrubs/pkg/logger"

// Logger field aliases to keep storage call sites terse
var (
	String  = logger.String
	Int     = logger.Int
	Float64 = logger.Float64
	Error   = logger.Error
)
