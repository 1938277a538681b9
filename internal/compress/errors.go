package compress

import "errors"

var (
	ErrUnsupportedEncoding = errors.New("unsupported content encoding")
	ErrRuleConflict        = errors.New("include and exclude rules are mutually exclusive")
	ErrInvalidLevel        = errors.New("compression level out of range")
	ErrInvalidThreshold    = errors.New("threshold must be non-negative")
	ErrMalformedBody       = errors.New("malformed compressed request body")
	ErrStreamClosed        = errors.New("write to finalized response stream")
)
