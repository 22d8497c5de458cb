package tags

import "errors"

var (
	ErrInvalidArgument = errors.New("tags: source and target tags must be distinct and non-empty")
	ErrUnauthenticated = errors.New("tags: caller is not authenticated")
	ErrBatchTooLarge   = errors.New("tags: rewrite batch exceeds limit")
	ErrAdjustUsage     = errors.New("tags: failed to adjust usage counters")
	ErrRewrite         = errors.New("tags: failed to rewrite record tags")
	ErrTransfer        = errors.New("tags: failed to transfer usage")
)
