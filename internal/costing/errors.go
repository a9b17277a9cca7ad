package costing

import "errors"

var (
	ErrCyclicDependency      = errors.New("costing: cyclic dependency")
	ErrOrphanedSizeReference = errors.New("costing: size group has no reference option")
	ErrInvalidSizeGroup      = errors.New("costing: invalid size group")
	ErrMissingComponent      = errors.New("costing: missing component")
	ErrUnsupportedComponent  = errors.New("costing: unsupported component type")
	ErrNegativeCost          = errors.New("costing: negative cost")
	ErrInvalidQuantity       = errors.New("costing: quantity must be positive")
	ErrUpstreamFailed        = errors.New("costing: upstream computation failed")
)
