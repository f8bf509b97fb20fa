package types

import "errors"

// Sentinel errors for lumen operations.
var (
	// ErrDisposed indicates a node or condition was used after Dispose.
	ErrDisposed = errors.New("used after dispose")

	// ErrIncompatibleOperator indicates an operator does not accept the left side type.
	ErrIncompatibleOperator = errors.New("operator does not support left side type")

	// ErrIncompatibleRightSide indicates a right side type the operator cannot compare against.
	ErrIncompatibleRightSide = errors.New("right side type incompatible with operator")

	// ErrCoercionFailed indicates type coercion failed.
	ErrCoercionFailed = errors.New("type coercion failed")

	// ErrDataModelExists indicates a data model with the same id is already registered.
	ErrDataModelExists = errors.New("data model already registered")

	// ErrDataModelNotFound indicates no live data model has the requested id.
	ErrDataModelNotFound = errors.New("data model not found")

	// ErrOperatorExists indicates an operator with the same extension and type is registered.
	ErrOperatorExists = errors.New("operator already registered")

	// ErrInvalidOperator indicates an operator definition is unusable (no type, no compare func).
	ErrInvalidOperator = errors.New("invalid operator definition")

	// ErrPropertyNotFound indicates a path segment names no property of the current type.
	ErrPropertyNotFound = errors.New("property not found")

	// ErrEventNotFound indicates a data model has no event with the requested name.
	ErrEventNotFound = errors.New("event not found")

	// ErrPathTooDeep indicates a path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("path exceeds maximum depth")

	// ErrTreeTooDeep indicates an entity tree exceeds MaxTreeDepth.
	ErrTreeTooDeep = errors.New("condition tree exceeds maximum depth")

	// ErrInvalidEntity indicates a persisted entity cannot be turned into a node.
	ErrInvalidEntity = errors.New("invalid condition entity")

	// ErrWrongScope indicates a node was attached somewhere its scope does not allow.
	ErrWrongScope = errors.New("node not allowed in this scope")

	// ErrScriptTooLong indicates a script exceeds MaxScriptLength.
	ErrScriptTooLong = errors.New("script exceeds maximum length")

	// ErrNotBoolean indicates a script produced a non-boolean result.
	ErrNotBoolean = errors.New("script result is not a boolean")

	// ErrUnknownLanguage indicates a script names no registered engine.
	ErrUnknownLanguage = errors.New("unknown script language")

	// ErrProfileNotFound indicates no stored profile has the requested name.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidProfile indicates a profile document fails validation.
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrElementNotFound indicates no render element has the requested id.
	ErrElementNotFound = errors.New("element not found")
)
