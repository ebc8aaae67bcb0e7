package types

import "errors"

// Sentinel errors for shelfkeeper operations.
var (
	// ErrShelfNotFound indicates no magic shelf exists with the requested ID.
	ErrShelfNotFound = errors.New("magic shelf not found")

	// ErrShelfNameTaken indicates the owner already has a shelf with this name.
	ErrShelfNameTaken = errors.New("magic shelf name already in use")

	// ErrShelfForbidden indicates the caller may not read or modify the shelf.
	ErrShelfForbidden = errors.New("magic shelf access denied")

	// ErrInvalidShelf indicates a shelf has no name or an oversized field.
	ErrInvalidShelf = errors.New("invalid magic shelf")

	// ErrInvalidPage indicates a negative page number or size.
	ErrInvalidPage = errors.New("invalid page")

	// ErrInvalidFilter indicates a filter document is not a JSON rule group.
	ErrInvalidFilter = errors.New("filter is not a valid rule group")

	// ErrRuleTooDeep indicates a rule tree nests groups beyond MaxRuleDepth.
	ErrRuleTooDeep = errors.New("rule tree exceeds maximum depth")

	// ErrTooManyRules indicates a group holds more than MaxRulesPerGroup children.
	ErrTooManyRules = errors.New("rule group has too many rules")

	// ErrUnparsableValue indicates a rule literal could not be normalized for its field.
	ErrUnparsableValue = errors.New("rule value cannot be normalized")

	// ErrBookNotFound indicates no book exists with the requested ID.
	ErrBookNotFound = errors.New("book not found")

	// ErrInvalidProgress indicates an unknown read status or an out-of-range rating.
	ErrInvalidProgress = errors.New("invalid reading progress")

	// ErrAdminRequired indicates the operation is reserved for administrators.
	ErrAdminRequired = errors.New("administrator access required")

	// ErrUserNotFound indicates no user exists with the requested ID.
	ErrUserNotFound = errors.New("user not found")
)
