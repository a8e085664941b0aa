package logging

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldPackage is the structured logging key for the category/pf being processed.
	FieldPackage = "package"
	// FieldSpecifier is the structured logging key for raw user specifiers.
	FieldSpecifier = "specifier"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step after a failure.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldPath is a filesystem path attached to a log line.
	FieldPath = "path"
	// FieldAlert flags warnings that should stand out in structured logs.
	FieldAlert = "alert"
)
