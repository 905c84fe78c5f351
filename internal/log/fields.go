package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
	FieldUsername   = "username"
	FieldUserID     = "user_id"
	FieldVersion    = "version"
	FieldFormat     = "format"
	FieldPath       = "path"
	FieldUsers      = "users"
	FieldCategories = "categories"
	FieldExpenses   = "expenses"
	FieldSkipped    = "skipped"
	FieldIndex      = "index"
	FieldWindow     = "window"
	FieldFrom       = "from"
	FieldTo         = "to"
	FieldEventID    = "event_id"
	FieldEventKind  = "event_kind"
	FieldSheet      = "sheet"
)

// Components defines standard component names
const (
	ComponentApp         = "app"
	ComponentSnapshot    = "snapshot"
	ComponentAggregation = "aggregation"
	ComponentStorage     = "storage"
	ComponentAMQP        = "amqp"
	ComponentWorker      = "worker"
	ComponentSheets      = "sheets"
	ComponentCLI         = "cli"
)

// Operations defines standard operation names
const (
	OpExport     = "export"
	OpExportUser = "export_user"
	OpImport     = "import"
	OpImportUser = "import_user"
	OpCompare    = "compare"
	OpPublish    = "publish"
	OpConsume    = "consume"
	OpSeed       = "seed"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithUsername(username string) LogFields {
	f[FieldUsername] = username
	return f
}

// WithCounts adds the row counts of a snapshot document or import.
func (f LogFields) WithCounts(users, categories, expenses int) LogFields {
	f[FieldUsers] = users
	f[FieldCategories] = categories
	f[FieldExpenses] = expenses
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
