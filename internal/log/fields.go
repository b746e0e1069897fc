package log

// Common field names for structured logging.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldClientIP  = "client_ip"
	FieldTool      = "tool"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldExpenseID = "expense_id"
	FieldDate      = "date"
	FieldAmount    = "amount"
	FieldCategory  = "category"
	FieldTotal     = "total"
)

// Components defines standard component names.
const (
	ComponentApp      = "app"
	ComponentTools    = "tools"
	ComponentLedger   = "ledger"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentExporter = "exporter"
	ComponentSheets   = "sheets"
)

// Operations defines standard operation names.
const (
	OpCreate    = "create"
	OpList      = "list"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpSummarize = "summarize"
	OpExport    = "export"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
