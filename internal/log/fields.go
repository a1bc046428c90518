package log

import "github.com/shopspring/decimal"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldRoute         = "route"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldSegment       = "segment"
	FieldAccount       = "account"
	FieldAmount        = "amount"
	FieldKind          = "kind"
	FieldTransactionID = "transaction_id"
	FieldDebtID        = "debt_id"
	FieldEventType     = "event_type"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
	ComponentImport    = "import"
)

// Operations defines standard operation names
const (
	OpAddExpense  = "add_expense"
	OpAddIncome   = "add_income"
	OpAddTransfer = "add_transfer"
	OpOpenDebt    = "open_debt"
	OpCloseDebt   = "close_debt"
	OpDelete      = "delete_transaction"
	OpExport      = "export"
	OpImport      = "import"
	OpShutdown    = "shutdown"
	OpStartup     = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	if requestID != "" {
		f[FieldRequestID] = requestID
	}
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithEntry adds the fields describing one ledger row
func (f LogFields) WithEntry(segment, kind, account string, amount decimal.Decimal) LogFields {
	f[FieldSegment] = segment
	f[FieldKind] = kind
	if account != "" {
		f[FieldAccount] = account
	}
	f[FieldAmount] = amount.String()
	return f
}

func (f LogFields) WithTransactionID(id int64) LogFields {
	if id > 0 {
		f[FieldTransactionID] = id
	}
	return f
}

func (f LogFields) WithDebtID(id string) LogFields {
	if id != "" {
		f[FieldDebtID] = id
	}
	return f
}

func (f LogFields) WithHTTPRequest(method, path, route string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if route != "" {
		f[FieldRoute] = route
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
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
