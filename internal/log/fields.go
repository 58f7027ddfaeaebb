package log

// Common field names for structured logging.
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldBudgetID      = "budget_id"
	FieldAmountCents   = "amount_cents"
	FieldCategory      = "category"
	FieldInterval      = "interval"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
)

// Components defines standard component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentScheduler = "scheduler"
	ComponentRecurring = "recurring"
	ComponentBudget    = "budget"
	ComponentReport    = "report"
	ComponentMailer    = "mailer"
	ComponentInsights  = "insights"
	ComponentRateLimit = "rate_limit"
)
