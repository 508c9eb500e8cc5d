package log

const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldClientIP   = "client_ip"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldCompany    = "company"
	FieldTaskID     = "task_id"
	FieldFile       = "file"
	FieldEmployeeID = "employee_id"
	FieldMessageID  = "message_id"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStorage   = "storage"
	ComponentTasks     = "tasks"
	ComponentCollector = "collector"
	ComponentPipeline  = "pipeline"
	ComponentBills     = "bills"
	ComponentExpense   = "expense"
	ComponentAuth      = "auth"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentListener  = "listener"
	ComponentTemplates = "templates"
)

const (
	OpCollect    = "collect"
	OpPreprocess = "preprocess"
	OpIngest     = "ingest"
	OpSubmit     = "submit"
	OpLogin      = "login"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)
