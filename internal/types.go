package internal

type AccountType string

const (
	AccountSMS  AccountType = "sms"
	AccountCall AccountType = "call"
)

type Account struct {
	ID          string      `json:"id"`
	CompanyName string      `json:"company_name"`
	AccountType AccountType `json:"account_type"`
	SiteURL     string      `json:"site_url"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	Notes       string      `json:"notes"`
	Status      string      `json:"status"`
	CreatedAt   string      `json:"created_at"`
	UpdatedAt   string      `json:"updated_at"`
}

type AdminUser struct {
	EmployeeID   string `json:"employeeId"`
	Name         string `json:"name"`
	Position     string `json:"position"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

type TaskStatus string

const (
	TaskStarting  TaskStatus = "starting"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

type Task struct {
	ID           string     `json:"task_id"`
	Company      string     `json:"company"`
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress"`
	Files        []string   `json:"files"`
	Logs         []string   `json:"log"`
	Error        string     `json:"error,omitempty"`
	CrawlingMode bool       `json:"crawling_mode"`
	StartDate    string     `json:"start_date"`
	EndDate      string     `json:"end_date"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
}

// BillAmount is the amount billed by the carrier for one client company.
type BillAmount struct {
	Company    string `json:"-"`
	Amount     string `json:"amount,omitempty"`
	UpdateDate string `json:"update_date"`
	ImagePath  string `json:"image_path,omitempty"`
	PDFFile    string `json:"pdf_file,omitempty"`
}

type FileListKind string

const (
	FilesProcessed FileListKind = "processed"
	FilesUploaded  FileListKind = "uploaded"
	FilesCollected FileListKind = "collected"
)

type FileList struct {
	Kind      FileListKind `json:"kind"`
	Company   string       `json:"company"`
	Files     []string     `json:"files"`
	Timestamp string       `json:"timestamp"`
}

type DeptCode struct {
	DeptName string `json:"dept_name"`
	DeptCode string `json:"dept_code"`
}

type ExpenseRow struct {
	Amount          string `json:"amount"`
	StandardSummary string `json:"standard_summary"`
	EvidenceType    string `json:"evidence_type"`
	Note            string `json:"note"`
	Project         string `json:"project"`
}

type BillMailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
