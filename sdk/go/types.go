package giglinesdk

// Account is a marketplace participant.
type Account struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
	Premium     bool   `json:"premium"`
	CreatedAt   string `json:"created_at"`
}

type Contract struct {
	ID           int64   `json:"id"`
	JobID        int64   `json:"job_id"`
	EmployerID   string  `json:"employer_id"`
	FreelancerID string  `json:"freelancer_id"`
	HourlyRate   int64   `json:"hourly_rate"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	Status       string  `json:"status"`
	Rating       *int    `json:"rating,omitempty"`
	Feedback     *string `json:"feedback,omitempty"`
	CreatedAt    string  `json:"created_at"`
	CompletedAt  *string `json:"completed_at,omitempty"`
}

// ContractGate holds the flags that decide which contract actions are legal.
type ContractGate struct {
	ContractID             int64  `json:"contract_id"`
	EndDate                string `json:"end_date"`
	Status                 string `json:"status"`
	IsEnded                bool   `json:"is_ended"`
	IsCompletedOrCancelled bool   `json:"is_completed_or_cancelled"`
	IsCancelled            bool   `json:"is_cancelled"`
	HasIncompleteTasks     bool   `json:"has_incomplete_tasks"`
}

type Cancellation struct {
	ID          int64   `json:"id"`
	ContractID  int64   `json:"contract_id"`
	RequestedBy string  `json:"requested_by"`
	Reason      string  `json:"reason"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ResolvedAt  *string `json:"resolved_at,omitempty"`
	ResolvedBy  *string `json:"resolved_by,omitempty"`
}

// Attachment is file metadata. Use the download methods for the bytes.
type Attachment struct {
	ID          string `json:"id"`
	OwnerKind   string `json:"owner_kind"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	CreatedAt   string `json:"created_at"`
}

type Task struct {
	ID                    int64        `json:"id"`
	ContractID            int64        `json:"contract_id"`
	EmployerID            string       `json:"employer_id"`
	FreelancerID          string       `json:"freelancer_id"`
	JobID                 int64        `json:"job_id"`
	Name                  string       `json:"name"`
	Instruction           string       `json:"instruction"`
	SubmissionRequirement string       `json:"submission_requirement"`
	Status                string       `json:"status"`
	SubmissionNote        *string      `json:"submission_note,omitempty"`
	RejectReason          *string      `json:"reject_reason,omitempty"`
	Hours                 float64      `json:"hours"`
	TotalPay              int64        `json:"total_pay"`
	CreatedAt             string       `json:"created_at"`
	UpdatedAt             string       `json:"updated_at"`
	DueDate               string       `json:"due_date"`
	SubmissionDate        *string      `json:"submission_date,omitempty"`
	Files                 []Attachment `json:"files,omitempty"`
}

// TaskInput is the editable part of a task.
type TaskInput struct {
	Name                  string  `json:"name"`
	Instruction           string  `json:"instruction"`
	SubmissionRequirement string  `json:"submission_requirement"`
	Hours                 float64 `json:"hours"`
	DueDate               string  `json:"due_date"`
}

type Settlement struct {
	ID           string  `json:"id"`
	TaskID       int64   `json:"task_id"`
	ContractID   int64   `json:"contract_id"`
	FreelancerID string  `json:"freelancer_id"`
	Amount       int64   `json:"amount"`
	Status       string  `json:"status"`
	Error        string  `json:"error,omitempty"`
	CreatedAt    string  `json:"created_at"`
	SettledAt    *string `json:"settled_at,omitempty"`
}

// File is an upload or a downloaded attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type Ticket struct {
	ID          int64           `json:"id"`
	CreatorID   string          `json:"creator_id"`
	AssigneeID  *string         `json:"assignee_id,omitempty"`
	Subject     string          `json:"subject"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Priority    string          `json:"priority"`
	Status      string          `json:"status"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	Messages    []TicketMessage `json:"messages,omitempty"`
}

type TicketMessage struct {
	ID        int64  `json:"id"`
	TicketID  int64  `json:"ticket_id"`
	AuthorID  string `json:"author_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

type TicketInput struct {
	Subject     string
	Description string
	Category    string
	Priority    string
	Attachments []File
}

type TicketQuery struct {
	CreatorID string
	Status    string
	Priority  string
	Category  string
	Query     string
}

type Company struct {
	OwnerID            string       `json:"owner_id"`
	Name               string       `json:"name"`
	RegistrationNumber string       `json:"registration_number,omitempty"`
	Industry           string       `json:"industry,omitempty"`
	Website            string       `json:"website,omitempty"`
	Status             string       `json:"status"`
	RejectReason       *string      `json:"reject_reason,omitempty"`
	UpdatedAt          string       `json:"updated_at"`
	Documents          []Attachment `json:"documents,omitempty"`
}

type CompanyInput struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	Industry           string `json:"industry,omitempty"`
	Website            string `json:"website,omitempty"`
}

type Wallet struct {
	ActorID   string `json:"actor_id"`
	Balance   int64  `json:"balance"`
	UpdatedAt string `json:"updated_at"`
}

type LedgerEntry struct {
	ID         int64  `json:"id"`
	ActorID    string `json:"actor_id"`
	ContractID *int64 `json:"contract_id,omitempty"`
	TaskID     *int64 `json:"task_id,omitempty"`
	Kind       string `json:"kind"`
	Amount     int64  `json:"amount"`
	Note       string `json:"note,omitempty"`
	CreatedAt  string `json:"created_at"`
}

type TransactionSummary struct {
	TotalDeposited int64 `json:"total_deposited"`
	TotalSpent     int64 `json:"total_spent"`
	TotalEarned    int64 `json:"total_earned"`
	TotalRefunded  int64 `json:"total_refunded"`
	Balance        int64 `json:"balance"`
}

type Transactions struct {
	Items   []LedgerEntry      `json:"items"`
	Summary TransactionSummary `json:"summary"`
}

type TransactionQuery struct {
	Kind       string
	ContractID int64
	Query      string
	From       string
	To         string
	Limit      int
}

// Event is an entry of the service's event log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	ContractID *int64 `json:"contract_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type EventPage struct {
	Items      []Event `json:"items"`
	NextCursor int64   `json:"next_cursor,omitempty"`
}

type EventQuery struct {
	ContractID int64
	Type       string
	EntityKind string
	EntityID   string
	Cursor     int64
	Limit      int
}
