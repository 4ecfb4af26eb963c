package domain

import (
	mapset "github.com/deckarep/golang-set/v2"
)

const (
	RoleEmployer   = "employer"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

const (
	TaskPending   = "pending"
	TaskSubmitted = "submitted"
	TaskApproved  = "approved"
	TaskRejected  = "rejected"
)

// Task actions driving the lifecycle.
const (
	ActionSubmit           = "submit"
	ActionUpdateSubmission = "update-submission"
	ActionApprove          = "approve"
	ActionReject           = "reject"
	ActionDelete           = "delete"
	ActionEdit             = "edit"
)

// TaskTransitions maps status -> action -> resulting status. An empty result
// means the task is removed.
var TaskTransitions = map[string]map[string]string{
	TaskPending: {
		ActionSubmit: TaskSubmitted,
		ActionEdit:   TaskPending,
		ActionDelete: "",
	},
	TaskSubmitted: {
		ActionUpdateSubmission: TaskSubmitted,
		ActionEdit:             TaskSubmitted,
		ActionApprove:          TaskApproved,
		ActionReject:           TaskRejected,
	},
}

var (
	IncompleteTaskStatuses = mapset.NewSet(TaskPending, TaskSubmitted)
	TerminalTaskStatuses   = mapset.NewSet(TaskApproved, TaskRejected)
)

const (
	ContractActive    = "active"
	ContractCompleted = "completed"
	ContractCancelled = "cancelled"
)

const (
	CancellationPending  = "pending"
	CancellationApproved = "approved"
	CancellationDeclined = "declined"
)

const (
	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
	TicketClosed     = "closed"
)

var (
	TicketPriorities = mapset.NewSet("low", "medium", "high", "premium")
	TicketStatuses   = mapset.NewSet(TicketOpen, TicketInProgress, TicketResolved, TicketClosed)
)

const (
	CompanyUnverified = "unverified"
	CompanyPending    = "pending"
	CompanyVerified   = "verified"
	CompanyRejected   = "rejected"
)

const (
	LedgerDeposit      = "deposit"
	LedgerEscrowHold   = "escrow_hold"
	LedgerEscrowAdjust = "escrow_adjust"
	LedgerRelease      = "release"
	LedgerRefund       = "refund"
)

var LedgerKinds = mapset.NewSet(LedgerDeposit, LedgerEscrowHold, LedgerEscrowAdjust, LedgerRelease, LedgerRefund)

const (
	SettlementProcessing = "processing"
	SettlementCompleted  = "completed"
	SettlementFailed     = "failed"
)

const (
	OwnerTask    = "task"
	OwnerCompany = "company"
	OwnerTicket  = "ticket"
)

type Account struct {
	ID          string `json:"id"`
	Role        string `json:"role" enum:"employer,freelancer,admin"`
	DisplayName string `json:"display_name,omitempty"`
	Premium     bool   `json:"premium"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Contract struct {
	ID           int64   `json:"id"`
	JobID        int64   `json:"job_id"`
	EmployerID   string  `json:"employer_id"`
	FreelancerID string  `json:"freelancer_id"`
	HourlyRate   int64   `json:"hourly_rate"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	Status       string  `json:"status" enum:"active,completed,cancelled"`
	Rating       *int    `json:"rating,omitempty"`
	Feedback     *string `json:"feedback,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	CompletedAt  *string `json:"completed_at,omitempty" format:"date-time"`
}

type ContractCancellation struct {
	ID          int64   `json:"id"`
	ContractID  int64   `json:"contract_id"`
	RequestedBy string  `json:"requested_by"`
	Reason      string  `json:"reason"`
	Status      string  `json:"status" enum:"pending,approved,declined"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	ResolvedAt  *string `json:"resolved_at,omitempty" format:"date-time"`
	ResolvedBy  *string `json:"resolved_by,omitempty"`
}

// ContractGate is the set of derived flags deciding which actions are legal.
type ContractGate struct {
	ContractID             int64  `json:"contract_id"`
	EndDate                string `json:"end_date"`
	Status                 string `json:"status"`
	IsEnded                bool   `json:"is_ended"`
	IsCompletedOrCancelled bool   `json:"is_completed_or_cancelled"`
	IsCancelled            bool   `json:"is_cancelled"`
	HasIncompleteTasks     bool   `json:"has_incomplete_tasks"`
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
	Status                string       `json:"status" enum:"pending,submitted,approved,rejected"`
	SubmissionNote        *string      `json:"submission_note,omitempty"`
	RejectReason          *string      `json:"reject_reason,omitempty"`
	Hours                 float64      `json:"hours"`
	TotalPay              int64        `json:"total_pay"`
	CreatedAt             string       `json:"created_at" format:"date-time"`
	UpdatedAt             string       `json:"updated_at" format:"date-time"`
	DueDate               string       `json:"due_date"`
	SubmissionDate        *string      `json:"submission_date,omitempty" format:"date-time"`
	Files                 []Attachment `json:"files,omitempty"`
}

// Attachment is file metadata; Data is only populated for downloads.
type Attachment struct {
	ID          string `json:"id"`
	OwnerKind   string `json:"owner_kind" enum:"task,company,ticket"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	Data        []byte `json:"-"`
}

type Ticket struct {
	ID          int64           `json:"id"`
	CreatorID   string          `json:"creator_id"`
	AssigneeID  *string         `json:"assignee_id,omitempty"`
	Subject     string          `json:"subject"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Priority    string          `json:"priority" enum:"low,medium,high,premium"`
	Status      string          `json:"status" enum:"open,in_progress,resolved,closed"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	UpdatedAt   string          `json:"updated_at" format:"date-time"`
	Attachments []Attachment    `json:"attachments,omitempty"`
	Messages    []TicketMessage `json:"messages,omitempty"`
}

type TicketMessage struct {
	ID        int64  `json:"id"`
	TicketID  int64  `json:"ticket_id"`
	AuthorID  string `json:"author_id"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Company struct {
	OwnerID            string       `json:"owner_id"`
	Name               string       `json:"name"`
	RegistrationNumber string       `json:"registration_number,omitempty"`
	Industry           string       `json:"industry,omitempty"`
	Website            string       `json:"website,omitempty"`
	Status             string       `json:"status" enum:"unverified,pending,verified,rejected"`
	RejectReason       *string      `json:"reject_reason,omitempty"`
	UpdatedAt          string       `json:"updated_at" format:"date-time"`
	Documents          []Attachment `json:"documents,omitempty"`
}

type Wallet struct {
	ActorID   string `json:"actor_id"`
	Balance   int64  `json:"balance"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type LedgerEntry struct {
	ID         int64  `json:"id"`
	ActorID    string `json:"actor_id"`
	ContractID *int64 `json:"contract_id,omitempty"`
	TaskID     *int64 `json:"task_id,omitempty"`
	Kind       string `json:"kind" enum:"deposit,escrow_hold,escrow_adjust,release,refund"`
	Amount     int64  `json:"amount"`
	Note       string `json:"note,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// TransactionSummary aggregates an actor's ledger.
type TransactionSummary struct {
	TotalDeposited int64 `json:"total_deposited"`
	TotalSpent     int64 `json:"total_spent"`
	TotalEarned    int64 `json:"total_earned"`
	TotalRefunded  int64 `json:"total_refunded"`
	Balance        int64 `json:"balance"`
}

type Settlement struct {
	ID           string  `json:"id"`
	TaskID       int64   `json:"task_id"`
	ContractID   int64   `json:"contract_id"`
	FreelancerID string  `json:"freelancer_id"`
	Amount       int64   `json:"amount"`
	Status       string  `json:"status" enum:"processing,completed,failed"`
	Error        string  `json:"error,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	SettledAt    *string `json:"settled_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ContractID *int64 `json:"contract_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
