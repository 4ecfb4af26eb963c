package server

import (
	"gigline/internal/attach"
	"gigline/internal/domain"
	"gigline/internal/engine"
)

// Request payloads

type CreateAccountRequest struct {
	ID          string `json:"id" minLength:"1"`
	Role        string `json:"role" enum:"employer,freelancer,admin"`
	DisplayName string `json:"display_name,omitempty"`
	Premium     bool   `json:"premium,omitempty"`
}

type CreateContractRequest struct {
	JobID        int64  `json:"job_id"`
	EmployerID   string `json:"employer_id"`
	FreelancerID string `json:"freelancer_id"`
	HourlyRate   int64  `json:"hourly_rate" minimum:"1"`
	StartDate    string `json:"start_date" example:"2024-01-01"`
	EndDate      string `json:"end_date" example:"2024-01-31"`
}

// TaskFieldsRequest is the editable part of a task.
type TaskFieldsRequest struct {
	Name                  string  `json:"name"`
	Instruction           string  `json:"instruction"`
	SubmissionRequirement string  `json:"submission_requirement"`
	Hours                 float64 `json:"hours" minimum:"1" maximum:"10000" example:"5"`
	DueDate               string  `json:"due_date" example:"2024-01-20"`
}

func (r TaskFieldsRequest) fields() engine.TaskFields {
	return engine.TaskFields{
		Name:                  r.Name,
		Instruction:           r.Instruction,
		SubmissionRequirement: r.SubmissionRequirement,
		Hours:                 r.Hours,
		DueDate:               r.DueDate,
	}
}

type CreateTaskRequest struct {
	ContractID int64 `json:"contract_id"`
	TaskFieldsRequest
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type ResolveCancellationRequest struct {
	Approve bool `json:"approve"`
}

type CompleteContractRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// FilePayload carries file bytes as base64 or a data URL.
type FilePayload struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Data        string `json:"data" doc:"base64 or data URL"`
}

type CreateTicketRequest struct {
	Subject     string        `json:"subject"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Priority    string        `json:"priority,omitempty" enum:"low,medium,high,premium"`
	Attachments []FilePayload `json:"attachments,omitempty"`
}

type AssignTicketRequest struct {
	AssigneeID string `json:"assignee_id,omitempty"`
}

type TicketStatusRequest struct {
	Status string `json:"status" enum:"open,in_progress,resolved,closed"`
}

type TicketMessageRequest struct {
	Body string `json:"body"`
}

type CompanyRequest struct {
	Name               string `json:"name"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	Industry           string `json:"industry,omitempty"`
	Website            string `json:"website,omitempty"`
}

type VerifyCompanyRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason,omitempty"`
}

type DepositRequest struct {
	Amount int64  `json:"amount"`
	Note   string `json:"note,omitempty"`
}

// Response payloads

type ApproveTaskResponse struct {
	Task       domain.Task       `json:"task"`
	Settlement domain.Settlement `json:"settlement"`
}

type DeleteTaskResponse struct {
	TaskID   int64 `json:"task_id"`
	Refunded int64 `json:"refunded"`
}

type EndDateResponse struct {
	ContractID int64  `json:"contract_id"`
	EndDate    string `json:"end_date"`
	IsEnded    bool   `json:"is_ended"`
}

type TransactionsResponse struct {
	Items   []domain.LedgerEntry      `json:"items"`
	Summary domain.TransactionSummary `json:"summary"`
}

// FileResponse is an attachment with its bytes base64 encoded.
type FileResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Data        string `json:"data"`
}

func decodeFiles(in []FilePayload) ([]attach.File, error) {
	files := make([]attach.File, 0, len(in))
	for _, p := range in {
		data, ct, err := attach.DecodeBase64(p.Data)
		if err != nil {
			return nil, engine.ValidationError{Field: "attachments", Reason: err.Error()}
		}
		if p.ContentType != "" {
			ct = p.ContentType
		}
		files = append(files, attach.File{Name: p.Name, ContentType: ct, Data: data})
	}
	return files, nil
}

func fileResponse(a domain.Attachment) FileResponse {
	return FileResponse{
		ID:          a.ID,
		Name:        a.Name,
		ContentType: a.ContentType,
		Size:        a.Size,
		Data:        attach.EncodeBase64(a.Data),
	}
}
