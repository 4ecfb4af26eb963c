// Package giglinesdk is a typed client for the gigline HTTP API.
package giglinesdk

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to one gigline server. BaseURL includes the API base path,
// e.g. http://localhost:8080/api.
type Client struct {
	rest *resty.Client
}

type Option func(*Client)

// WithToken authenticates with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.rest.SetAuthToken(token) }
}

// WithActor sends X-Actor-Id; the server must run with the actor header enabled.
func WithActor(actorID string) Option {
	return func(c *Client) { c.rest.SetHeader("X-Actor-Id", actorID) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.rest.SetTimeout(d) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		base := c.rest.BaseURL
		headers := c.rest.Header.Clone()
		token := c.rest.Token
		c.rest = resty.NewWithClient(hc).SetBaseURL(base).SetAuthToken(token)
		c.rest.Header = headers
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		rest: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(10 * time.Second).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx answer carrying the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gigline: %s (%d): %s", e.Code, e.Status, e.Message)
}

// IsInsufficientCredits reports whether the payer could not cover the amount.
func (e *APIError) IsInsufficientCredits() bool {
	return e.Code == "insufficient_credits"
}

// Credits returns the required and available amounts of an insufficient
// credits error.
func (e *APIError) Credits() (required, available int64) {
	return detailInt(e.Details, "required"), detailInt(e.Details, "available")
}

func detailInt(details map[string]any, key string) int64 {
	switch v := details[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

// request executes one call. callback customizes the request; out receives a
// successful JSON body.
func (c *Client) request(ctx context.Context, method, path string, callback func(req *resty.Request), out any) (*resty.Response, error) {
	req := c.rest.R().SetContext(ctx).SetError(&errorEnvelope{})
	if callback != nil {
		callback(req)
	}
	if out != nil {
		req.SetResult(out)
	}
	res, err := req.Execute(method, path)
	if err != nil {
		return res, err
	}
	if res.IsError() {
		apiErr := &APIError{Status: res.StatusCode(), Code: "http_" + strconv.Itoa(res.StatusCode()), Message: res.Status()}
		if env, ok := res.Error().(*errorEnvelope); ok && env.Error.Code != "" {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return res, apiErr
	}
	return res, nil
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func download(res *resty.Response) File {
	f := File{ContentType: res.Header().Get("Content-Type"), Data: res.Body()}
	if _, params, err := mime.ParseMediaType(res.Header().Get("Content-Disposition")); err == nil {
		f.Name = params["filename"]
	}
	return f
}

// Accounts

type AccountInput struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
	Premium     bool   `json:"premium,omitempty"`
}

func (c *Client) CreateAccount(ctx context.Context, in AccountInput) (Account, error) {
	var out Account
	_, err := c.request(ctx, http.MethodPost, "/accounts", func(req *resty.Request) { req.SetBody(in) }, &out)
	return out, err
}

func (c *Client) ListAccounts(ctx context.Context, role string) ([]Account, error) {
	var out []Account
	_, err := c.request(ctx, http.MethodGet, "/accounts", func(req *resty.Request) {
		if role != "" {
			req.SetQueryParam("role", role)
		}
	}, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context) (Account, error) {
	var out Account
	_, err := c.request(ctx, http.MethodGet, "/me", nil, &out)
	return out, err
}

// Contracts

type ContractInput struct {
	JobID        int64  `json:"job_id"`
	EmployerID   string `json:"employer_id"`
	FreelancerID string `json:"freelancer_id"`
	HourlyRate   int64  `json:"hourly_rate"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

func (c *Client) CreateContract(ctx context.Context, in ContractInput) (Contract, error) {
	var out Contract
	_, err := c.request(ctx, http.MethodPost, "/contracts", func(req *resty.Request) { req.SetBody(in) }, &out)
	return out, err
}

func (c *Client) ListContracts(ctx context.Context, status string) ([]Contract, error) {
	var out []Contract
	_, err := c.request(ctx, http.MethodGet, "/contracts", func(req *resty.Request) {
		if status != "" {
			req.SetQueryParam("status", status)
		}
	}, &out)
	return out, err
}

func (c *Client) GetContract(ctx context.Context, contractID int64) (Contract, error) {
	var out Contract
	_, err := c.request(ctx, http.MethodGet, "/contracts/"+id(contractID), nil, &out)
	return out, err
}

// CheckStatus returns the contract's gate flags.
func (c *Client) CheckStatus(ctx context.Context, contractID int64) (ContractGate, error) {
	var out ContractGate
	_, err := c.request(ctx, http.MethodGet, "/contracts/checkstatus/"+id(contractID), nil, &out)
	return out, err
}

func (c *Client) CancelReason(ctx context.Context, contractID int64) (Cancellation, error) {
	var out Cancellation
	_, err := c.request(ctx, http.MethodGet, "/contracts/cancel-reason/"+id(contractID), nil, &out)
	return out, err
}

func (c *Client) RequestCancellation(ctx context.Context, contractID int64, reason string) (Cancellation, error) {
	var out Cancellation
	_, err := c.request(ctx, http.MethodPost, "/contracts/cancel/"+id(contractID), func(req *resty.Request) {
		req.SetBody(map[string]any{"reason": reason})
	}, &out)
	return out, err
}

func (c *Client) ResolveCancellation(ctx context.Context, contractID int64, approve bool) (Cancellation, error) {
	var out Cancellation
	_, err := c.request(ctx, http.MethodPut, "/contracts/cancel/"+id(contractID)+"/resolve", func(req *resty.Request) {
		req.SetBody(map[string]any{"approve": approve})
	}, &out)
	return out, err
}

func (c *Client) CompleteContract(ctx context.Context, contractID int64, rating int, feedback string) (Contract, error) {
	var out Contract
	_, err := c.request(ctx, http.MethodPost, "/contracts/complete/"+id(contractID), func(req *resty.Request) {
		req.SetBody(map[string]any{"rating": rating, "feedback": feedback})
	}, &out)
	return out, err
}

// Tasks

// TaskFileData lists a contract's tasks with file metadata. Employer and
// freelancer IDs are optional consistency checks.
func (c *Client) TaskFileData(ctx context.Context, contractID int64, employerID, freelancerID string) ([]Task, error) {
	var out []Task
	_, err := c.request(ctx, http.MethodGet, "/tasks/get-task-file-data", func(req *resty.Request) {
		req.SetQueryParam("contractId", id(contractID))
		if employerID != "" {
			req.SetQueryParam("employerId", employerID)
		}
		if freelancerID != "" {
			req.SetQueryParam("freelancerId", freelancerID)
		}
	}, &out)
	return out, err
}

func (c *Client) GetTask(ctx context.Context, taskID int64) (Task, error) {
	var out Task
	_, err := c.request(ctx, http.MethodGet, "/tasks/"+id(taskID), nil, &out)
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, contractID int64, in TaskInput) (Task, error) {
	body := struct {
		ContractID int64 `json:"contract_id"`
		TaskInput
	}{ContractID: contractID, TaskInput: in}
	var out Task
	_, err := c.request(ctx, http.MethodPost, "/tasks/create", func(req *resty.Request) { req.SetBody(body) }, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, taskID int64, in TaskInput) (Task, error) {
	var out Task
	_, err := c.request(ctx, http.MethodPut, "/tasks/update/"+id(taskID), func(req *resty.Request) { req.SetBody(in) }, &out)
	return out, err
}

// DeleteTask removes a pending task and returns the refunded amount.
func (c *Client) DeleteTask(ctx context.Context, taskID int64) (int64, error) {
	var out struct {
		Refunded int64 `json:"refunded"`
	}
	_, err := c.request(ctx, http.MethodDelete, "/tasks/delete/"+id(taskID), nil, &out)
	return out.Refunded, err
}

func setFiles(req *resty.Request, field string, files []File) {
	for i, f := range files {
		name := f.Name
		if name == "" {
			name = fmt.Sprintf("file-%d", i+1)
		}
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		req.SetMultipartField(field, name, ct, bytes.NewReader(f.Data))
	}
}

func (c *Client) SubmitTask(ctx context.Context, taskID int64, note string, files []File) (Task, error) {
	var out Task
	_, err := c.request(ctx, http.MethodPost, "/tasks/submit", func(req *resty.Request) {
		req.SetMultipartFormData(map[string]string{"task_id": id(taskID), "note": note})
		setFiles(req, "files", files)
	}, &out)
	return out, err
}

// UpdateSubmission keeps the listed existing files, adds the new ones and
// replaces the note.
func (c *Client) UpdateSubmission(ctx context.Context, taskID int64, note string, keepFileIDs []string, files []File) (Task, error) {
	var out Task
	_, err := c.request(ctx, http.MethodPost, "/tasks/update-submission", func(req *resty.Request) {
		req.SetMultipartFormData(map[string]string{
			"task_id":       id(taskID),
			"note":          note,
			"keep_file_ids": strings.Join(keepFileIDs, ","),
		})
		setFiles(req, "files", files)
	}, &out)
	return out, err
}

func (c *Client) ApproveTask(ctx context.Context, taskID int64) (Task, Settlement, error) {
	var out struct {
		Task       Task       `json:"task"`
		Settlement Settlement `json:"settlement"`
	}
	_, err := c.request(ctx, http.MethodPost, "/tasks/approve/"+id(taskID), nil, &out)
	return out.Task, out.Settlement, err
}

func (c *Client) RejectTask(ctx context.Context, taskID int64, reason string) (Task, error) {
	var out Task
	_, err := c.request(ctx, http.MethodPut, "/tasks/reject/"+id(taskID), func(req *resty.Request) {
		req.SetBody(map[string]any{"reason": reason})
	}, &out)
	return out, err
}

// EndDate returns the contract's end date and whether it has passed.
func (c *Client) EndDate(ctx context.Context, contractID int64) (string, bool, error) {
	var out struct {
		EndDate string `json:"end_date"`
		IsEnded bool   `json:"is_ended"`
	}
	_, err := c.request(ctx, http.MethodGet, "/tasks/get-end-date", func(req *resty.Request) {
		req.SetQueryParam("contractId", id(contractID))
	}, &out)
	return out.EndDate, out.IsEnded, err
}

func (c *Client) DownloadTaskFile(ctx context.Context, fileID string) (File, error) {
	res, err := c.request(ctx, http.MethodGet, "/tasks/files/{fileId}", func(req *resty.Request) {
		req.SetPathParam("fileId", fileID)
	}, nil)
	if err != nil {
		return File{}, err
	}
	return download(res), nil
}

// Settlements

func (c *Client) GetSettlement(ctx context.Context, settlementID string) (Settlement, error) {
	var out Settlement
	_, err := c.request(ctx, http.MethodGet, "/settlements/{id}", func(req *resty.Request) {
		req.SetPathParam("id", settlementID)
	}, &out)
	return out, err
}

// WaitForSettlement polls until the settlement leaves processing or ctx ends.
func (c *Client) WaitForSettlement(ctx context.Context, settlementID string, every time.Duration) (Settlement, error) {
	if every <= 0 {
		every = 500 * time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		st, err := c.GetSettlement(ctx, settlementID)
		if err != nil {
			return st, err
		}
		if st.Status != "processing" {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tickets

type filePayload struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	Data        string `json:"data"`
}

func (c *Client) CreateTicket(ctx context.Context, in TicketInput) (Ticket, error) {
	body := map[string]any{
		"subject":     in.Subject,
		"description": in.Description,
		"category":    in.Category,
	}
	if in.Priority != "" {
		body["priority"] = in.Priority
	}
	if len(in.Attachments) > 0 {
		atts := make([]filePayload, 0, len(in.Attachments))
		for _, f := range in.Attachments {
			atts = append(atts, filePayload{Name: f.Name, ContentType: f.ContentType, Data: base64.StdEncoding.EncodeToString(f.Data)})
		}
		body["attachments"] = atts
	}
	var out Ticket
	_, err := c.request(ctx, http.MethodPost, "/tickets", func(req *resty.Request) { req.SetBody(body) }, &out)
	return out, err
}

func (c *Client) ListTickets(ctx context.Context, q TicketQuery) ([]Ticket, error) {
	var out []Ticket
	_, err := c.request(ctx, http.MethodGet, "/tickets", func(req *resty.Request) {
		for k, v := range map[string]string{
			"creatorId": q.CreatorID, "status": q.Status, "priority": q.Priority, "category": q.Category, "q": q.Query,
		} {
			if v != "" {
				req.SetQueryParam(k, v)
			}
		}
	}, &out)
	return out, err
}

func (c *Client) GetTicket(ctx context.Context, ticketID int64) (Ticket, error) {
	var out Ticket
	_, err := c.request(ctx, http.MethodGet, "/tickets/"+id(ticketID), nil, &out)
	return out, err
}

func (c *Client) AssignTicket(ctx context.Context, ticketID int64, assigneeID string) (Ticket, error) {
	var out Ticket
	_, err := c.request(ctx, http.MethodPut, "/tickets/"+id(ticketID)+"/assign", func(req *resty.Request) {
		req.SetBody(map[string]any{"assignee_id": assigneeID})
	}, &out)
	return out, err
}

func (c *Client) SetTicketStatus(ctx context.Context, ticketID int64, status string) (Ticket, error) {
	var out Ticket
	_, err := c.request(ctx, http.MethodPut, "/tickets/"+id(ticketID)+"/status", func(req *resty.Request) {
		req.SetBody(map[string]any{"status": status})
	}, &out)
	return out, err
}

func (c *Client) AddTicketMessage(ctx context.Context, ticketID int64, body string) (TicketMessage, error) {
	var out TicketMessage
	_, err := c.request(ctx, http.MethodPost, "/tickets/"+id(ticketID)+"/messages", func(req *resty.Request) {
		req.SetBody(map[string]any{"body": body})
	}, &out)
	return out, err
}

// TicketAttachment downloads an attachment delivered as base64 JSON.
func (c *Client) TicketAttachment(ctx context.Context, ticketID int64, attachmentID string) (File, error) {
	var out filePayload
	_, err := c.request(ctx, http.MethodGet, "/tickets/"+id(ticketID)+"/attachments/{attachmentId}", func(req *resty.Request) {
		req.SetPathParam("attachmentId", attachmentID)
	}, &out)
	if err != nil {
		return File{}, err
	}
	data, err := base64.StdEncoding.DecodeString(out.Data)
	if err != nil {
		return File{}, fmt.Errorf("decode attachment: %w", err)
	}
	return File{Name: out.Name, ContentType: out.ContentType, Data: data}, nil
}

// Company verification

func (c *Client) ListCompanies(ctx context.Context, status, query string) ([]Company, error) {
	var out []Company
	_, err := c.request(ctx, http.MethodGet, "/company", func(req *resty.Request) {
		if status != "" {
			req.SetQueryParam("status", status)
		}
		if query != "" {
			req.SetQueryParam("q", query)
		}
	}, &out)
	return out, err
}

func (c *Client) GetCompany(ctx context.Context, ownerID string) (Company, error) {
	var out Company
	_, err := c.request(ctx, http.MethodGet, "/company/{ownerId}", func(req *resty.Request) {
		req.SetPathParam("ownerId", ownerID)
	}, &out)
	return out, err
}

func (c *Client) UpsertCompany(ctx context.Context, ownerID string, in CompanyInput) (Company, error) {
	var out Company
	_, err := c.request(ctx, http.MethodPut, "/company/{ownerId}", func(req *resty.Request) {
		req.SetPathParam("ownerId", ownerID).SetBody(in)
	}, &out)
	return out, err
}

func (c *Client) UploadCompanyDocument(ctx context.Context, ownerID string, f File) (Attachment, error) {
	var out Attachment
	_, err := c.request(ctx, http.MethodPost, "/company/{ownerId}/documents", func(req *resty.Request) {
		req.SetPathParam("ownerId", ownerID)
		setFiles(req, "file", []File{f})
	}, &out)
	return out, err
}

func (c *Client) SubmitCompany(ctx context.Context, ownerID string) (Company, error) {
	var out Company
	_, err := c.request(ctx, http.MethodPost, "/company/{ownerId}/submit", func(req *resty.Request) {
		req.SetPathParam("ownerId", ownerID)
	}, &out)
	return out, err
}

// VerifyCompany approves a pending company, or rejects it with a reason.
func (c *Client) VerifyCompany(ctx context.Context, ownerID string, approve bool, reason string) (Company, error) {
	var out Company
	_, err := c.request(ctx, http.MethodPut, "/company/{ownerId}/verify", func(req *resty.Request) {
		req.SetPathParam("ownerId", ownerID).SetBody(map[string]any{"approve": approve, "reason": reason})
	}, &out)
	return out, err
}

func (c *Client) DownloadCompanyDocument(ctx context.Context, fileID string) (File, error) {
	res, err := c.request(ctx, http.MethodGet, "/company/documents/{fileId}", func(req *resty.Request) {
		req.SetPathParam("fileId", fileID)
	}, nil)
	if err != nil {
		return File{}, err
	}
	return download(res), nil
}

// Payments

func (c *Client) Transactions(ctx context.Context, actorID string, q TransactionQuery) (Transactions, error) {
	var out Transactions
	_, err := c.request(ctx, http.MethodGet, "/transactions-data/{actorId}", func(req *resty.Request) {
		req.SetPathParam("actorId", actorID)
		for k, v := range map[string]string{"kind": q.Kind, "q": q.Query, "from": q.From, "to": q.To} {
			if v != "" {
				req.SetQueryParam(k, v)
			}
		}
		if q.ContractID != 0 {
			req.SetQueryParam("contractId", id(q.ContractID))
		}
		if q.Limit > 0 {
			req.SetQueryParam("limit", strconv.Itoa(q.Limit))
		}
	}, &out)
	return out, err
}

func (c *Client) Wallet(ctx context.Context, actorID string) (Wallet, error) {
	var out Wallet
	_, err := c.request(ctx, http.MethodGet, "/wallets/{actorId}", func(req *resty.Request) {
		req.SetPathParam("actorId", actorID)
	}, &out)
	return out, err
}

func (c *Client) Deposit(ctx context.Context, actorID string, amount int64, note string) (Wallet, error) {
	var out Wallet
	_, err := c.request(ctx, http.MethodPost, "/wallets/{actorId}/deposit", func(req *resty.Request) {
		req.SetPathParam("actorId", actorID).SetBody(map[string]any{"amount": amount, "note": note})
	}, &out)
	return out, err
}

// Events

func (c *Client) Events(ctx context.Context, q EventQuery) (EventPage, error) {
	var out EventPage
	_, err := c.request(ctx, http.MethodGet, "/events", func(req *resty.Request) {
		for k, v := range map[string]string{"type": q.Type, "entityKind": q.EntityKind, "entityId": q.EntityID} {
			if v != "" {
				req.SetQueryParam(k, v)
			}
		}
		if q.ContractID != 0 {
			req.SetQueryParam("contractId", id(q.ContractID))
		}
		if q.Cursor != 0 {
			req.SetQueryParam("cursor", id(q.Cursor))
		}
		if q.Limit > 0 {
			req.SetQueryParam("limit", strconv.Itoa(q.Limit))
		}
	}, &out)
	return out, err
}
