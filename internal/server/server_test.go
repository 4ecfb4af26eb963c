package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigline/internal/attach"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/logging"
	"gigline/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	URL      string
	Engine   engine.Engine
	Contract domain.Contract
	client   *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	_, err := db.EnsureWorkspace(workspace)
	require.NoError(t, err)
	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))

	e := engine.New(conn, config.Default())
	clock := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return clock }
	ctx := context.Background()
	for _, a := range []engine.AccountCreateOptions{
		{ID: "admin", Role: domain.RoleAdmin},
		{ID: "emp", Role: domain.RoleEmployer},
		{ID: "free", Role: domain.RoleFreelancer},
	} {
		_, err := e.CreateAccount(ctx, a)
		require.NoError(t, err)
	}
	_, err = e.Deposit(ctx, "emp", 200, "seed", "")
	require.NoError(t, err)
	c, err := e.CreateContract(ctx, engine.ContractCreateOptions{
		JobID: 1, EmployerID: "emp", FreelancerID: "free", HourlyRate: 20,
		StartDate: "2024-01-01", EndDate: "2024-01-31",
	})
	require.NoError(t, err)

	handler, err := New(Config{
		Engine:   e,
		BasePath: "/api",
		Auth:     AuthConfig{JWTSecret: testSecret, AllowActorHeader: true},
		Logger:   logging.Discard(),
	})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		conn.Close()
	})
	return &testServer{
		URL:      "http://" + ln.Addr().String() + "/api",
		Engine:   e,
		Contract: c,
		client:   &http.Client{},
	}
}

func (s *testServer) doJSON(t *testing.T, actor, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = bytes.NewReader(nil)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor-Id", actor)
	}
	return s.do(t, req)
}

func (s *testServer) doMultipart(t *testing.T, actor, path string, fields map[string]string, files map[string][]byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req, err := http.NewRequest(http.MethodPost, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Actor-Id", actor)
	return s.do(t, req)
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env
}

func (s *testServer) createTask(t *testing.T, hours float64) domain.Task {
	t.Helper()
	res, data := s.doJSON(t, "emp", http.MethodPost, "/tasks/create", map[string]any{
		"contract_id":            s.Contract.ID,
		"name":                   "Landing page",
		"instruction":            "Build it",
		"submission_requirement": "Zip of sources",
		"hours":                  hours,
		"due_date":               "2024-01-20",
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var task domain.Task
	require.NoError(t, json.Unmarshal(data, &task))
	return task
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	task := srv.createTask(t, 5)
	assert.Equal(t, int64(100), task.TotalPay)
	assert.Equal(t, domain.TaskPending, task.Status)

	res, data := srv.doJSON(t, "emp", http.MethodPut, "/tasks/update/"+strconv.FormatInt(task.ID, 10), map[string]any{
		"name": "Landing page", "instruction": "Build it", "submission_requirement": "Zip",
		"hours": 8, "due_date": "2024-01-20",
	})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &task))
	assert.Equal(t, int64(160), task.TotalPay)

	id := strconv.FormatInt(task.ID, 10)
	res, data = srv.doMultipart(t, "free", "/tasks/submit", map[string]string{"task_id": id, "note": "done"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))
	assert.Equal(t, "validation_failed", decodeError(t, data).Error.Code)

	res, data = srv.doMultipart(t, "free", "/tasks/submit", map[string]string{"task_id": id, "note": "done"},
		map[string][]byte{"site.txt": []byte("hello world")})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &task))
	assert.Equal(t, domain.TaskSubmitted, task.Status)
	require.Len(t, task.Files, 1)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/tasks/files/"+task.Files[0].ID, nil)
	require.NoError(t, err)
	req.Header.Set("X-Actor-Id", "emp")
	res, data = srv.do(t, req)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "hello world", string(data))
	assert.Contains(t, res.Header.Get("Content-Disposition"), "site.txt")

	res, data = srv.doJSON(t, "free", http.MethodPost, "/tasks/approve/"+id, nil)
	require.Equal(t, http.StatusForbidden, res.StatusCode, string(data))

	res, data = srv.doJSON(t, "emp", http.MethodPost, "/tasks/approve/"+id, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var approved ApproveTaskResponse
	require.NoError(t, json.Unmarshal(data, &approved))
	assert.Equal(t, domain.TaskApproved, approved.Task.Status)
	assert.Equal(t, domain.SettlementProcessing, approved.Settlement.Status)

	n, err := srv.Engine.SettlePending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, data = srv.doJSON(t, "free", http.MethodGet, "/settlements/"+approved.Settlement.ID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var st domain.Settlement
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, domain.SettlementCompleted, st.Status)

	res, data = srv.doJSON(t, "free", http.MethodGet, "/transactions-data/free", nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var txns TransactionsResponse
	require.NoError(t, json.Unmarshal(data, &txns))
	assert.Equal(t, int64(160), txns.Summary.TotalEarned)
	assert.Equal(t, int64(160), txns.Summary.Balance)

	res, data = srv.doJSON(t, "emp", http.MethodPut, "/tasks/reject/"+id, map[string]any{"reason": "late"})
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "invalid_transition", decodeError(t, data).Error.Code)
}

func TestInsufficientCreditsEnvelope(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.doJSON(t, "emp", http.MethodPost, "/tasks/create", map[string]any{
		"contract_id": srv.Contract.ID, "name": "Big job", "instruction": "i", "submission_requirement": "s",
		"hours": 11, "due_date": "2024-01-20",
	})
	require.Equal(t, http.StatusPaymentRequired, res.StatusCode, string(data))
	env := decodeError(t, data)
	assert.Equal(t, "insufficient_credits", env.Error.Code)
	assert.EqualValues(t, 220, env.Error.Details["required"])
	assert.EqualValues(t, 200, env.Error.Details["available"])

	res, data = srv.doJSON(t, "emp", http.MethodGet, "/tasks/get-task-file-data?contractId="+strconv.FormatInt(srv.Contract.ID, 10), nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.JSONEq(t, "[]", string(data))
}

func TestRejectRequiresReasonOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	task := srv.createTask(t, 2)
	id := strconv.FormatInt(task.ID, 10)
	res, data := srv.doMultipart(t, "free", "/tasks/submit", map[string]string{"task_id": id, "note": "done"},
		map[string][]byte{"a.txt": []byte("a")})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.doJSON(t, "emp", http.MethodPut, "/tasks/reject/"+id, map[string]any{"reason": "   "})
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))
	assert.Equal(t, "reason", decodeError(t, data).Error.Details["field"])

	res, data = srv.doJSON(t, "emp", http.MethodGet, "/tasks/"+id, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &task))
	assert.Equal(t, domain.TaskSubmitted, task.Status)

	res, data = srv.doJSON(t, "emp", http.MethodPut, "/tasks/reject/"+id, map[string]any{"reason": "missing sources"})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &task))
	assert.Equal(t, domain.TaskRejected, task.Status)
}

func TestCompleteContractLockedByOpenTasks(t *testing.T) {
	srv := newTestServer(t)
	srv.createTask(t, 1)
	cid := strconv.FormatInt(srv.Contract.ID, 10)

	res, data := srv.doJSON(t, "emp", http.MethodGet, "/contracts/checkstatus/"+cid, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var gate domain.ContractGate
	require.NoError(t, json.Unmarshal(data, &gate))
	assert.True(t, gate.HasIncompleteTasks)
	assert.False(t, gate.IsEnded)

	res, data = srv.doJSON(t, "emp", http.MethodPost, "/contracts/complete/"+cid, map[string]any{
		"rating": 5, "feedback": "one two three four five six seven eight nine ten",
	})
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	assert.Equal(t, "contract_locked", decodeError(t, data).Error.Code)

	res, data = srv.doJSON(t, "emp", http.MethodGet, "/tasks/get-end-date?contractId="+cid, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var end EndDateResponse
	require.NoError(t, json.Unmarshal(data, &end))
	assert.Equal(t, "2024-01-31", end.EndDate)
}

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.doJSON(t, "", http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", decodeError(t, data).Error.Code)

	res, _ = srv.doJSON(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	token, err := SignToken(testSecret, "free", time.Hour)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	res, data = srv.do(t, req)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var me domain.Account
	require.NoError(t, json.Unmarshal(data, &me))
	assert.Equal(t, domain.RoleFreelancer, me.Role)

	bad, err := SignToken("other-secret", "free", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bad)
	res, _ = srv.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, data = srv.doJSON(t, "ghost", http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode, string(data))
}

func TestTicketAttachmentRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	res, data := srv.doJSON(t, "free", http.MethodPost, "/tickets", map[string]any{
		"subject": "Cannot upload", "description": "The submit button fails", "category": "technical",
		"attachments": []map[string]any{{"name": "log.txt", "data": attach.DataURL("text/plain", []byte("stack trace"))}},
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var tk domain.Ticket
	require.NoError(t, json.Unmarshal(data, &tk))
	assert.Equal(t, "medium", tk.Priority)
	require.Len(t, tk.Attachments, 1)

	res, data = srv.doJSON(t, "free", http.MethodGet,
		"/tickets/"+strconv.FormatInt(tk.ID, 10)+"/attachments/"+tk.Attachments[0].ID, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var file FileResponse
	require.NoError(t, json.Unmarshal(data, &file))
	raw, _, err := attach.DecodeBase64(file.Data)
	require.NoError(t, err)
	assert.Equal(t, "stack trace", string(raw))
	assert.Equal(t, "text/plain", file.ContentType)

	res, data = srv.doJSON(t, "emp", http.MethodGet, "/tickets/"+strconv.FormatInt(tk.ID, 10), nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode, string(data))
}

func TestWebhookDispatcherDelivers(t *testing.T) {
	var (
		mu       sync.Mutex
		received []webhookEvent
		calls    int
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		assert.Equal(t, "s3", r.Header.Get("X-Gigline-Secret"))
		received = append(received, evt)
	}))
	defer hook.Close()

	srv := newTestServer(t)
	e := srv.Engine
	cfg := *e.Config
	cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{"task.*"}, Secret: "s3"}}
	e.Config = &cfg
	d := newWebhookDispatcher(e, logging.Discard())
	require.NotNil(t, d)
	d.delay = time.Millisecond

	ctx := context.Background()
	d.dispatchAll(ctx)
	srv.createTask(t, 1)
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "task.created", received[0].Type)
	assert.Equal(t, 2, calls)
}

func TestWebhookDispatcherSkipsRejectedEvent(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts []int64
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, evt.ID)
		if len(attempts) == 1 {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer hook.Close()

	srv := newTestServer(t)
	e := srv.Engine
	cfg := *e.Config
	cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{"task.created"}}}
	e.Config = &cfg
	d := newWebhookDispatcher(e, logging.Discard())
	require.NotNil(t, d)
	d.delay = time.Millisecond

	ctx := context.Background()
	d.dispatchAll(ctx)
	srv.createTask(t, 1)
	srv.createTask(t, 2)
	d.dispatchAll(ctx)
	d.dispatchAll(ctx)

	latest, err := e.Repo.LatestEventID(ctx, e.DB)
	require.NoError(t, err)
	assert.Equal(t, latest, d.cursorFor(ctx, 0))

	mu.Lock()
	defer mu.Unlock()
	// one attempt for the rejected event, one for the next, none repeated
	require.Len(t, attempts, 2)
	assert.Less(t, attempts[0], attempts[1])
}

func TestOversizeTaskFileIs413(t *testing.T) {
	srv := newTestServer(t)
	task := srv.createTask(t, 1)
	id := strconv.FormatInt(task.ID, 10)

	big := bytes.Repeat([]byte("x"), 16<<20)
	res, data := srv.doMultipart(t, "free", "/tasks/submit", map[string]string{"task_id": id, "note": "done"},
		map[string][]byte{"big.bin": big})
	require.Equal(t, http.StatusRequestEntityTooLarge, res.StatusCode, string(data))
	env := decodeError(t, data)
	assert.EqualValues(t, 15<<20, env.Error.Details["limit"])

	// a 6 MiB image is within the task file ceiling
	shot := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 6<<20)...)
	res, data = srv.doMultipart(t, "free", "/tasks/submit", map[string]string{"task_id": id, "note": "done"},
		map[string][]byte{"shot.png": shot})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
}

func TestTaskHoursBounds(t *testing.T) {
	srv := newTestServer(t)
	for _, hours := range []float64{1e300, 10001, 0.5} {
		res, data := srv.doJSON(t, "emp", http.MethodPost, "/tasks/create", map[string]any{
			"contract_id": srv.Contract.ID, "name": "n", "instruction": "i", "submission_requirement": "s",
			"hours": hours, "due_date": "2024-01-20",
		})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, string(data))
	}
	res, data := srv.doJSON(t, "emp", http.MethodGet, "/tasks/get-task-file-data?contractId="+strconv.FormatInt(srv.Contract.ID, 10), nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.JSONEq(t, "[]", string(data))
}

func TestEventFilter(t *testing.T) {
	all := newEventFilter(nil)
	assert.True(t, all.match("anything"))

	f := newEventFilter([]string{"payment.released", "task.*", " "})
	assert.True(t, f.match("payment.released"))
	assert.True(t, f.match("task.approved"))
	assert.False(t, f.match("payment.failed"))
	assert.False(t, f.match("contract.created"))
}
