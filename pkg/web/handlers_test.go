package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/taskflow/pkg/engine"
	"github.com/dukex/taskflow/pkg/log"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence/memory"
	"github.com/dukex/taskflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoiceYAML = `
key: invoice
name: Invoice approval
nodes:
  - {id: start, type: startEvent}
  - {id: approve, type: userTask, name: Approve invoice, candidateGroups: accounting}
  - {id: end, type: endEvent}
transitions:
  - {from: start, to: approve}
  - {from: approve, to: end}
`

func setupTestApp(t *testing.T) (*fiber.App, *engine.Engine) {
	t.Helper()

	e := engine.New(log.Discard(), memory.NewPersistence())
	require.NoError(t, e.Load(context.Background()))

	handlers := web.NewAPIHandlers(log.Discard(), e, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	handlers.Register(app)

	return app, e
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, content
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()

	var value T
	require.NoError(t, json.Unmarshal(body, &value))

	return value
}

func deployInvoice(t *testing.T, app *fiber.App) models.Deployment {
	t.Helper()

	resp, body := doJSON(t, app, http.MethodPost, "/deployments", web.CreateDeploymentRequest{
		Name:      "invoice",
		Resources: []web.ResourceRequest{{Name: "invoice.yaml", Content: invoiceYAML}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	return decode[models.Deployment](t, body)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode[map[string]any](t, body)["status"])
}

func TestCreateDeployment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		request        any
		expectedStatus int
		expectedType   string
	}{
		{
			name: "valid resource",
			request: web.CreateDeploymentRequest{
				Name:      "invoice",
				Resources: []web.ResourceRequest{{Name: "invoice.yaml", Content: invoiceYAML}},
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing resources",
			request:        web.CreateDeploymentRequest{Name: "empty"},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name: "definition without start event",
			request: web.CreateDeploymentRequest{
				Name:      "broken",
				Resources: []web.ResourceRequest{{Name: "broken.yaml", Content: "key: broken\nnodes:\n  - {id: end, type: endEvent}\n"}},
			},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "invalid_definition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			resp, body := doJSON(t, app, http.MethodPost, "/deployments", tt.request)
			require.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, decode[map[string]any](t, body)["type"])
			}
		})
	}
}

func TestCreateDeployment_Multipart(t *testing.T) {
	t.Parallel()

	app, e := setupTestApp(t)

	var form bytes.Buffer

	writer := multipart.NewWriter(&form)
	require.NoError(t, writer.WriteField(web.FormDeploymentName, "uploaded"))

	part, err := writer.CreateFormFile("invoice", "invoice.yaml")
	require.NoError(t, err)

	_, err = part.Write([]byte(invoiceYAML))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/deployments", &form)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	deployments := e.Catalog().Deployments()
	require.Len(t, deployments, 1)
	assert.Equal(t, "uploaded", deployments[0].Name)
	assert.Len(t, deployments[0].DefinitionIDs, 1)
}

func TestProcessLifecycle(t *testing.T) {
	t.Parallel()

	app, e := setupTestApp(t)
	ctx := context.Background()

	_, err := e.Identity().SaveGroup(ctx, models.Group{ID: "accounting"})
	require.NoError(t, err)
	_, err = e.Identity().SaveUser(ctx, models.User{ID: "fozzie"}, "")
	require.NoError(t, err)
	require.NoError(t, e.Identity().AddUserToGroup(ctx, "fozzie", "accounting"))

	deployInvoice(t, app)

	resp, body := doJSON(t, app, http.MethodPost, "/process-definitions/key/invoice/start", web.StartInstanceRequest{
		Variables: map[string]any{"amount": 250},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	instance := decode[models.ProcessInstance](t, body)
	assert.Equal(t, models.InstanceStatusActive, instance.Status)
	require.Len(t, instance.ActiveTaskIDs, 1)

	resp, body = doJSON(t, app, http.MethodGet, "/tasks?candidate_user=fozzie", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tasks := decode[[]models.Task](t, body)
	require.Len(t, tasks, 1)
	taskID := tasks[0].ID

	resp, body = doJSON(t, app, http.MethodPost, "/tasks/"+taskID+"/claim", web.ClaimTaskRequest{UserID: "gonzo"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodPost, "/tasks/"+taskID+"/claim", web.ClaimTaskRequest{UserID: "fozzie"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "fozzie", decode[models.Task](t, body).Assignee)

	resp, body = doJSON(t, app, http.MethodPost, "/tasks/"+taskID+"/claim", web.ClaimTaskRequest{UserID: "kermit"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_assigned", decode[map[string]any](t, body)["type"])

	resp, body = doJSON(t, app, http.MethodGet, "/tasks/"+taskID+"/identity-links", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.IdentityLink](t, body), 2)

	resp, body = doJSON(t, app, http.MethodPost, "/tasks/"+taskID+"/complete", web.CompleteTaskRequest{
		Variables: map[string]any{"approved": true},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, models.InstanceStatusCompleted, decode[models.ProcessInstance](t, body).Status)

	resp, _ = doJSON(t, app, http.MethodGet, "/tasks/"+taskID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodGet, "/variables/"+instance.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	vars := decode[web.VariablesResponse](t, body)
	assert.Equal(t, map[string]any{"amount": float64(250), "approved": true}, vars.Variables)

	resp, body = doJSON(t, app, http.MethodGet, "/process-instances/"+instance.ID+"/variable-history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.HistoricVariableUpdate](t, body), 2)
}

func TestTaskCandidates(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	deployInvoice(t, app)

	resp, body := doJSON(t, app, http.MethodPost, "/process-definitions/key/invoice/start", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	taskID := decode[models.ProcessInstance](t, body).ActiveTaskIDs[0]

	resp, _ = doJSON(t, app, http.MethodPost, "/tasks/"+taskID+"/candidates", web.CandidateRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, "/tasks/"+taskID+"/candidates", web.CandidateRequest{UserID: "kermit"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	task := decode[models.Task](t, body)
	assert.True(t, task.HasCandidateUser("kermit"))

	resp, body = doJSON(t, app, http.MethodDelete, "/tasks/"+taskID+"/candidates?group_id=accounting", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	task = decode[models.Task](t, body)
	assert.False(t, task.HasCandidateGroup("accounting"))

	resp, body = doJSON(t, app, http.MethodPut, "/tasks/"+taskID+"/assignee", web.SetAssigneeRequest{UserID: "piggy"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "piggy", decode[models.Task](t, body).Assignee)

	resp, body = doJSON(t, app, http.MethodPost, "/tasks/"+taskID+"/unclaim", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Empty(t, decode[models.Task](t, body).Assignee)
}

func TestTaskVariables(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	deployInvoice(t, app)

	resp, body := doJSON(t, app, http.MethodPost, "/process-definitions/key/invoice/start", web.StartInstanceRequest{
		Variables: map[string]any{"amount": 100},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	taskID := decode[models.ProcessInstance](t, body).ActiveTaskIDs[0]

	resp, body = doJSON(t, app, http.MethodPut, "/variables/"+taskID, web.SetVariablesRequest{
		Variables: map[string]any{"comment": "looks fine"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodGet, "/variables/"+taskID+"?local=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"comment": "looks fine"}, decode[web.VariablesResponse](t, body).Variables)

	resp, body = doJSON(t, app, http.MethodGet, "/variables/"+taskID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"amount": float64(100), "comment": "looks fine"}, decode[web.VariablesResponse](t, body).Variables)

	resp, _ = doJSON(t, app, http.MethodGet, "/variables/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDefinitionSuspension(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	deployment := deployInvoice(t, app)
	definitionID := deployment.DefinitionIDs[0]

	resp, body := doJSON(t, app, http.MethodPost, "/process-definitions/"+definitionID+"/suspend", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, decode[models.ProcessDefinition](t, body).Suspended)

	resp, body = doJSON(t, app, http.MethodPost, "/process-definitions/"+definitionID+"/start", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "definition_suspended", decode[map[string]any](t, body)["type"])

	resp, _ = doJSON(t, app, http.MethodPost, "/process-definitions/"+definitionID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, app, http.MethodPost, "/process-definitions/"+definitionID+"/start", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, http.MethodGet, "/process-definitions?key=invoice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.ProcessDefinition](t, body), 1)
}

func TestTerminateProcessInstance(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)
	deployInvoice(t, app)

	resp, body := doJSON(t, app, http.MethodPost, "/process-definitions/key/invoice/start", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	instance := decode[models.ProcessInstance](t, body)

	resp, body = doJSON(t, app, http.MethodPost, "/process-instances/"+instance.ID+"/terminate",
		web.TerminateInstanceRequest{Reason: "duplicate"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	terminated := decode[models.ProcessInstance](t, body)
	assert.Equal(t, models.InstanceStatusTerminated, terminated.Status)
	assert.Equal(t, "duplicate", terminated.EndReason)

	resp, body = doJSON(t, app, http.MethodGet, "/tasks?process_instance_id="+instance.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]models.Task](t, body))

	resp, _ = doJSON(t, app, http.MethodPost, "/process-instances/missing/terminate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

const guardedYAML = `
key: guarded
nodes:
  - {id: start, type: startEvent}
  - {id: route, type: exclusiveGateway}
  - {id: big, type: userTask, assignee: "${owner}"}
  - {id: end, type: endEvent}
transitions:
  - {from: start, to: route}
  - {from: route, to: big, condition: "${amount > 1000}"}
  - {from: big, to: end}
`

func TestStartProcessInstance_ExpressionFailures(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/deployments", web.CreateDeploymentRequest{
		Name:      "guarded",
		Resources: []web.ResourceRequest{{Name: "guarded.yaml", Content: guardedYAML}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	tests := []struct {
		name           string
		variables      map[string]any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "missing guard variable",
			variables:      map[string]any{},
			expectedStatus: http.StatusConflict,
			expectedType:   "no_applicable_path",
		},
		{
			name:           "missing assignee variable",
			variables:      map[string]any{"amount": 5000},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "all variables present",
			variables:      map[string]any{"amount": 5000, "owner": "kermit"},
			expectedStatus: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, app, http.MethodPost, "/process-definitions/key/guarded/start",
				web.StartInstanceRequest{Variables: tt.variables})
			require.Equal(t, tt.expectedStatus, resp.StatusCode, string(body))

			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, decode[map[string]any](t, body)["type"])
			}
		})
	}
}
