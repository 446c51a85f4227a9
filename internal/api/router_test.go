package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waffles-copilot/server/internal/copilot/agent"
	"github.com/waffles-copilot/server/internal/copilot/model"
	"github.com/waffles-copilot/server/internal/copilot/registry"
	"github.com/waffles-copilot/server/internal/copilot/responder"
	"github.com/waffles-copilot/server/internal/copilot/service"
	"github.com/waffles-copilot/server/internal/copilot/session"
	"github.com/waffles-copilot/server/internal/copilot/tabular"
	"github.com/waffles-copilot/server/internal/knowledge"
)

type fakeChatModel struct {
	replies []string
}

func (f *fakeChatModel) Generate(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if len(f.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return schema.AssistantMessage(reply, nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

type noopEngine struct{}

func (noopEngine) Query(context.Context, []string, string) (model.Answer, error) {
	return model.Answer{}, errors.New("not used")
}

var _ tabular.Engine = noopEngine{}

func newTestServer(t *testing.T, routerReplies, responseReplies []string) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	routerModel := &fakeChatModel{replies: routerReplies}
	responseModel := &fakeChatModel{replies: responseReplies}

	rsp := responder.New(routerModel, responseModel, knowledge.None{}, model.AssistantConfig{Name: "Waffles Copilot", Business: "CRM"})
	actionReg := registry.NewActionRegistry(filepath.Join(dir, "actions.json"))
	uploadDir := filepath.Join(dir, "csv_db")
	datasetReg := registry.NewDatasetRegistry(filepath.Join(dir, "datasets.json"), uploadDir)
	dbAgent := agent.NewDBAgent(routerModel, rsp, datasetReg, noopEngine{})
	actionAgent := agent.NewActionAgent(routerModel, rsp, actionReg, dbAgent)

	handlers := NewHandlers(
		service.NewConversationService(session.NewMemoryStore(), rsp, actionAgent),
		service.NewCopilotService(actionAgent),
		service.NewActionService(actionReg, routerModel, filepath.Join(dir, "action_items.json"), nil),
		service.NewDatasetService(datasetReg, uploadDir),
	)

	server := httptest.NewServer(NewRouter(handlers))
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string, dst any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	return resp
}

func postJSON(t *testing.T, url string, body any, dst any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, nil, nil)

	var payload map[string]string
	resp := getJSON(t, server.URL+"/health", &payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", payload["status"])
}

func TestActionsRoundTripOverHTTP(t *testing.T) {
	server := newTestServer(t, nil, nil)

	var created model.ActionDefinition
	resp := postJSON(t, server.URL+"/api/actions", model.ActionForm{
		ActionType:  "API",
		ActionName:  "create ticket",
		Description: "file a ticket",
		APIService:  "jira",
		QueryInputs: []model.FormValue{{Value: "title"}},
	}, &created)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.ActionAPICall, created.ActionType)

	var list []model.ActionDefinition
	resp = getJSON(t, server.URL+"/api/actions", &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, "create ticket", list[0].ActionName)
}

func TestCopilotQueryMissingQuery(t *testing.T) {
	server := newTestServer(t, nil, nil)

	var payload map[string]string
	resp := postJSON(t, server.URL+"/api/copilot/query", map[string]string{"session_id": "s1"}, &payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Missing 'query' in request", payload["error"])
}

func TestDispatchUnknownServiceOverHTTP(t *testing.T) {
	server := newTestServer(t, nil, nil)

	var result service.DispatchResult
	resp := postJSON(t, server.URL+"/api/dispatch", map[string]any{
		"api_service":      "slack",
		"extracted_inputs": map[string]string{"title": "x"},
		"index":            2,
	}, &result)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "error", result.Status)
	assert.Equal(t, "Unknown API service", result.Error)
	assert.Equal(t, 2, result.Index)
}

func TestDatasetUploadRejectsNonCSV(t *testing.T) {
	server := newTestServer(t, nil, nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "report.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("database_name", "report"))
	require.NoError(t, writer.Close())

	resp, err := http.Post(server.URL+"/api/datasets", writer.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDatasetUploadAndList(t *testing.T) {
	server := newTestServer(t, nil, nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "customers.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("id,name\n1,Ada\n"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("database_name", "customers"))
	require.NoError(t, writer.WriteField("database_description", "customer master"))
	require.NoError(t, writer.Close())

	resp, err := http.Post(server.URL+"/api/datasets", writer.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []model.DatasetDefinition
	getJSON(t, server.URL+"/api/datasets", &list)
	require.Len(t, list, 1)
	assert.Equal(t, "id,name", list[0].Columns)
}

func TestSubmitTurnSkipOverHTTP(t *testing.T) {
	server := newTestServer(t, []string{"no"}, nil)

	var result service.TurnResponse
	resp := postJSON(t, server.URL+"/api/turns", map[string]string{
		"session_id": "s1",
		"message":    "nice weather",
	}, &result)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, result.Skip)
}

func TestSessionMessagesOverHTTP(t *testing.T) {
	server := newTestServer(t, []string{"no"}, nil)

	var turn service.TurnResponse
	postJSON(t, server.URL+"/api/turns", map[string]string{"session_id": "s9", "message": "hello"}, &turn)

	var payload struct {
		SessionID string   `json:"session_id"`
		Messages  []string `json:"messages"`
	}
	resp := getJSON(t, server.URL+"/api/sessions/s9/messages", &payload)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "s9", payload.SessionID)
	assert.Equal(t, []string{"hello"}, payload.Messages)
}
