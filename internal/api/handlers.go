// Package api is the HTTP shell: request decoding, response envelopes, and
// routing. All behavior lives in the services it delegates to.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/waffles-copilot/server/internal/copilot/model"
	"github.com/waffles-copilot/server/internal/copilot/service"
	errx "github.com/waffles-copilot/server/internal/core/error"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

// 10MB cap on dataset uploads.
const maxUploadBytes = 10 << 20

type Handlers struct {
	conversation *service.ConversationService
	copilot      *service.CopilotService
	actions      *service.ActionService
	datasets     *service.DatasetService
}

func NewHandlers(conversation *service.ConversationService, copilot *service.CopilotService, actions *service.ActionService, datasets *service.DatasetService) *Handlers {
	return &Handlers{
		conversation: conversation,
		copilot:      copilot,
		actions:      actions,
		datasets:     datasets,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logx.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	message := errx.SystemErrorMessage
	var appErr *errx.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	writeJSON(w, errx.StatusOf(err), service.ErrorEnvelope{Error: message})
}

func decode(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func (h *Handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "waffles-copilot"})
}

func (h *Handlers) listActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.actions.ListActions())
}

func (h *Handlers) defineAction(w http.ResponseWriter, r *http.Request) {
	var form model.ActionForm
	if err := decode(r, &form); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorEnvelope{Error: errx.BadRequestMessage})
		return
	}
	def, err := h.actions.DefineAction(form)
	if err != nil {
		logx.Error().Err(err).Msg("define action")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *Handlers) saveAction(w http.ResponseWriter, r *http.Request) {
	var def model.ActionDefinition
	if err := decode(r, &def); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorEnvelope{Error: errx.BadRequestMessage})
		return
	}
	saved, err := h.actions.SaveAction(def)
	if err != nil {
		logx.Error().Err(err).Msg("save action")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handlers) listDatasets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.datasets.ListDatasets())
}

func (h *Handlers) registerDataset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorEnvelope{Error: "invalid multipart upload"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorEnvelope{Error: "missing 'file' in upload"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.datasets.RegisterDataset(
		header.Filename,
		content,
		r.FormValue("database_name"),
		r.FormValue("database_description"),
	)
	if err != nil {
		logx.Warn().Err(err).Str("file", header.Filename).Msg("dataset upload rejected")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handlers) sessionMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.conversation.SessionMessages(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "messages": messages})
}

type turnRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (h *Handlers) submitTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorEnvelope{Error: errx.BadRequestMessage})
		return
	}
	resp, err := h.conversation.ProcessTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		logx.Error().Err(err).Str("session", req.SessionID).Msg("process turn")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type selectQuestionRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Idx       int    `json:"idx"`
	Page      int    `json:"page"`
}

func (h *Handlers) selectQuestion(w http.ResponseWriter, r *http.Request) {
	var req selectQuestionRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorEnvelope{Error: errx.BadRequestMessage})
		return
	}
	resp, err := h.conversation.SelectFollowUp(r.Context(), req.SessionID, req.Question, req.Idx, req.Page)
	if err != nil {
		logx.Error().Err(err).Str("session", req.SessionID).Msg("select follow-up")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type elaborateRequest struct {
	Text string `json:"text"`
}

func (h *Handlers) elaborate(w http.ResponseWriter, r *http.Request) {
	var req elaborateRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorEnvelope{Error: errx.BadRequestMessage})
		return
	}
	answer, err := h.conversation.Elaborate(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": answer})
}

type copilotQueryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

func (h *Handlers) copilotQuery(w http.ResponseWriter, r *http.Request) {
	var req copilotQueryRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorEnvelope{Error: errx.BadRequestMessage})
		return
	}
	// error envelopes carry 200 on purpose; clients branch on the payload
	writeJSON(w, http.StatusOK, h.copilot.RunQuery(r.Context(), req.SessionID, req.Query))
}

type actionItemRequest struct {
	Data string `json:"data"`
}

func (h *Handlers) extractActionItems(w http.ResponseWriter, r *http.Request) {
	var req actionItemRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorEnvelope{Error: errx.BadRequestMessage})
		return
	}
	writeJSON(w, http.StatusOK, h.actions.ExtractActionItems(r.Context(), req.Data))
}

func (h *Handlers) createActionItem(w http.ResponseWriter, r *http.Request) {
	var req actionItemRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorEnvelope{Error: errx.BadRequestMessage})
		return
	}
	writeJSON(w, http.StatusOK, h.actions.CreateActionItem(r.Context(), req.Data))
}

type dispatchRequest struct {
	APIService      string            `json:"api_service"`
	ExtractedInputs map[string]string `json:"extracted_inputs"`
	Index           int               `json:"index"`
}

func (h *Handlers) dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorEnvelope{Error: errx.BadRequestMessage})
		return
	}
	writeJSON(w, http.StatusOK, h.actions.Dispatch(r.Context(), req.APIService, req.ExtractedInputs, req.Index))
}
