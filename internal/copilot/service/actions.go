package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/google/uuid"

	"github.com/waffles-copilot/server/internal/copilot/model"
	"github.com/waffles-copilot/server/internal/copilot/parsers"
	"github.com/waffles-copilot/server/internal/copilot/prompts"
	"github.com/waffles-copilot/server/internal/copilot/registry"
	"github.com/waffles-copilot/server/internal/integration"
	logx "github.com/waffles-copilot/server/pkg/logger"
)

// ActionItem is one extracted action item with an assigned id.
type ActionItem struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
}

// StatusEnvelope reports a create/dispatch outcome.
type StatusEnvelope struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// DispatchResult echoes the dispatched inputs and index back for client-side
// correlation, on success and on failure alike.
type DispatchResult struct {
	Status          string            `json:"status"`
	ExtractedInputs map[string]string `json:"extracted_inputs"`
	Index           int               `json:"index"`
	Error           string            `json:"error,omitempty"`
}

// Service tags accepted by Dispatch.
const (
	ServiceJira   = "jira"
	ServiceGmail  = "gmail"
	ServiceCustom = "custom"
)

// ActionService manages the action registry, action item extraction, and
// the dispatch of confirmed external actions.
type ActionService struct {
	registry    *registry.ActionRegistry
	routerModel einomodel.BaseChatModel
	itemsPath   string
	executors   map[string]integration.Executor
}

func NewActionService(reg *registry.ActionRegistry, routerModel einomodel.BaseChatModel, itemsPath string, executors map[string]integration.Executor) *ActionService {
	return &ActionService{
		registry:    reg,
		routerModel: routerModel,
		itemsPath:   itemsPath,
		executors:   executors,
	}
}

func (s *ActionService) ListActions() []model.ActionDefinition {
	return s.registry.List()
}

// DefineAction normalizes a raw define-action form and appends the result.
func (s *ActionService) DefineAction(form model.ActionForm) (model.ActionDefinition, error) {
	def := form.Normalize()
	if _, err := s.registry.Append(def); err != nil {
		return model.ActionDefinition{}, err
	}
	return def, nil
}

// SaveAction appends an already-shaped definition verbatim.
func (s *ActionService) SaveAction(def model.ActionDefinition) (model.ActionDefinition, error) {
	if _, err := s.registry.Append(def); err != nil {
		return model.ActionDefinition{}, err
	}
	return def, nil
}

// ExtractActionItems pulls action items out of raw text. Failures degrade to
// an empty list; this boundary never propagates an error.
func (s *ActionService) ExtractActionItems(ctx context.Context, raw string) []ActionItem {
	msgs, err := prompts.RenderActionItems(ctx, raw)
	if err != nil {
		logx.Error().Err(err).Msg("render action item extraction")
		return []ActionItem{}
	}
	out, err := s.routerModel.Generate(ctx, msgs)
	if err != nil {
		logx.Error().Err(err).Msg("action item extraction failed")
		return []ActionItem{}
	}
	drafts, err := parsers.ParseActionItems(out.Content)
	if err != nil {
		logx.Warn().Err(err).Msg("unparsable action item output")
		return []ActionItem{}
	}

	items := make([]ActionItem, 0, len(drafts))
	for _, draft := range drafts {
		items = append(items, ActionItem{
			ID:          uuid.NewString(),
			Summary:     draft.Summary,
			Description: draft.Description,
		})
	}
	return items
}

// CreateActionItem extracts action items from raw text and persists them to
// the items file. Any failure yields an error status, never an exception.
func (s *ActionService) CreateActionItem(ctx context.Context, raw string) StatusEnvelope {
	items := s.ExtractActionItems(ctx, raw)
	if len(items) == 0 {
		return StatusEnvelope{Status: "error", Error: "no action items found"}
	}
	if err := s.appendItems(items); err != nil {
		logx.Error().Err(err).Msg("persist action items")
		return StatusEnvelope{Status: "error", Error: "failed to save action items"}
	}
	return StatusEnvelope{Status: "success"}
}

func (s *ActionService) appendItems(items []ActionItem) error {
	var existing []ActionItem
	if data, err := os.ReadFile(s.itemsPath); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			logx.Warn().Err(err).Str("path", s.itemsPath).Msg("malformed action items file, rewriting")
			existing = nil
		}
	}
	existing = append(existing, items...)

	data, err := json.MarshalIndent(existing, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal action items: %w", err)
	}
	return os.WriteFile(s.itemsPath, data, 0o644)
}

// Dispatch executes a confirmed action against its external service. Every
// failure path returns a result envelope echoing the inputs and index; an
// unknown service tag is an error value, not an exception.
func (s *ActionService) Dispatch(ctx context.Context, serviceTag string, inputs map[string]string, index int) DispatchResult {
	executor, ok := s.executors[serviceTag]
	if !ok {
		return DispatchResult{
			Status:          "error",
			ExtractedInputs: inputs,
			Index:           index,
			Error:           "Unknown API service",
		}
	}

	action, ok := s.findAction(serviceTag, inputs)
	if !ok {
		return DispatchResult{
			Status:          "error",
			ExtractedInputs: inputs,
			Index:           index,
			Error:           fmt.Sprintf("no registered action for service %q", serviceTag),
		}
	}

	if err := executor.Execute(ctx, action.APIEndpoint, inputs, action.APIAuth); err != nil {
		logx.Error().Err(err).Str("service", serviceTag).Str("action", action.ActionName).Msg("action dispatch failed")
		return DispatchResult{
			Status:          "error",
			ExtractedInputs: inputs,
			Index:           index,
			Error:           err.Error(),
		}
	}
	return DispatchResult{Status: "success", ExtractedInputs: inputs, Index: index}
}

// findAction locates the registered action for a service tag. Custom
// dispatch matches by action name when the payload carries one; jira and
// gmail match the first action registered for that service.
func (s *ActionService) findAction(serviceTag string, inputs map[string]string) (model.ActionDefinition, bool) {
	actions := s.registry.List()

	if serviceTag == ServiceCustom {
		if name := inputs["action_name"]; name != "" {
			for _, action := range actions {
				if strings.EqualFold(action.ActionName, name) {
					return action, true
				}
			}
		}
	}
	for _, action := range actions {
		if strings.EqualFold(action.APIService, serviceTag) {
			return action, true
		}
	}
	return model.ActionDefinition{}, false
}
