package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"souschef/model"
)

// RecipeToolName is the single human-in-the-loop tool offered to the model.
// It has no server-side executor: the call waits for the user's decision.
const RecipeToolName = "promptUserWithRecipeUpdate"

const recipeToolDescription = `Prompt the user to decide whether to save a recipe. Use this tool when:
1. You have suggested a complete recipe and want to offer to save it
2. The user has asked you to save, create, or update a recipe
3. You have refined or modified a recipe based on user feedback

The tool will show the user options to:
- Create a new recipe
- Update an existing active recipe in this chat
- Ignore and get other suggestions

Wait for the user's response before proceeding.`

// RecipeToolParameters is the JSON schema of the tool input.
func RecipeToolParameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "The title of the recipe",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The full recipe content in markdown format",
			},
		},
		"required":             []string{"title", "content"},
		"additionalProperties": false,
	}
}

// RecipeProposal is the tool input: the recipe the assistant offers to save.
type RecipeProposal struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (p RecipeProposal) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return NewValidationError("input.title", "Recipe title is required")
	}
	if strings.TrimSpace(p.Content) == "" {
		return NewValidationError("input.content", "Recipe content is required")
	}
	return nil
}

func ParseProposal(raw json.RawMessage) (RecipeProposal, error) {
	var p RecipeProposal
	if len(raw) == 0 {
		return p, NewValidationError("input", "Could not find recipe data")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, NewValidationError("input", "Could not find recipe data")
	}
	return p, p.Validate()
}

type DecisionAction string

const (
	ActionCreate DecisionAction = "create"
	ActionUpdate DecisionAction = "update"
	ActionIgnore DecisionAction = "ignore"
)

// Decision is the tool output: what the user chose to do with a proposal.
type Decision struct {
	Action   DecisionAction `json:"action"`
	RecipeID string         `json:"recipeId,omitempty"`
}

// Validate requires recipeId for update and rejects it otherwise.
func (d Decision) Validate() error {
	switch d.Action {
	case ActionUpdate:
		if strings.TrimSpace(d.RecipeID) == "" {
			return NewValidationError("output.recipeId", "Recipe ID is required to update a recipe")
		}
	case ActionCreate, ActionIgnore:
		if d.RecipeID != "" {
			return NewValidationError("output.recipeId", "Recipe ID is only allowed when updating a recipe")
		}
	default:
		return NewValidationError("output.action", "Action must be one of create, update or ignore")
	}
	return nil
}

func ParseDecision(raw json.RawMessage) (Decision, error) {
	var d Decision
	if len(raw) == 0 {
		return d, NewValidationError("output", "Tool output is required")
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, NewValidationError("output", "Tool output is not a valid decision")
	}
	return d, d.Validate()
}

// DecisionOutcome reports what a decision changed.
type DecisionOutcome struct {
	Decision     Decision                `json:"decision"`
	Recipe       *model.Recipe           `json:"recipe,omitempty"`
	ActiveRecipe *model.ChatActiveRecipe `json:"activeRecipe,omitempty"`
	// Replayed is true when the same decision had already been recorded.
	Replayed bool `json:"replayed"`
}

type ToolService struct {
	DB *gorm.DB
}

// RecordOutput validates a decision and records it on the tool call without
// applying any side effect.
func (s *ToolService) RecordOutput(ctx context.Context, userID, toolCallID string, output json.RawMessage) error {
	if _, err := ParseDecision(output); err != nil {
		return err
	}
	return recordToolDecision(s.DB.WithContext(ctx), toolCallID, userID, output)
}

// Decide applies a decision and records it in one transaction: create adds
// a recipe and activates it in the proposal's chat, update overwrites an
// owned recipe, ignore only records. A call already decided the same way is
// a no-op; a different decision is rejected with ErrDecisionConflict.
func (s *ToolService) Decide(ctx context.Context, userID, toolCallID string, d Decision) (*DecisionOutcome, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	outcome := &DecisionOutcome{Decision: d}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loc, err := RequireToolCall(tx, userID, toolCallID)
		if err != nil {
			return err
		}
		row, err := model.FindToolInvocationByID(tx, loc.PartID)
		if err != nil {
			return notFoundOr(err, "failed to load tool call")
		}
		call := decodeToolInvocation(row)
		if call.ToolName != RecipeToolName {
			return NewValidationError("toolCallId", "Tool call does not propose a recipe")
		}

		if call.Decided() {
			previous, err := ParseDecision(call.Output)
			if err == nil && previous == d {
				outcome.Replayed = true
				return nil
			}
			return ErrDecisionConflict
		}

		proposal, err := ParseProposal(call.Input)
		if err != nil {
			return err
		}

		chatID := loc.ChatID
		switch d.Action {
		case ActionCreate:
			recipe := &model.Recipe{UserID: userID, Title: proposal.Title, Content: proposal.Content}
			if err := model.CreateRecipe(tx, recipe); err != nil {
				return err
			}
			if err := model.CreateRecipeSnapshot(tx, &model.RecipeSnapshot{
				RecipeID: recipe.ID, ChatID: &chatID, Content: recipe.Content,
			}); err != nil {
				return err
			}
			link, err := model.AddActiveRecipe(tx, chatID, recipe.ID)
			if err != nil {
				return err
			}
			outcome.Recipe = recipe
			outcome.ActiveRecipe = link
		case ActionUpdate:
			if err := RequireRecipe(tx, userID, d.RecipeID); err != nil {
				return err
			}
			if _, err := model.UpdateRecipe(tx, d.RecipeID, userID, proposal.Title, proposal.Content); err != nil {
				return err
			}
			if err := model.CreateRecipeSnapshot(tx, &model.RecipeSnapshot{
				RecipeID: d.RecipeID, ChatID: &chatID, Content: proposal.Content,
			}); err != nil {
				return err
			}
			recipe, err := model.FindRecipeByIDAndUserID(tx, d.RecipeID, userID)
			if err != nil {
				return notFoundOr(err, "failed to reload recipe")
			}
			outcome.Recipe = recipe
		case ActionIgnore:
		}

		output, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to encode decision: %w", err)
		}
		return recordToolResult(tx, loc.PartID, output)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply tool decision: %w", err)
	}
	return outcome, nil
}
