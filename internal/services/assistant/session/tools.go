package session

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	apperrors "github.com/vmitra/vmitra/internal/platform/errors"
	"github.com/vmitra/vmitra/internal/services/assistant/model"
	businessapp "github.com/vmitra/vmitra/internal/services/business/app"
	"github.com/vmitra/vmitra/internal/services/business/inventory"
	"github.com/vmitra/vmitra/internal/services/business/money"
	"github.com/vmitra/vmitra/internal/services/business/sale"
	"go.uber.org/zap"
)

const (
	// ToolRecordSale bills items named by the shopkeeper.
	ToolRecordSale = "record_sale"
	// ToolRestock adds arriving stock.
	ToolRestock = "update_inventory_stock"

	toolAck = "Theek hai"
)

func itemsSchema() *model.Schema {
	return &model.Schema{
		Type: model.TypeArray,
		Items: &model.Schema{
			Type: model.TypeObject,
			Properties: map[string]*model.Schema{
				"name":     {Type: model.TypeString},
				"quantity": {Type: model.TypeNumber},
			},
			Required: []string{"name", "quantity"},
		},
	}
}

// Tools returns the function declarations offered to the model.
func Tools() []model.Tool {
	return []model.Tool{
		{
			Name:        ToolRecordSale,
			Description: "Record a business sale. Use this when the user mentions selling items.",
			Parameters: &model.Schema{
				Type:       model.TypeObject,
				Properties: map[string]*model.Schema{"items": itemsSchema()},
				Required:   []string{"items"},
			},
		},
		{
			Name:        ToolRestock,
			Description: "Update stock levels for restocking or new arrivals.",
			Parameters: &model.Schema{
				Type:       model.TypeObject,
				Properties: map[string]*model.Schema{"items": itemsSchema()},
				Required:   []string{"items"},
			},
		},
	}
}

// ToolOutcome reports one executed tool call.
type ToolOutcome struct {
	Name      string      `json:"name"`
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Amount    money.Money `json:"amount,omitempty"`
	Unmatched []string    `json:"unmatched,omitempty"`
}

// SuccessMessage is the banner shown after a successful tool.
func (o ToolOutcome) SuccessMessage() string {
	if !o.Success {
		return ""
	}
	switch o.Name {
	case ToolRecordSale:
		return "Bill Save ho gaya: " + o.Amount.String()
	case ToolRestock:
		return inventory.MessageRestocked
	}
	return ""
}

type toolItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

type toolArgs struct {
	Items []toolItem `json:"items"`
}

func parseArgs(args map[string]any) (toolArgs, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return toolArgs{}, fmt.Errorf("encode tool args: %w", err)
	}
	var parsed toolArgs
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return toolArgs{}, apperrors.Wrap(apperrors.CodeInvalidRequest, "tool arguments are malformed", err)
	}
	if len(parsed.Items) == 0 {
		return toolArgs{}, apperrors.New(apperrors.CodeInvalidRequest, "tool call has no items")
	}
	return parsed, nil
}

func quantity(value float64) int {
	return int(math.Round(value))
}

// execute runs call against the ledger and builds the model-facing reply.
func (r *Registry) execute(ctx context.Context, call model.FunctionCall) (ToolOutcome, model.FunctionResponse) {
	outcome := ToolOutcome{Name: call.Name}
	args, err := parseArgs(call.Args)
	if err == nil {
		switch call.Name {
		case ToolRecordSale:
			requests := make([]sale.Request, 0, len(args.Items))
			for _, item := range args.Items {
				requests = append(requests, sale.Request{Name: strings.TrimSpace(item.Name), Quantity: quantity(item.Quantity)})
			}
			var result businessapp.SaleResult
			result, err = r.ledger.RecordSale(ctx, requests, "")
			if err == nil {
				outcome.Success = result.Success
				outcome.Message = result.Message
				outcome.Amount = result.Amount
				outcome.Unmatched = result.Unmatched
			}
		case ToolRestock:
			requests := make([]inventory.RestockRequest, 0, len(args.Items))
			for _, item := range args.Items {
				requests = append(requests, inventory.RestockRequest{Name: strings.TrimSpace(item.Name), Quantity: quantity(item.Quantity)})
			}
			var result businessapp.RestockResult
			result, err = r.ledger.Restock(ctx, requests)
			if err == nil {
				outcome.Success = result.Success
				outcome.Message = result.Message
				outcome.Unmatched = result.Unmatched
			}
		default:
			err = apperrors.New(apperrors.CodeInvalidRequest, "unknown tool "+call.Name)
		}
	}
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeUnknown {
			r.logger.Error("assistant tool failed", zap.String("tool", call.Name), zap.Error(err))
		}
		outcome.Success = false
		outcome.Message = apperrors.MessageOf(err)
	}

	response := map[string]any{
		"result":  toolAck,
		"success": outcome.Success,
		"message": outcome.Message,
	}
	if outcome.Amount != 0 {
		response["amount"] = outcome.Amount.Rupees()
	}
	if len(outcome.Unmatched) > 0 {
		response["unmatched"] = outcome.Unmatched
	}
	return outcome, model.FunctionResponse{ID: call.ID, Name: call.Name, Response: response}
}
