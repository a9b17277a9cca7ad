package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"menucost/internal/cascade"
	"menucost/internal/costing"
	applog "menucost/internal/log"
	"menucost/internal/store"
	"menucost/models"
)

type mutationResponse struct {
	Data         any             `json:"data,omitempty"`
	Cascade      *cascade.Result `json:"cascade,omitempty"`
	CascadeError string          `json:"cascade_error,omitempty"`
}

// afterMutation runs the follow-up recalculation of a committed edit. The
// edit stands even when the recalculation fails; the response says so.
func afterMutation(r *http.Request, ws models.Workspace, data any, run func(context.Context) (cascade.Result, error)) mutationResponse {
	resp := mutationResponse{Data: data}
	result, err := run(r.Context())
	if err != nil {
		applog.Warn(r.Context(), "follow-up recalculation failed", "workspace", ws.Slug, "error", err)
		resp.CascadeError = err.Error()
		if result.JobID == "" {
			return resp
		}
	}
	resp.Cascade = &result
	return resp
}

func cascadeFrom(ws models.Workspace, roots ...costing.Node) func(context.Context) (cascade.Result, error) {
	return func(ctx context.Context) (cascade.Result, error) {
		return orchestrator.Cascade(ctx, ws.ID, roots...)
	}
}

func unitID(r *http.Request, ws models.Workspace, symbol string) (uint, error) {
	unit, err := costStore.UnitBySymbol(r.Context(), ws.ID, strings.TrimSpace(symbol))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	return unit.ID, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if day, err := time.Parse(time.DateOnly, raw); err == nil {
		return day, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", store.ErrInvalidInput, raw)
	}
	return at.UTC(), nil
}

type entryRequest struct {
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Date       string          `json:"date"`
	SupplierID *uint           `json:"supplier_id"`
}

// RecordEntry stores a supplier purchase and cascades the new ingredient cost.
func RecordEntry(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	ingredientID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req entryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	unit, err := unitID(r, ws, req.Unit)
	if err != nil {
		writeError(w, r, "invalid supplier entry", err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, "invalid supplier entry", err)
		return
	}
	entry := models.SupplierEntry{
		WorkspaceID:  ws.ID,
		IngredientID: ingredientID,
		SupplierID:   req.SupplierID,
		Quantity:     req.Quantity,
		UnitID:       unit,
		TotalPrice:   req.TotalPrice,
		Date:         date,
	}
	node, err := costStore.RecordSupplierEntry(r.Context(), &entry)
	if err != nil {
		writeError(w, r, "unable to record supplier entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, afterMutation(r, ws, entry, cascadeFrom(ws, node)))
}

// DeleteEntry removes a supplier purchase and cascades the ingredient cost.
func DeleteEntry(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	entryID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	node, err := costStore.DeleteSupplierEntry(r.Context(), ws.ID, entryID)
	if err != nil {
		writeError(w, r, "unable to delete supplier entry", err)
		return
	}
	writeJSON(w, http.StatusOK, afterMutation(r, ws, nil, cascadeFrom(ws, node)))
}

type itemRequest struct {
	ComponentType models.ComponentKind `json:"component_type"`
	ComponentID   uint                 `json:"component_id"`
	Quantity      decimal.Decimal      `json:"quantity"`
	Unit          string               `json:"unit"`
	SizeOptionID  *uint                `json:"size_option_id"`
}

// AddRecipeItem appends an ingredient or sub-recipe line to a recipe.
func AddRecipeItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	recipeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req itemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	unit, err := unitID(r, ws, req.Unit)
	if err != nil {
		writeError(w, r, "invalid recipe item", err)
		return
	}

	item := models.RecipeItem{
		RecipeID:      recipeID,
		ComponentType: req.ComponentType,
		ComponentID:   req.ComponentID,
		Quantity:      req.Quantity,
		UnitID:        unit,
	}
	node, err := costStore.AddRecipeItem(r.Context(), ws.ID, &item)
	if err != nil {
		writeError(w, r, "unable to add recipe item", err)
		return
	}
	writeJSON(w, http.StatusCreated, afterMutation(r, ws, item, cascadeFrom(ws, node)))
}

// AddCompositionItem appends a line to a product. The unit is optional for
// whole items.
func AddCompositionItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req itemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item := models.CompositionItem{
		ProductID:     productID,
		ComponentType: req.ComponentType,
		ComponentID:   req.ComponentID,
		SizeOptionID:  req.SizeOptionID,
		Quantity:      req.Quantity,
	}
	if strings.TrimSpace(req.Unit) != "" {
		unit, err := unitID(r, ws, req.Unit)
		if err != nil {
			writeError(w, r, "invalid composition item", err)
			return
		}
		item.UnitID = &unit
	}
	node, err := costStore.AddCompositionItem(r.Context(), ws.ID, &item)
	if err != nil {
		writeError(w, r, "unable to add composition item", err)
		return
	}
	writeJSON(w, http.StatusCreated, afterMutation(r, ws, item, cascadeFrom(ws, node)))
}

type unitRequest struct {
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
}

// UpdateUnit changes a conversion factor and recomputes the whole workspace.
func UpdateUnit(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req unitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := costStore.UpdateUnit(r.Context(), ws.ID, id, req.ConversionFactor); err != nil {
		writeError(w, r, "unable to update unit", err)
		return
	}
	writeJSON(w, http.StatusOK, afterMutation(r, ws, nil, func(ctx context.Context) (cascade.Result, error) {
		return orchestrator.UnitsChanged(ctx, ws.ID)
	}))
}

// DeleteUnit removes an unused non-base unit.
func DeleteUnit(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := costStore.DeleteUnit(r.Context(), ws.ID, id); err != nil {
		writeError(w, r, "unable to delete unit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type referenceRequest struct {
	OptionID uint `json:"option_id"`
}

func sizeGroupChanged(ws models.Workspace, groupID uint) func(context.Context) (cascade.Result, error) {
	return func(ctx context.Context) (cascade.Result, error) {
		return orchestrator.SizeGroupChanged(ctx, ws.ID, groupID)
	}
}

// PromoteReference moves the reference size of a group and re-derives the
// size costs of its products.
func PromoteReference(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	groupID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req referenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := costStore.PromoteReferenceSize(r.Context(), ws.ID, groupID, req.OptionID); err != nil {
		writeError(w, r, "unable to promote reference size", err)
		return
	}
	writeJSON(w, http.StatusOK, afterMutation(r, ws, nil, sizeGroupChanged(ws, groupID)))
}

// DeleteSizeOption removes a size option. Removing the reference option needs
// a ?successor= option id.
func DeleteSizeOption(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	optionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var successor *uint
	if raw := strings.TrimSpace(r.URL.Query().Get("successor")); raw != "" {
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid successor")
			return
		}
		id := uint(value)
		successor = &id
	}
	groupID, err := costStore.DeleteSizeOption(r.Context(), ws.ID, optionID, successor)
	if err != nil {
		writeError(w, r, "unable to delete size option", err)
		return
	}
	writeJSON(w, http.StatusOK, afterMutation(r, ws, nil, sizeGroupChanged(ws, groupID)))
}

type menuPricingRequest struct {
	Mode           models.PricingMode `json:"mode"`
	Target         decimal.Decimal    `json:"target"`
	UpdateExisting *bool              `json:"update_existing"`
}

// UpdateMenuPricing changes a menu's pricing mode and target.
func UpdateMenuPricing(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	menuID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req menuPricingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UpdateExisting == nil {
		writeJSONError(w, http.StatusBadRequest, "update_existing is required")
		return
	}
	repriced, err := costStore.UpdateMenuPricing(r.Context(), ws.ID, menuID, req.Mode, req.Target, *req.UpdateExisting)
	if err != nil {
		writeError(w, r, "unable to update menu pricing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"repriced": repriced})
}

type menuEntryRequest struct {
	ProductID     uint             `json:"product_id"`
	SizeOptionID  *uint            `json:"size_option_id"`
	OverridePrice *decimal.Decimal `json:"override_price"`
}

// AddMenuEntry lists a product on a menu at the menu's pricing target.
func AddMenuEntry(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceFromPath(w, r)
	if !ok {
		return
	}
	menuID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req menuEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry := models.MenuEntry{MenuID: menuID, ProductID: req.ProductID, SizeOptionID: req.SizeOptionID}
	if req.OverridePrice != nil {
		entry.OverridePrice = decimal.NewNullDecimal(*req.OverridePrice)
	}
	if err := costStore.AddMenuEntry(r.Context(), ws.ID, &entry); err != nil {
		writeError(w, r, "unable to add menu entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
