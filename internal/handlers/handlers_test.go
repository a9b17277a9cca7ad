package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"menucost/internal/cascade"
	"menucost/internal/costing"
	"menucost/internal/db/mock"
	"menucost/internal/store"
	"menucost/models"
)

type testWorkspace struct {
	db     *gorm.DB
	ws     models.Workspace
	locker *cascade.LocalLocker
}

func withTestWorkspace(t *testing.T, opts cascade.Options) *testWorkspace {
	t.Helper()
	db, err := mock.New(context.Background())
	if err != nil {
		t.Fatalf("failed to open mock database: %v", err)
	}
	originalStore, originalOrchestrator := costStore, orchestrator
	s := store.New(db)
	locker := cascade.NewLocalLocker()
	Configure(s, cascade.New(s, locker, opts))
	t.Cleanup(func() {
		costStore, orchestrator = originalStore, originalOrchestrator
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	ws, err := s.WorkspaceBySlug(context.Background(), mock.WorkspaceSlug)
	if err != nil {
		t.Fatalf("failed to load mock workspace: %v", err)
	}
	return &testWorkspace{db: db, ws: ws, locker: locker}
}

func newTestMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /workspaces/{slug}/recalculate/{target}", Recalculate)
	mux.HandleFunc("GET /workspaces/{slug}/jobs/{id}", Job)
	mux.HandleFunc("GET /workspaces/{slug}/overhead", Overhead)
	mux.HandleFunc("POST /workspaces/{slug}/ingredients/{id}/entries", RecordEntry)
	mux.HandleFunc("DELETE /workspaces/{slug}/entries/{id}", DeleteEntry)
	mux.HandleFunc("POST /workspaces/{slug}/recipes/{id}/items", AddRecipeItem)
	mux.HandleFunc("POST /workspaces/{slug}/products/{id}/composition", AddCompositionItem)
	mux.HandleFunc("PATCH /workspaces/{slug}/units/{id}", UpdateUnit)
	mux.HandleFunc("DELETE /workspaces/{slug}/units/{id}", DeleteUnit)
	mux.HandleFunc("POST /workspaces/{slug}/size-groups/{id}/reference", PromoteReference)
	mux.HandleFunc("DELETE /workspaces/{slug}/size-options/{id}", DeleteSizeOption)
	mux.HandleFunc("PUT /workspaces/{slug}/menus/{id}/pricing", UpdateMenuPricing)
	mux.HandleFunc("POST /workspaces/{slug}/menus/{id}/entries", AddMenuEntry)
	return mux
}

func do(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newTestMux().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func (tw *testWorkspace) lookup(t *testing.T, model any, name string) {
	t.Helper()
	if err := tw.db.Where("workspace_id = ? AND name = ?", tw.ws.ID, name).First(model).Error; err != nil {
		t.Fatalf("failed to load %q: %v", name, err)
	}
}

func TestRecalculateRelaysResult(t *testing.T) {
	withTestWorkspace(t, cascade.Options{Workers: 2})

	for _, target := range []string{"recipes", "products", "variations"} {
		w := do(t, http.MethodPost, "/workspaces/demo/recalculate/"+target, nil)
		expectStatus(t, w, http.StatusOK)
		result := decode[cascade.Result](t, w)
		if result.State != models.JobCompleted {
			t.Fatalf("%s: expected completed job, got %s", target, result.State)
		}
		if result.Updated != 0 {
			t.Fatalf("%s: seeded costs are current, expected no updates, got %d", target, result.Updated)
		}
		if result.Unchanged == 0 {
			t.Fatalf("%s: expected unchanged entities to be reported", target)
		}

		w = do(t, http.MethodGet, "/workspaces/demo/jobs/"+result.JobID, nil)
		expectStatus(t, w, http.StatusOK)
		job := decode[jobResponse](t, w)
		if job.State != models.JobCompleted || job.FinishedAt == nil {
			t.Fatalf("%s: unexpected stored job %+v", target, job)
		}
	}
}

func TestRecalculateRejectsUnknownTargets(t *testing.T) {
	withTestWorkspace(t, cascade.Options{})

	expectStatus(t, do(t, http.MethodPost, "/workspaces/nowhere/recalculate/recipes", nil), http.StatusNotFound)
	expectStatus(t, do(t, http.MethodPost, "/workspaces/demo/recalculate/everything", nil), http.StatusNotFound)
	expectStatus(t, do(t, http.MethodGet, "/workspaces/demo/jobs/missing", nil), http.StatusNotFound)
}

func TestRecalculateReportsBusyWorkspace(t *testing.T) {
	tw := withTestWorkspace(t, cascade.Options{LockWait: 0})

	key := fmt.Sprintf("menucost:workspace:%d:recalculate", tw.ws.ID)
	if ok, err := tw.locker.TryLock(context.Background(), key, "other-job", time.Minute); !ok || err != nil {
		t.Fatalf("failed to hold workspace lock: %v", err)
	}

	w := do(t, http.MethodPost, "/workspaces/demo/recalculate/products", nil)
	expectStatus(t, w, http.StatusBadRequest)
	if body := w.Body.String(); !strings.Contains(body, "another recalculation") {
		t.Fatalf("expected busy error, got %s", body)
	}
}

func TestOverheadReport(t *testing.T) {
	withTestWorkspace(t, cascade.Options{})

	w := do(t, http.MethodGet, "/workspaces/demo/overhead", nil)
	expectStatus(t, w, http.StatusOK)
	report := decode[costing.Overhead](t, w)
	if !report.FixedTotal.Equal(decimal.RequireFromString("5150")) {
		t.Fatalf("expected fixed total 5150, got %s", report.FixedTotal)
	}
	if !report.PerLaborHour.Equal(decimal.RequireFromString("29.26136364")) {
		t.Fatalf("unexpected overhead per labor hour %s", report.PerLaborHour)
	}
}

func TestRecordEntryCascades(t *testing.T) {
	tw := withTestWorkspace(t, cascade.Options{Workers: 2})

	var flour models.Ingredient
	tw.lookup(t, &flour, "Wheat flour")
	var dough models.Recipe
	tw.lookup(t, &dough, "Sweet dough")

	path := fmt.Sprintf("/workspaces/demo/ingredients/%d/entries", flour.ID)
	w := do(t, http.MethodPost, path, map[string]any{
		"quantity": "25", "unit": "kg", "total_price": "150", "date": "2024-06-03",
	})
	expectStatus(t, w, http.StatusCreated)
	resp := decode[struct {
		Cascade *cascade.Result `json:"cascade"`
	}](t, w)
	if resp.Cascade == nil || resp.Cascade.State != models.JobCompleted {
		t.Fatalf("expected a completed cascade, got %+v", resp.Cascade)
	}
	if resp.Cascade.Tally[cascade.EntityRecipe] == nil || resp.Cascade.Tally[cascade.EntityRecipe].Updated != 2 {
		t.Fatalf("expected both recipes to be updated, got %+v", resp.Cascade.Tally)
	}

	var stored models.Ingredient
	if err := tw.db.First(&stored, flour.ID).Error; err != nil {
		t.Fatalf("failed to reload flour: %v", err)
	}
	if !stored.CurrentUnitCost.Equal(decimal.RequireFromString("0.006")) {
		t.Fatalf("expected flour to cost 0.006 per gram, got %s", stored.CurrentUnitCost)
	}

	w = do(t, http.MethodPost, path, map[string]any{"quantity": "1", "unit": "l", "total_price": "3"})
	expectStatus(t, w, http.StatusBadRequest)
	w = do(t, http.MethodPost, path, map[string]any{"quantity": "1", "unit": "bushel", "total_price": "3"})
	expectStatus(t, w, http.StatusBadRequest)
	w = do(t, http.MethodPost, path, map[string]any{"quantity": "1", "unit": "kg", "total_price": "3", "colour": "red"})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestStructuralEditsAreValidated(t *testing.T) {
	tw := withTestWorkspace(t, cascade.Options{Workers: 2})

	var dough, cake models.Recipe
	tw.lookup(t, &dough, "Sweet dough")
	tw.lookup(t, &cake, "Milk cake")

	w := do(t, http.MethodPost, fmt.Sprintf("/workspaces/demo/recipes/%d/items", dough.ID), map[string]any{
		"component_type": "recipe", "component_id": cake.ID, "quantity": "1", "unit": "un",
	})
	expectStatus(t, w, http.StatusBadRequest)
	if !strings.Contains(w.Body.String(), "cyclic") {
		t.Fatalf("expected a cycle error, got %s", w.Body.String())
	}

	var sugar models.Ingredient
	tw.lookup(t, &sugar, "Sugar")
	w = do(t, http.MethodPost, fmt.Sprintf("/workspaces/demo/recipes/%d/items", cake.ID), map[string]any{
		"component_type": "ingredient", "component_id": sugar.ID, "quantity": "50", "unit": "g",
	})
	expectStatus(t, w, http.StatusCreated)

	var grams models.Unit
	if err := tw.db.Where("workspace_id = ? AND symbol = ?", tw.ws.ID, "g").First(&grams).Error; err != nil {
		t.Fatalf("failed to load unit: %v", err)
	}
	w = do(t, http.MethodPatch, fmt.Sprintf("/workspaces/demo/units/%d", grams.ID), map[string]any{"conversion_factor": "2"})
	expectStatus(t, w, http.StatusBadRequest)
	expectStatus(t, do(t, http.MethodDelete, fmt.Sprintf("/workspaces/demo/units/%d", grams.ID), nil), http.StatusBadRequest)
}

func TestSizeOptionEndpoints(t *testing.T) {
	tw := withTestWorkspace(t, cascade.Options{Workers: 2})

	var options []models.SizeOption
	if err := tw.db.Order("position").Find(&options).Error; err != nil || len(options) != 3 {
		t.Fatalf("failed to load size options: %v", err)
	}
	small, medium, large := options[0], options[1], options[2]

	expectStatus(t, do(t, http.MethodDelete, fmt.Sprintf("/workspaces/demo/size-options/%d", medium.ID), nil), http.StatusBadRequest)

	w := do(t, http.MethodPost, fmt.Sprintf("/workspaces/demo/size-groups/%d/reference", medium.SizeGroupID), map[string]any{"option_id": large.ID})
	expectStatus(t, w, http.StatusOK)

	w = do(t, http.MethodDelete, fmt.Sprintf("/workspaces/demo/size-options/%d?successor=%d", large.ID, small.ID), nil)
	expectStatus(t, w, http.StatusOK)
	resp := decode[mutationResponse](t, w)
	if resp.Cascade == nil || resp.Cascade.State != models.JobCompleted {
		t.Fatalf("expected a completed size cascade, got %+v", resp)
	}

	var reference models.SizeOption
	if err := tw.db.Where("is_reference = ?", true).First(&reference).Error; err != nil {
		t.Fatalf("failed to load reference option: %v", err)
	}
	if reference.ID != small.ID {
		t.Fatalf("expected option %d to be the reference, got %d", small.ID, reference.ID)
	}
}

func TestMenuEndpoints(t *testing.T) {
	tw := withTestWorkspace(t, cascade.Options{})

	var counter models.Menu
	tw.lookup(t, &counter, "Counter")
	var slice models.Product
	tw.lookup(t, &slice, "Cake slice")
	pricing := fmt.Sprintf("/workspaces/demo/menus/%d/pricing", counter.ID)

	expectStatus(t, do(t, http.MethodPut, pricing, map[string]any{"mode": "margin", "target": "100", "update_existing": true}), http.StatusBadRequest)
	missing := do(t, http.MethodPut, pricing, map[string]any{"mode": "markup", "target": "150"})
	expectStatus(t, missing, http.StatusBadRequest)
	if !strings.Contains(missing.Body.String(), "update_existing") {
		t.Fatalf("expected the missing flag to be named, got %s", missing.Body.String())
	}

	w := do(t, http.MethodPut, pricing, map[string]any{"mode": "markup", "target": "150", "update_existing": true})
	expectStatus(t, w, http.StatusOK)
	if repriced := decode[map[string]int](t, w)["repriced"]; repriced != 4 {
		t.Fatalf("expected 4 repriced entries, got %d", repriced)
	}

	w = do(t, http.MethodPost, fmt.Sprintf("/workspaces/demo/menus/%d/entries", counter.ID), map[string]any{"product_id": slice.ID})
	expectStatus(t, w, http.StatusCreated)
	entry := decode[models.MenuEntry](t, w)
	if entry.PricingMode != models.PricingMarkup {
		t.Fatalf("expected the entry to inherit markup pricing, got %s", entry.PricingMode)
	}
	want := entry.Cost.Mul(decimal.RequireFromString("2.5")).Round(2)
	if !entry.SuggestedPrice.Equal(want) {
		t.Fatalf("expected suggested price %s, got %s", want, entry.SuggestedPrice)
	}
}
