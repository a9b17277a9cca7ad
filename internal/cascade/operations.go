package cascade

import (
	"context"

	"menucost/internal/costing"
	"menucost/models"
)

func kinds(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, name := range names {
		out[name] = true
	}
	return out
}

func ids(set costing.NodeSet) []uint {
	nodes := set.Sorted()
	out := make([]uint, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

// RecalculateAllRecipeCosts re-resolves every ingredient and recipe of the
// workspace and everything built on them.
func (o *Orchestrator) RecalculateAllRecipeCosts(ctx context.Context, workspaceID uint) (Result, error) {
	return o.run(ctx, workspaceID, JobRecipes, func(_ *costing.Snapshot, g *costing.Graph) plan {
		roots := g.NodesOfKind(models.ComponentIngredient)
		for n := range g.NodesOfKind(models.ComponentRecipe) {
			roots.Add(n)
		}
		return plan{
			scope:   g.Downstream(roots.Sorted()...),
			primary: kinds(EntityRecipe),
		}
	})
}

// RecalculateAllProductCosts recomputes every product from the stored costs
// of its ingredients and recipes.
func (o *Orchestrator) RecalculateAllProductCosts(ctx context.Context, workspaceID uint) (Result, error) {
	return o.run(ctx, workspaceID, JobProducts, func(_ *costing.Snapshot, g *costing.Graph) plan {
		return plan{
			scope:   g.Downstream(g.NodesOfKind(models.ComponentProduct).Sorted()...),
			primary: kinds(EntityProduct),
		}
	})
}

// RecalculateAllVariations refreshes ingredient package variations, product
// size costs and the menu entries priced off them, from stored costs.
func (o *Orchestrator) RecalculateAllVariations(ctx context.Context, workspaceID uint) (Result, error) {
	return o.run(ctx, workspaceID, JobVariations, func(_ *costing.Snapshot, g *costing.Graph) plan {
		return plan{
			scope:      make(costing.NodeSet),
			variations: ids(g.NodesOfKind(models.ComponentIngredient)),
			sized:      ids(g.NodesOfKind(models.ComponentProduct)),
			primary:    kinds(EntityVariation, EntitySizeCost),
		}
	})
}

// Cascade recomputes the roots and everything downstream of them. Roots that
// no longer exist are skipped; their dependents are still recomputed.
func (o *Orchestrator) Cascade(ctx context.Context, workspaceID uint, roots ...costing.Node) (Result, error) {
	return o.run(ctx, workspaceID, JobCascade, func(_ *costing.Snapshot, g *costing.Graph) plan {
		return cascadePlan(g, roots)
	})
}

func cascadePlan(g *costing.Graph, roots []costing.Node) plan {
	scope := g.Downstream(roots...)
	for _, root := range roots {
		if !g.Has(root) {
			delete(scope, root)
		}
	}
	return plan{
		scope: scope,
		primary: kinds(EntityIngredient, EntityVariation, EntityRecipe,
			EntityProduct, EntitySizeCost, EntityMenuEntry),
	}
}

// IngredientChanged runs after a supplier entry of the ingredient is written
// or removed.
func (o *Orchestrator) IngredientChanged(ctx context.Context, workspaceID, ingredientID uint) (Result, error) {
	return o.Cascade(ctx, workspaceID, costing.Node{Kind: models.ComponentIngredient, ID: ingredientID})
}

// RecipeChanged runs after a structural edit of a recipe.
func (o *Orchestrator) RecipeChanged(ctx context.Context, workspaceID, recipeID uint) (Result, error) {
	return o.Cascade(ctx, workspaceID, costing.Node{Kind: models.ComponentRecipe, ID: recipeID})
}

// ProductChanged runs after a composition edit of a product.
func (o *Orchestrator) ProductChanged(ctx context.Context, workspaceID, productID uint) (Result, error) {
	return o.Cascade(ctx, workspaceID, costing.Node{Kind: models.ComponentProduct, ID: productID})
}

// SizeGroupChanged re-derives every product priced off the group after a
// multiplier or reference change.
func (o *Orchestrator) SizeGroupChanged(ctx context.Context, workspaceID, groupID uint) (Result, error) {
	return o.run(ctx, workspaceID, JobCascade, func(snap *costing.Snapshot, g *costing.Graph) plan {
		var roots []costing.Node
		for _, id := range snap.ProductsInSizeGroup(groupID) {
			roots = append(roots, costing.Node{Kind: models.ComponentProduct, ID: id})
		}
		return cascadePlan(g, roots)
	})
}

// UnitsChanged recomputes everything after a conversion factor changed.
func (o *Orchestrator) UnitsChanged(ctx context.Context, workspaceID uint) (Result, error) {
	return o.run(ctx, workspaceID, JobCascade, func(_ *costing.Snapshot, g *costing.Graph) plan {
		return cascadePlan(g, g.Nodes().Sorted())
	})
}
