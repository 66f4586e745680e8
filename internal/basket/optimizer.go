// Package basket reduces per-storefront product listings into a single
// optimal-purchase decision. The computation is pure and deterministic: no
// I/O, no randomness, stable ordering throughout.
package basket

import (
	"log/slog"
	"sort"

	"github.com/pricepilot/basket-scraper/internal/models"
	"github.com/pricepilot/basket-scraper/internal/pricing"
)

// Optimize computes, for every storefront, the cheapest valid candidate per
// requested item, the basket total (products plus delivery fee), and up to
// maxAlternatives ranked fallback candidates per item. Across storefronts the
// cheapest total wins; storefronts where every item is missing get an "N/A"
// total and are never selected as best.
//
// The storefront records are annotated in place and returned inside the
// result so callers can inspect runner-ups and missing items.
func Optimize(storefronts []*models.Storefront, request models.SearchRequest, maxAlternatives int, logger *slog.Logger) *models.Result {
	logger = logger.With("component", "basket_optimizer")

	totals := make([]float64, len(storefronts))

	for i, sf := range storefronts {
		deliveryFee := pricing.ParseDeliveryFee(sf.DeliveryFee)

		var productsTotal float64
		picks := []models.ChosenPick{}
		alternatives := []models.Alternative{}
		var missing []string

		for _, item := range request {
			candidates := priceable(sf.Products[item.Name])
			if len(candidates) == 0 {
				missing = append(missing, item.Name)
				continue
			}

			// Stable sort: ties keep original extraction order.
			sort.SliceStable(candidates, func(a, b int) bool {
				return candidates[a].price < candidates[b].price
			})

			cheapest := candidates[0]
			cost := cheapest.price * float64(item.Quantity)
			productsTotal += cost
			picks = append(picks, models.ChosenPick{
				Item:     item.Name,
				Quantity: item.Quantity,
				Product:  cheapest.product,
				Cost:     cost,
			})

			for j, alt := range candidates[1:] {
				if j >= maxAlternatives {
					break
				}
				altCost := alt.price * float64(item.Quantity)
				alternatives = append(alternatives, models.Alternative{
					Item:      item.Name,
					Quantity:  item.Quantity,
					Product:   alt.product,
					Cost:      altCost,
					CostDelta: altCost - cost,
				})
			}
		}

		total := pricing.Invalid()
		if len(picks) > 0 {
			// An unparseable delivery fee keeps the total invalid rather
			// than silently undercounting it.
			total = productsTotal + deliveryFee
		}
		totals[i] = total

		sf.TotalCost = pricing.FormatTotal(total)
		sf.ChosenPicks = picks
		sf.Alternatives = alternatives

		if len(missing) > 0 {
			logger.Info("storefront missing items", "storefront", sf.Name, "missing", missing)
		}
	}

	best := bestIndex(totals)

	result := &models.Result{Storefronts: storefronts}
	if best >= 0 {
		result.BestPurchase = models.BestPurchase{
			Storefront:  storefronts[best].Name,
			TotalCost:   storefronts[best].TotalCost,
			ChosenPicks: storefronts[best].ChosenPicks,
		}
		logger.Info("cheapest storefront",
			"storefront", result.BestPurchase.Storefront,
			"total", result.BestPurchase.TotalCost,
		)
	}
	return result
}

type pricedProduct struct {
	product models.Product
	price   float64
}

// priceable filters candidates to those whose display price parses to a
// finite value, re-deriving the number from the stored text each time.
func priceable(candidates []models.Product) []pricedProduct {
	out := make([]pricedProduct, 0, len(candidates))
	for _, p := range candidates {
		price := pricing.ParsePrice(p.Price)
		if pricing.IsInvalid(price) {
			continue
		}
		out = append(out, pricedProduct{product: p, price: price})
	}
	return out
}

// bestIndex returns the index of the lowest finite total, preferring the
// earliest on ties. Invalid totals sort last; -1 when there are none at all.
func bestIndex(totals []float64) int {
	best := -1
	for i, t := range totals {
		if pricing.IsInvalid(t) {
			continue
		}
		if best == -1 || t < totals[best] {
			best = i
		}
	}
	if best == -1 && len(totals) > 0 {
		// Every storefront is missing every item; the first still names
		// the "best" slot so the result shape stays stable.
		best = 0
	}
	return best
}
