package models

import (
	"fmt"
	"strings"
)

// NotAvailable is the placeholder recorded when an optional field cannot be
// extracted from a card. The Portuguese wording is part of the persisted
// contract consumed by the frontend.
const NotAvailable = "Não disponível"

// Item is one entry of a shopping list: what to search for and how many.
type Item struct {
	Name     string `json:"item"`
	Quantity int    `json:"quantidade"`
}

// SearchRequest is the ordered shopping list for one scrape run.
type SearchRequest []Item

// Validate checks the request shape before a run starts.
func (r SearchRequest) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("lista de itens vazia")
	}
	for _, it := range r {
		if strings.TrimSpace(it.Name) == "" {
			return fmt.Errorf("o campo 'item' é obrigatório e não pode ser vazio")
		}
		if it.Quantity < 1 {
			return fmt.Errorf("a quantidade deve ser um número inteiro positivo")
		}
	}
	return nil
}

// Product is one scraped product candidate inside a storefront. Price and
// details are kept as display text; numeric values are always re-derived by
// the pricing package so the stored text stays the single source of truth.
type Product struct {
	ID             int     `json:"id"`
	Name           string  `json:"nome"`
	Price          string  `json:"preco"`
	Details        string  `json:"detalhes"`
	ImageURL       *string `json:"imagem_url"`
	LocalImagePath *string `json:"imagem_local"`
}

// Storefront is one store discovered on the listing page, together with
// everything scraped and computed for it during a run.
type Storefront struct {
	ID               int                  `json:"id"`
	Name             string               `json:"nome"`
	Rating           string               `json:"rating"`
	Distance         string               `json:"distancia"`
	DeliveryEstimate string               `json:"tempo_entrega"`
	DeliveryFee      string               `json:"custo_entrega"`
	ImageURL         *string              `json:"imagem_url"`
	LocalImagePath   *string              `json:"imagem_local"`
	URL              string               `json:"url"`
	Products         map[string][]Product `json:"produtos"`
	TotalCost        string               `json:"custo_total"`
	ChosenPicks      []ChosenPick         `json:"produtos_escolhidos"`
	Alternatives     []Alternative        `json:"combinacoes"`
}

// ChosenPick is the cheapest valid candidate for a requested item at one
// storefront. Cost is unit price times quantity.
type ChosenPick struct {
	Item     string  `json:"item"`
	Quantity int     `json:"quantidade"`
	Product  Product `json:"produto"`
	Cost     float64 `json:"custo"`
}

// Alternative is a non-cheapest candidate kept as a fallback suggestion.
// CostDelta is its cost minus the chosen pick's cost for the same item.
type Alternative struct {
	Item      string  `json:"item"`
	Quantity  int     `json:"quantidade"`
	Product   Product `json:"produto"`
	Cost      float64 `json:"custo"`
	CostDelta float64 `json:"diferenca"`
}

// BestPurchase names the cheapest storefront and its basket.
type BestPurchase struct {
	Storefront  string       `json:"mercado"`
	TotalCost   string       `json:"custo_total"`
	ChosenPicks []ChosenPick `json:"produtos_escolhidos"`
}

// Result is the canonical output artifact of a run. Field names and nesting
// are the durable JSON contract other processes read; do not rename.
type Result struct {
	BestPurchase BestPurchase  `json:"melhor_compra"`
	Storefronts  []*Storefront `json:"mercados"`
}
