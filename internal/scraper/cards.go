package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pricepilot/basket-scraper/internal/models"
	"github.com/pricepilot/basket-scraper/internal/selectors"
)

const siteBaseURL = "https://www.ifood.com.br"

// parseStorefrontCard extracts one storefront record from a card's outer
// HTML. Optional fields degrade to placeholders; only a card with no name at
// all is rejected.
func parseStorefrontCard(html string, id int, sel selectors.MarketSelectors) (*models.Storefront, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse storefront card: %w", err)
	}

	sf := &models.Storefront{
		ID:               id,
		Name:             textOrDefault(doc, sel.Name, "Nome não encontrado"),
		Rating:           textOrDefault(doc, sel.Rating, models.NotAvailable),
		Distance:         models.NotAvailable,
		DeliveryEstimate: models.NotAvailable,
		DeliveryFee:      models.NotAvailable,
	}
	if sf.Name == "Nome não encontrado" && strings.TrimSpace(doc.Text()) == "" {
		return nil, fmt.Errorf("empty storefront card")
	}

	// The info line is "•"-separated; only the distance segment is wanted.
	info := doc.Find(selectors.CSS(sel.Info)).First().Text()
	for _, part := range strings.Split(info, "•") {
		if strings.Contains(part, "km") {
			sf.Distance = strings.TrimSpace(part)
			break
		}
	}

	// Footer stacks delivery estimate and fee as separate lines.
	if parts := footerParts(doc, sel.Footer); len(parts) > 0 {
		sf.DeliveryEstimate = parts[0]
		if len(parts) > 1 {
			sf.DeliveryFee = parts[len(parts)-1]
		}
	}

	if src, ok := doc.Find(selectors.CSS(sel.Image)).First().Attr("src"); ok {
		sf.ImageURL = &src
	}

	if href, ok := doc.Find("a").First().Attr("href"); ok && href != "" {
		if strings.HasPrefix(href, "/") {
			href = siteBaseURL + href
		}
		sf.URL = href
	}

	return sf, nil
}

// footerParts collects the non-empty text lines of the footer element,
// dropping bare separator dots.
func footerParts(doc *goquery.Document, footerClass string) []string {
	footer := doc.Find(selectors.CSS(footerClass)).First()
	if footer.Length() == 0 {
		return nil
	}

	var parts []string
	collect := func(text string) {
		text = strings.TrimSpace(text)
		if text != "" && text != "•" {
			parts = append(parts, text)
		}
	}

	children := footer.Children()
	if children.Length() == 0 {
		collect(footer.Text())
		return parts
	}
	children.Each(func(_ int, s *goquery.Selection) {
		collect(s.Text())
	})
	return parts
}

// parseProductCard extracts one product candidate from a card's outer HTML.
// Every field is optional: a missing name, price, or details element yields a
// placeholder instead of rejecting the candidate.
func parseProductCard(html string, id int, sel selectors.ProductSelectors) models.Product {
	p := models.Product{
		ID:      id,
		Name:    "Nome não encontrado",
		Price:   models.NotAvailable,
		Details: models.NotAvailable,
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return p
	}

	p.Name = textOrDefault(doc, sel.Name, "Nome não encontrado")
	p.Price = textOrDefault(doc, sel.Price, models.NotAvailable)
	p.Details = textOrDefault(doc, sel.Details, models.NotAvailable)

	if src, ok := doc.Find(selectors.CSS(sel.Image)).First().Attr("src"); ok {
		p.ImageURL = &src
	}

	return p
}

func textOrDefault(doc *goquery.Document, class, fallback string) string {
	text := strings.TrimSpace(doc.Find(selectors.CSS(class)).First().Text())
	if text == "" {
		return fallback
	}
	return text
}

// splitQuery separates a search query into its textual term and an optional
// embedded numeric token used as a size filter ("leite 1" -> "leite", "1").
func splitQuery(query string) (term, numericFilter string) {
	var words []string
	for _, w := range strings.Fields(query) {
		if isDigits(w) {
			if numericFilter == "" {
				numericFilter = w
			}
			continue
		}
		words = append(words, w)
	}
	return strings.Join(words, " "), numericFilter
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// matchesNumericFilter reports whether a product name contains the numeric
// token as a bounded match, optionally suffixed by a small set of unit
// abbreviations. Deliberately permissive: "leite 1" accepts "1", "1l" is not
// in the set but "1g", "1ml", "1 gramas" and "1 gr" are.
func matchesNumericFilter(name, token string) bool {
	patterns := []string{
		token,
		token + "ml",
		token + "g",
		token + " gramas",
		token + " gr",
	}
	lower := strings.ToLower(name)
	for _, p := range patterns {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(p) + `\b`)
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}
