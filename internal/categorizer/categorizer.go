// Package categorizer assigns spending categories to transactions using an
// ordered keyword rule table.
package categorizer

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

// Rule maps keywords to a category. Keywords are matched case-insensitively
// on word boundaries; multi-word keywords are allowed.
type Rule struct {
	Category domain.Category `json:"category"`
	Keywords []string        `json:"keywords"`
}

// Rules is an ordered rule table. Order is part of the contract: the first
// rule with a matching keyword decides the category.
type Rules []Rule

// DefaultRules returns the documented rule order.
func DefaultRules() Rules {
	return Rules{
		{Category: domain.CategoryUtilities, Keywords: []string{"electric", "gas company", "water", "internet", "phone", "cable", "utility"}},
		{Category: domain.CategoryDining, Keywords: []string{"restaurant", "dining", "food", "cafe", "coffee", "pizza", "burger", "starbucks", "mcdonalds"}},
		{Category: domain.CategoryGroceries, Keywords: []string{"grocery", "supermarket", "whole foods", "safeway", "kroger", "trader joes"}},
		{Category: domain.CategoryGasAuto, Keywords: []string{"gas", "shell", "chevron", "exxon", "bp", "auto", "car wash", "parking"}},
		{Category: domain.CategoryTravel, Keywords: []string{"airline", "airlines", "air lines", "hotel", "travel", "uber", "lyft", "rental", "airport", "airbnb"}},
		{Category: domain.CategoryEntertainment, Keywords: []string{"movie", "theater", "netflix", "spotify", "game", "games", "entertainment", "concert"}},
		{Category: domain.CategoryHealthcare, Keywords: []string{"medical", "doctor", "pharmacy", "hospital", "health", "cvs"}},
		{Category: domain.CategoryShopping, Keywords: []string{"amazon", "target", "walmart", "mall", "store", "retail", "shopping"}},
	}
}

type compiledRule struct {
	category domain.Category
	pattern  *regexp.Regexp
}

// Categorizer is safe for concurrent use; its compiled table is read-only.
type Categorizer struct {
	rules []compiledRule
}

// New compiles a rule table. Rules without keywords are dropped.
func New(rules Rules) *Categorizer {
	c := &Categorizer{}
	for _, r := range rules {
		var alts []string
		for _, k := range r.Keywords {
			k = strings.ToLower(strings.Join(strings.Fields(k), " "))
			if k == "" {
				continue
			}
			alts = append(alts, strings.ReplaceAll(regexp.QuoteMeta(k), " ", `\s+`))
		}
		if len(alts) == 0 {
			continue
		}
		c.rules = append(c.rules, compiledRule{
			category: r.Category,
			pattern:  regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)\b`),
		})
	}
	return c
}

// Categorize returns the category of the first matching rule, or Other.
func (c *Categorizer) Categorize(description string) domain.Category {
	d := strings.ToLower(description)
	d = strings.ReplaceAll(d, "'", "")
	for _, r := range c.rules {
		if r.pattern.MatchString(d) {
			return r.category
		}
	}
	return domain.CategoryOther
}

// chunkSize bounds how many transactions one goroutine categorizes.
const chunkSize = 256

// CategorizeAll assigns a category to every transaction in place. Large sets
// are split into chunks processed concurrently; each transaction is written
// by exactly one goroutine, so the result equals sequential processing.
func (c *Categorizer) CategorizeAll(ctx context.Context, txs []domain.Transaction) error {
	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(txs); start += chunkSize {
		chunk := txs[start:min(start+chunkSize, len(txs))]
		g.Go(func() error {
			for i := range chunk {
				if err := ctx.Err(); err != nil {
					return err
				}
				cat := c.Categorize(chunk[i].Description)
				chunk[i].Category = &cat
			}
			return nil
		})
	}
	return g.Wait()
}

// Summarize buckets categorized transactions. Buckets follow the rule order
// with Other last; uncategorized transactions count as Other. Empty buckets
// are omitted.
func (c *Categorizer) Summarize(txs []domain.Transaction) []domain.CategoryBucket {
	order := make([]domain.Category, 0, len(c.rules)+1)
	seen := make(map[domain.Category]bool)
	for _, r := range c.rules {
		if !seen[r.category] {
			seen[r.category] = true
			order = append(order, r.category)
		}
	}
	if !seen[domain.CategoryOther] {
		seen[domain.CategoryOther] = true
		order = append(order, domain.CategoryOther)
	}

	byCat := make(map[domain.Category]*domain.CategoryBucket)
	for _, t := range txs {
		cat := domain.CategoryOther
		if t.Category != nil {
			cat = *t.Category
		}
		b, ok := byCat[cat]
		if !ok {
			b = &domain.CategoryBucket{Category: cat, Total: decimal.Zero, Spent: decimal.Zero}
			byCat[cat] = b
			if !seen[cat] {
				seen[cat] = true
				order = append(order, cat)
			}
		}
		b.Total = b.Total.Add(t.Amount)
		if t.IsDebit() {
			b.Spent = b.Spent.Add(t.Amount.Abs())
		}
		b.Count++
	}

	out := make([]domain.CategoryBucket, 0, len(byCat))
	for _, cat := range order {
		if b, ok := byCat[cat]; ok {
			out = append(out, *b)
		}
	}
	return out
}
