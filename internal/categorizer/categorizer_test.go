package categorizer_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/dispute-assistant-bfa-go/internal/categorizer"
	"github.com/boddenberg/dispute-assistant-bfa-go/internal/domain"
)

func TestCategorize_DefaultRules(t *testing.T) {
	c := categorizer.New(categorizer.DefaultRules())

	tests := []struct {
		description string
		want        domain.Category
	}{
		{"Starbucks", domain.CategoryDining},
		{"STARBUCKS #1234 SEATTLE", domain.CategoryDining},
		{"McDonald's", domain.CategoryDining},
		{"Whole Foods Market", domain.CategoryGroceries},
		{"Trader Joe's", domain.CategoryGroceries},
		{"Shell Gas Station", domain.CategoryGasAuto},
		{"Delta Air Lines", domain.CategoryTravel},
		{"Netflix.com", domain.CategoryEntertainment},
		{"CVS Pharmacy", domain.CategoryHealthcare},
		{"Amazon.com", domain.CategoryShopping},
		{"City Water Utility", domain.CategoryUtilities},
		{"Olive Garden", domain.CategoryOther},
		{"", domain.CategoryOther},
	}
	for _, tt := range tests {
		if got := c.Categorize(tt.description); got != tt.want {
			t.Errorf("Categorize(%q) = %q, want %q", tt.description, got, tt.want)
		}
	}
}

func TestCategorize_FirstMatchWins(t *testing.T) {
	c := categorizer.New(categorizer.DefaultRules())

	// "gas company" is a Utilities keyword and Utilities comes before Gas & Auto.
	if got := c.Categorize("Metro Gas Company"); got != domain.CategoryUtilities {
		t.Errorf("expected Utilities, got %q", got)
	}
	// Dining is checked before Shopping, so a store cafe is Dining.
	if got := c.Categorize("Target Cafe"); got != domain.CategoryDining {
		t.Errorf("expected Dining, got %q", got)
	}
}

func TestCategorize_WordBoundaries(t *testing.T) {
	c := categorizer.New(categorizer.DefaultRules())

	// "bp" must not match inside "subpar"; "gas" must not match inside "vegas".
	if got := c.Categorize("Subpar Vegas"); got != domain.CategoryOther {
		t.Errorf("expected Other, got %q", got)
	}
}

func TestCategorize_Deterministic(t *testing.T) {
	c := categorizer.New(categorizer.DefaultRules())

	for _, d := range []string{"Starbucks", "Uber Trip", "Spotify Premium", "unknown merchant"} {
		first := c.Categorize(d)
		for i := 0; i < 10; i++ {
			if got := c.Categorize(d); got != first {
				t.Fatalf("Categorize(%q) changed from %q to %q", d, first, got)
			}
		}
	}
}

func TestCategorize_CustomRules(t *testing.T) {
	c := categorizer.New(categorizer.Rules{
		{Category: domain.CategoryTravel, Keywords: []string{"starbucks"}},
	})

	if got := c.Categorize("Starbucks"); got != domain.CategoryTravel {
		t.Errorf("custom table not honoured, got %q", got)
	}
}

func TestCategorizeAll_MatchesSequential(t *testing.T) {
	c := categorizer.New(categorizer.DefaultRules())

	names := []string{"Starbucks", "Shell", "Amazon", "Hotel Rome", "Olive Garden"}
	txs := make([]domain.Transaction, 1000)
	for i := range txs {
		txs[i] = domain.Transaction{
			Description: fmt.Sprintf("%s %d", names[i%len(names)], i),
			Amount:      decimal.NewFromInt(-1),
		}
	}

	if err := c.CategorizeAll(context.Background(), txs); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for i, tx := range txs {
		if tx.Category == nil {
			t.Fatalf("transaction %d not categorized", i)
		}
		if want := c.Categorize(tx.Description); *tx.Category != want {
			t.Fatalf("transaction %d: got %q, want %q", i, *tx.Category, want)
		}
	}
}

func TestSummarize(t *testing.T) {
	c := categorizer.New(categorizer.DefaultRules())

	txs := []domain.Transaction{
		{Description: "Starbucks", Amount: decimal.RequireFromString("-12.85")},
		{Description: "Pizza Hut", Amount: decimal.RequireFromString("-20.15")},
		{Description: "Amazon", Amount: decimal.RequireFromString("-50.00")},
		{Description: "Amazon refund", Amount: decimal.RequireFromString("10.00")},
		{Description: "Payment Thank You", Amount: decimal.RequireFromString("100.00")},
	}
	if err := c.CategorizeAll(context.Background(), txs); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	buckets := c.Summarize(txs)
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d: %+v", len(buckets), buckets)
	}
	if buckets[0].Category != domain.CategoryDining || !buckets[0].Spent.Equal(decimal.RequireFromString("33.00")) || buckets[0].Count != 2 {
		t.Errorf("unexpected dining bucket %+v", buckets[0])
	}
	shopping := buckets[1]
	if shopping.Category != domain.CategoryShopping || !shopping.Total.Equal(decimal.RequireFromString("-40.00")) || !shopping.Spent.Equal(decimal.RequireFromString("50.00")) {
		t.Errorf("unexpected shopping bucket %+v", shopping)
	}
	if buckets[2].Category != domain.CategoryOther {
		t.Errorf("expected Other last, got %q", buckets[2].Category)
	}
}

func TestSummarize_OtherBucketIsNotDuplicated(t *testing.T) {
	c := categorizer.New(categorizer.DefaultRules())
	other := domain.CategoryOther

	buckets := c.Summarize([]domain.Transaction{
		{Description: "Payment Thank You", Amount: decimal.RequireFromString("100.00"), Category: &other},
		{Description: "Olive Garden", Amount: decimal.RequireFromString("-30.00")},
	})

	if len(buckets) != 1 {
		t.Fatalf("expected a single Other bucket, got %d: %+v", len(buckets), buckets)
	}
	if !buckets[0].Total.Equal(decimal.RequireFromString("70.00")) || buckets[0].Count != 2 {
		t.Errorf("unexpected Other bucket %+v", buckets[0])
	}
}
