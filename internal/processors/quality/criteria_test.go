package quality

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bakkerme/dealwatch/internal/config"
	"github.com/bakkerme/dealwatch/internal/core"
)

var thermoball = Criteria{
	RequiredKeyword:  "thermoball",
	MaxPrice:         decimal.NewFromInt(30),
	ExcludedKeywords: []string{"flaw", "flaws", "stain", "vest", "damaged", "polartec"},
}

func listing(title, price string) *core.ListingBlock {
	return &core.ListingBlock{
		Title: title,
		Link:  "https://www.ebay.com/itm/" + title,
		Price: decimal.RequireFromString(price),
	}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		title string
		price string
		want  bool
	}{
		{"North Face Thermoball Jacket", "25", true},
		{"North Face Thermoball Vest", "20", false},
		{"North Face Thermoball Jacket", "35", false},
		{"THERMOBALL hoodie", "30", true},
		{"thermoball harvest edition", "10", false},
		{"North Face puffer", "10", false},
		{"Thermoball with small stain", "12", false},
		{"Thermoball", "30.01", false},
	}
	for _, tc := range cases {
		if got := Matches(listing(tc.title, tc.price), thermoball); got != tc.want {
			t.Fatalf("Matches(%q, %s)=%v want %v", tc.title, tc.price, got, tc.want)
		}
	}
}

func TestCriteriaProcessorRecordsResult(t *testing.T) {
	p, err := NewCriteriaProcessor(&config.CriteriaConfig{
		RequiredKeyword:  "thermoball",
		MaxPrice:         decimal.NewFromInt(30),
		ExcludedKeywords: []string{"vest"},
	})
	if err != nil {
		t.Fatalf("NewCriteriaProcessor failed: %v", err)
	}

	hit := listing("Thermoball Jacket", "25")
	ok, err := p.Evaluate(context.Background(), hit)
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	if !hit.Matched() {
		t.Fatalf("expected match result on block, got %#v", hit.Match)
	}

	miss := listing("Thermoball Vest", "25")
	ok, err = p.Evaluate(context.Background(), miss)
	if err != nil || ok {
		t.Fatalf("expected skip, got ok=%v err=%v", ok, err)
	}
	if miss.Match == nil || miss.Match.Result != core.MatchResultSkip || miss.Match.Reason == "" {
		t.Fatalf("expected skip result with reason, got %#v", miss.Match)
	}
}

func TestCriteriaRuleOnlyNarrows(t *testing.T) {
	p, err := NewCriteriaProcessor(&config.CriteriaConfig{
		RequiredKeyword: "thermoball",
		MaxPrice:        decimal.NewFromInt(30),
		Rule:            `price >= 15 && title.length < 40`,
	})
	if err != nil {
		t.Fatalf("NewCriteriaProcessor failed: %v", err)
	}

	cases := []struct {
		title string
		price string
		want  bool
	}{
		{"Thermoball Jacket", "25", true},
		{"Thermoball Jacket", "10", false},
		{"Thermoball Jacket", "45", false},
		{"Thermoball Jacket with a very very long listing title", "20", false},
	}
	for _, tc := range cases {
		ok, err := p.Evaluate(context.Background(), listing(tc.title, tc.price))
		if err != nil {
			t.Fatalf("Evaluate(%q) failed: %v", tc.title, err)
		}
		if ok != tc.want {
			t.Fatalf("Evaluate(%q, %s)=%v want %v", tc.title, tc.price, ok, tc.want)
		}
	}
}

func TestCriteriaRuleMustCompile(t *testing.T) {
	_, err := NewCriteriaProcessor(&config.CriteriaConfig{
		RequiredKeyword: "thermoball",
		MaxPrice:        decimal.NewFromInt(30),
		Rule:            `title.value + 1 >`,
	})
	if err == nil {
		t.Fatalf("expected compile error")
	}
	_, err = NewCriteriaProcessor(&config.CriteriaConfig{
		RequiredKeyword: "thermoball",
		MaxPrice:        decimal.NewFromInt(30),
		Rule:            `link`,
	})
	if err == nil {
		t.Fatalf("expected non-bool rule to be rejected")
	}
}

func TestCriteriaRuleErrorIsRecordedAsSkip(t *testing.T) {
	p, err := NewCriteriaProcessor(&config.CriteriaConfig{
		RequiredKeyword: "thermoball",
		MaxPrice:        decimal.NewFromInt(30),
		Rule:            `int(price_text) > 0`,
	})
	if err != nil {
		t.Fatalf("NewCriteriaProcessor failed: %v", err)
	}
	block := listing("Thermoball Jacket", "25")
	block.PriceText = "$25.00"
	ok, err := p.Evaluate(context.Background(), block)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if ok {
		t.Fatalf("expected rule error to skip the listing")
	}
	if len(block.Errors) != 1 || block.Errors[0].Stage != core.StageFilter {
		t.Fatalf("expected one filter error, got %#v", block.Errors)
	}
}
