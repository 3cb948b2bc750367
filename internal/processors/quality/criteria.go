package quality

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"

	"github.com/bakkerme/dealwatch/internal/config"
	"github.com/bakkerme/dealwatch/internal/core"
)

// Criteria is the keyword and price rule set defining a match.
type Criteria struct {
	RequiredKeyword  string
	MaxPrice         decimal.Decimal
	ExcludedKeywords []string
}

// Matches reports whether the listing satisfies c. Keyword checks are
// case-insensitive substring tests with no word boundaries, so an excluded
// "vest" also rejects "harvest". The price bound is inclusive.
func Matches(listing *core.ListingBlock, c Criteria) bool {
	ok, _ := match(listing, c)
	return ok
}

func match(listing *core.ListingBlock, c Criteria) (bool, string) {
	if listing == nil {
		return false, "no listing"
	}
	title := strings.ToLower(listing.Title)
	if !strings.Contains(title, strings.ToLower(c.RequiredKeyword)) {
		return false, fmt.Sprintf("title lacks %q", c.RequiredKeyword)
	}
	if listing.Price.GreaterThan(c.MaxPrice) {
		return false, fmt.Sprintf("price %s above %s", listing.Price, c.MaxPrice)
	}
	for _, kw := range c.ExcludedKeywords {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return false, fmt.Sprintf("title contains excluded %q", kw)
		}
	}
	return true, ""
}

// CriteriaProcessor is the pipeline's filter stage: Matches plus an optional
// expr rule that can only narrow the result.
type CriteriaProcessor struct {
	name     string
	criteria Criteria
	rule     string
	program  *vm.Program
}

// Compile-time check that CriteriaProcessor implements core.FilterProcessor.
var _ core.FilterProcessor = (*CriteriaProcessor)(nil)

func NewCriteriaProcessor(cfg *config.CriteriaConfig) (*CriteriaProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("criteria config is required")
	}
	p := &CriteriaProcessor{
		name: "criteria",
		criteria: Criteria{
			RequiredKeyword:  cfg.RequiredKeyword,
			MaxPrice:         cfg.MaxPrice,
			ExcludedKeywords: append([]string(nil), cfg.ExcludedKeywords...),
		},
		rule: strings.TrimSpace(cfg.Rule),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.rule != "" {
		program, err := compileRule(p.rule)
		if err != nil {
			return nil, err
		}
		p.program = program
	}
	return p, nil
}

func (p *CriteriaProcessor) Name() string {
	return p.name
}

func (p *CriteriaProcessor) Validate() error {
	if p.criteria.RequiredKeyword == "" {
		return fmt.Errorf("required keyword is required")
	}
	if !p.criteria.MaxPrice.IsPositive() {
		return fmt.Errorf("max price must be positive")
	}
	return nil
}

// Evaluate records a MatchResult on block. A failing rule is recorded as a
// block error and the listing is treated as not matching.
func (p *CriteriaProcessor) Evaluate(ctx context.Context, block *core.ListingBlock) (bool, error) {
	if block == nil {
		return false, fmt.Errorf("listing is required")
	}
	ok, reason := match(block, p.criteria)
	if ok && p.program != nil {
		passed, err := runRule(p.program, block)
		if err != nil {
			core.LoggerFromContext(ctx).Warn("Criteria rule failed", slog.String("link", block.Link), slog.String("error", err.Error()))
			block.Errors = append(block.Errors, core.NewProcessError(p.name, core.StageFilter, block.Link, err))
			ok, reason = false, "rule error"
		} else if !passed {
			ok, reason = false, "rule rejected"
		}
	}

	result := core.MatchResultSkip
	if ok {
		result = core.MatchResultMatch
	}
	block.Match = &core.MatchResult{
		ProcessorName: p.name,
		Result:        result,
		Reason:        reason,
		ProcessedAt:   time.Now().UTC(),
	}
	return ok, nil
}
