package quality

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bakkerme/dealwatch/internal/core"
)

func compileRule(rule string) (*vm.Program, error) {
	program, err := expr.Compile(rule, expr.Env(ruleEnv(&core.ListingBlock{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile criteria rule: %w", err)
	}
	return program, nil
}

func runRule(program *vm.Program, block *core.ListingBlock) (bool, error) {
	result, err := expr.Run(program, ruleEnv(block))
	if err != nil {
		return false, fmt.Errorf("run criteria rule: %w", err)
	}
	passed, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("criteria rule did not return bool")
	}
	return passed, nil
}

func ruleEnv(block *core.ListingBlock) map[string]interface{} {
	return map[string]interface{}{
		"title": map[string]interface{}{
			"value":  block.Title,
			"length": len(block.Title),
		},
		"price":      block.Price.InexactFloat64(),
		"price_text": block.PriceText,
		"link":       block.Link,
		"source":     block.Source,
	}
}
