// Package rules provides the CEL-Go based rule evaluation engine.
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine evaluates an ordered set of boolean rules against transaction
// attributes. Rules are independent: every enabled rule is evaluated on
// every call, there is no short-circuiting, and a rule fires at most
// once. Evaluation runs in parallel under a bounded worker pool, but
// fired rules are always reported in declaration order.
type Engine struct {
	mu         sync.RWMutex
	env        *cel.Env
	compiled   []*CompiledRule
	maxWorkers int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// NewEngine creates a rule evaluation engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 5
	}

	// CEL environment with the transaction attributes rules see
	env, err := cel.NewEnv(
		cel.Variable("tx", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("account_age_days", cel.IntType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("kyc_verified", cel.BoolType),
		cel.Variable("channel", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		maxWorkers: maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRules compiles and loads the enabled rules, replacing any
// previously loaded set. Slice order becomes the reporting order.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled := make([]*CompiledRule, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		c, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		compiled = append(compiled, c)
	}

	e.compiled = compiled
	return nil
}

// EvaluateInput holds the transaction attributes for rule evaluation.
type EvaluateInput struct {
	TxID           string
	Amount         float64
	AccountAgeDays int
	Hour           int
	KYCVerified    bool
	Channel        domain.Channel
}

// InputFromTransaction adapts a domain transaction for evaluation.
func InputFromTransaction(tx *domain.Transaction) *EvaluateInput {
	return &EvaluateInput{
		TxID:           tx.ID,
		Amount:         tx.Amount,
		AccountAgeDays: tx.AccountAgeDays,
		Hour:           tx.Hour,
		KYCVerified:    tx.KYCVerified,
		Channel:        tx.Channel,
	}
}

// Evaluate runs every loaded rule against the input and returns the
// rules that fired, in declaration order. A rule whose evaluation
// errors simply does not fire; rules over well-formed inputs are total.
func (e *Engine) Evaluate(ctx context.Context, input *EvaluateInput) []domain.RuleHit {
	e.mu.RLock()
	rules := e.compiled
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"tx": map[string]any{
			"id":               input.TxID,
			"amount":           input.Amount,
			"account_age_days": input.AccountAgeDays,
			"hour":             input.Hour,
			"kyc_verified":     input.KYCVerified,
			"channel":          string(input.Channel),
		},
		"amount":           input.Amount,
		"account_age_days": input.AccountAgeDays,
		"hour":             input.Hour,
		"kyc_verified":     input.KYCVerified,
		"channel":          string(input.Channel),
	}

	// Parallel evaluation using worker pool pattern; results land in
	// their declaration slot so ordering survives the fan-out.
	fired := make([]bool, len(rules))
	elapsed := make([]int64, len(rules))
	var wg sync.WaitGroup

	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			start := time.Now()
			fired[idx] = e.evaluateRule(r, activation)
			elapsed[idx] = time.Since(start).Milliseconds()
		}(i, rule)
	}

	wg.Wait()

	hits := make([]domain.RuleHit, 0, len(rules))
	for i, rule := range rules {
		if !fired[i] {
			continue
		}
		hits = append(hits, domain.RuleHit{
			RuleID:    rule.Config.ID,
			Name:      rule.Config.Name,
			Factor:    rule.Config.Factor,
			ProcessMs: elapsed[i],
		})
	}
	return hits
}

// evaluateRule evaluates a single rule, reporting whether it fired.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any) bool {
	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		return false
	}
	return toBool(out)
}

// toBool converts a CEL value to a fired/not-fired outcome.
func toBool(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// LoadedRules returns the currently loaded rule configurations in
// declaration order.
func (e *Engine) LoadedRules() []*domain.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RuleConfig, 0, len(e.compiled))
	for _, compiled := range e.compiled {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = nil
	return nil
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
