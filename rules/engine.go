package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// costLimit bounds the work a single rule may do per evaluation.
const costLimit = 1000000

// Engine compiles risk-factor rules to CEL programs and evaluates them
// against prediction facts. Safe for concurrent use.
type Engine struct {
	env      *cel.Env
	store    RuleStore
	cache    RulesCache
	programs map[string]cel.Program // ruleID -> compiled program
	mu       sync.RWMutex
}

// NewEnv declares the fact variables rules can reference.
func NewEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable(ApplicantVar, cel.DynType),
		cel.Variable(PredictionVar, cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewEngine creates an engine over store and compiles its active rules.
func NewEngine(store RuleStore, config CacheConfig) (*Engine, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, err
	}

	en := &Engine{
		env:      env,
		store:    store,
		cache:    NewInMemoryRulesCache(config),
		programs: make(map[string]cel.Program),
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", out)
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
		cel.InterruptCheckFrequency(100),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// CompileRule compiles expression and caches the program under ruleID.
func (en *Engine) CompileRule(ruleID, expression string) error {
	prog, err := en.compile(expression)
	if err != nil {
		return err
	}

	en.mu.Lock()
	en.programs[ruleID] = prog
	en.mu.Unlock()

	return nil
}

// CompileAllRules compiles every active rule in the store and primes the cache.
func (en *Engine) CompileAllRules() error {
	active, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, rule := range active {
		if err := en.CompileRule(rule.ID, rule.Expression); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	en.cache.Set(active)
	return nil
}

func (en *Engine) eval(ctx context.Context, rule *Rule, prog cel.Program, facts map[string]any) *EvaluationResult {
	result := &EvaluationResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
	}

	if prog == nil {
		result.Error = fmt.Errorf("rule %s is not compiled", rule.ID)
		return result
	}

	out, details, err := prog.ContextEval(ctx, facts)
	if err != nil {
		result.Error = err
		return result
	}

	// Non-boolean results never match.
	if matched, ok := out.Value().(bool); ok {
		result.Matched = matched
	}
	if details != nil {
		result.Trace = details.State()
	}
	return result
}

// Evaluate runs a single rule against facts.
func (en *Engine) Evaluate(ctx context.Context, ruleID string, facts map[string]any) (*EvaluationResult, error) {
	en.mu.RLock()
	rule, err := en.store.Get(ruleID)
	prog := en.programs[ruleID]
	en.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	result := en.eval(ctx, rule, prog, facts)
	return result, result.Error
}

// EvaluateAll runs every active rule. A failing rule is reported in its
// result and does not stop the others.
func (en *Engine) EvaluateAll(ctx context.Context, facts map[string]any) ([]*EvaluationResult, error) {
	// Rules and programs are read together so a concurrent write is seen
	// either entirely or not at all.
	en.mu.RLock()
	active := en.cache.Get()
	if active == nil {
		var err error
		active, err = en.store.ListActive()
		if err != nil {
			en.mu.RUnlock()
			return nil, err
		}
		en.cache.Set(active)
	}
	progs := make([]cel.Program, len(active))
	for i, rule := range active {
		progs[i] = en.programs[rule.ID]
	}
	en.mu.RUnlock()

	results := make([]*EvaluationResult, 0, len(active))
	for i, rule := range active {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, en.eval(ctx, rule, progs[i], facts))
	}
	return results, nil
}

// MatchedFactors returns the names of active rules that match facts, in rule
// order. Rules that fail to evaluate are skipped; the first such error is
// returned alongside the matches.
func (en *Engine) MatchedFactors(ctx context.Context, facts map[string]any) ([]string, error) {
	results, err := en.EvaluateAll(ctx, facts)
	if err != nil {
		return nil, err
	}

	var (
		names    []string
		firstErr error
	)
	for _, r := range results {
		if r.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("rule %s: %w", r.RuleID, r.Error)
			}
			continue
		}
		if r.Matched {
			names = append(names, r.RuleName)
		}
	}
	return names, firstErr
}

// AddRule validates and compiles r, then stores it.
func (en *Engine) AddRule(r *Rule) error {
	if err := ValidateRule(r); err != nil {
		return err
	}

	prog, err := en.compile(r.Expression)
	if err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	if err := en.store.Add(r); err != nil {
		return err
	}
	en.programs[r.ID] = prog
	en.cache.Invalidate()
	return nil
}

// UpdateRule recompiles and replaces an existing rule. The previous program
// stays in place if validation or the store update fails.
func (en *Engine) UpdateRule(r *Rule) error {
	if err := ValidateRule(r); err != nil {
		return err
	}

	prog, err := en.compile(r.Expression)
	if err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	if err := en.store.Update(r); err != nil {
		return err
	}
	en.programs[r.ID] = prog
	en.cache.Invalidate()
	return nil
}

// DeleteRule removes a rule and its compiled program.
func (en *Engine) DeleteRule(ruleID string) error {
	en.mu.Lock()
	defer en.mu.Unlock()

	if err := en.store.Delete(ruleID); err != nil {
		return err
	}
	delete(en.programs, ruleID)
	en.cache.Invalidate()
	return nil
}

// Rules lists all stored rules.
func (en *Engine) Rules() ([]*Rule, error) {
	return en.store.List()
}

// Rule returns one stored rule.
func (en *Engine) Rule(ruleID string) (*Rule, error) {
	return en.store.Get(ruleID)
}

// ReplaceRules swaps the whole rule set. Nothing changes unless every rule
// validates and compiles.
func (en *Engine) ReplaceRules(rules []*Rule) error {
	programs := make(map[string]cel.Program, len(rules))
	for _, r := range rules {
		if err := ValidateRule(r); err != nil {
			return err
		}
		if _, dup := programs[r.ID]; dup {
			return fmt.Errorf("rule %s: %w", r.ID, ErrRuleExists)
		}
		prog, err := en.compile(r.Expression)
		if err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", r.ID, err)
		}
		programs[r.ID] = prog
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	existing, err := en.store.List()
	if err != nil {
		return err
	}
	for _, r := range existing {
		if err := en.store.Delete(r.ID); err != nil {
			return err
		}
	}
	for _, r := range rules {
		if err := en.store.Add(r); err != nil {
			return err
		}
	}

	en.programs = programs
	en.cache.Invalidate()
	return nil
}
