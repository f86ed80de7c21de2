// Package flags provides the CEL-Go based policy flag engine. Policy flags
// are operator-authored boolean expressions over the required applicant
// fields; when a flag fires its reason code is appended to the decision.
// Flags never change the numeric score.
package flags

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/talon/internal/domain"
)

// Engine compiles and evaluates policy flags. Safe for concurrent use;
// ReloadFlags enables hot-reloading from the repository.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledFlags map[string]*CompiledFlag
	maxWorkers    int
}

// CompiledFlag holds a pre-compiled CEL program.
type CompiledFlag struct {
	Config  *domain.FlagConfig
	Program cel.Program
}

// NewEngine creates a policy flag engine with the applicant variable set.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("age", cel.IntType),
		cel.Variable("occupation", cel.StringType),
		cel.Variable("monthly_income", cel.DoubleType),
		cel.Variable("transaction_count_30d", cel.IntType),
		cel.Variable("avg_transaction_amount", cel.DoubleType),
		cel.Variable("location_risk_score", cel.DoubleType),
		cel.Variable("device_change_frequency", cel.IntType),
		cel.Variable("previous_fraud_flag", cel.BoolType),
		cel.Variable("account_age_months", cel.IntType),
		cel.Variable("chargeback_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledFlags: make(map[string]*CompiledFlag),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateFlag compiles a flag without mutating the loaded set.
func (e *Engine) ValidateFlag(cfg *domain.FlagConfig) error {
	if cfg == nil {
		return fmt.Errorf("flag config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileFlag(cfg)
	return err
}

// LoadFlag compiles and loads a flag into the engine.
func (e *Engine) LoadFlag(cfg *domain.FlagConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileFlag(cfg)
	if err != nil {
		return err
	}

	e.compiledFlags[cfg.ID] = compiled
	return nil
}

// LoadFlags compiles and loads multiple enabled flags.
func (e *Engine) LoadFlags(configs []*domain.FlagConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadFlag(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadFlags clears all existing flags and loads new ones.
func (e *Engine) ReloadFlags(configs []*domain.FlagConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newFlags := make(map[string]*CompiledFlag)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileFlag(cfg)
		if err != nil {
			return err
		}
		newFlags[cfg.ID] = compiled
	}

	e.compiledFlags = newFlags
	return nil
}

// EvaluateAll evaluates all loaded flags against the applicant in parallel.
// A flag whose expression errors is reported with Err set and never fires.
func (e *Engine) EvaluateAll(ctx context.Context, a *domain.Applicant) ([]domain.FlagResult, error) {
	e.mu.RLock()
	flagList := make([]*CompiledFlag, 0, len(e.compiledFlags))
	for _, f := range e.compiledFlags {
		flagList = append(flagList, f)
	}
	e.mu.RUnlock()

	if len(flagList) == 0 {
		return nil, nil
	}

	// Stable order so identical inputs yield identical reason code lists.
	sort.Slice(flagList, func(i, j int) bool {
		return flagList[i].Config.ID < flagList[j].Config.ID
	})

	activation := map[string]any{
		"age":                     int64(a.Age),
		"occupation":              a.Occupation,
		"monthly_income":          a.MonthlyIncome,
		"transaction_count_30d":   int64(a.TransactionCount30d),
		"avg_transaction_amount":  a.AvgTransactionAmount,
		"location_risk_score":     a.LocationRiskScore,
		"device_change_frequency": int64(a.DeviceChangeFrequency),
		"previous_fraud_flag":     a.PreviousFraudFlag,
		"account_age_months":      int64(a.AccountAgeMonths),
		"chargeback_count":        int64(a.ChargebackCount),
	}

	results := make([]domain.FlagResult, len(flagList))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, f := range flagList {
		wg.Add(1)
		go func(idx int, cf *CompiledFlag) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = evaluateFlag(cf, activation)
		}(i, f)
	}

	wg.Wait()
	return results, nil
}

func evaluateFlag(cf *CompiledFlag, activation map[string]any) domain.FlagResult {
	result := domain.FlagResult{
		FlagID: cf.Config.ID,
		Code:   cf.Config.Code,
	}

	out, _, err := cf.Program.Eval(activation)
	if err != nil {
		result.Err = fmt.Sprintf("evaluation error: %v", err)
		return result
	}

	if fired, ok := out.(types.Bool); ok {
		result.Fired = bool(fired)
	}
	return result
}

// FlagsCount returns the number of loaded flags.
func (e *Engine) FlagsCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledFlags)
}

// GetLoadedFlags returns the currently loaded flag configurations.
func (e *Engine) GetLoadedFlags() []*domain.FlagConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	configs := make([]*domain.FlagConfig, 0, len(e.compiledFlags))
	for _, f := range e.compiledFlags {
		configs = append(configs, f.Config)
	}
	return configs
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledFlags = make(map[string]*CompiledFlag)
	return nil
}

func (e *Engine) compileFlag(cfg *domain.FlagConfig) (*CompiledFlag, error) {
	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile flag %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("flag %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for flag %s: %w", cfg.ID, err)
	}

	return &CompiledFlag{Config: cfg, Program: program}, nil
}

// ApplyFlags appends fired flag codes to the built-in reason codes in a
// deterministic order, deduplicating against codes already present.
func ApplyFlags(codes []string, results []domain.FlagResult) []string {
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		seen[c] = true
	}
	for _, r := range results {
		if r.Fired && r.Code != "" && !seen[r.Code] {
			codes = append(codes, r.Code)
			seen[r.Code] = true
		}
	}
	return codes
}
