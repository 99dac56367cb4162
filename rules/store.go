package rules

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrRuleNotFound is returned when a rule ID is not in the store.
var ErrRuleNotFound = errors.New("rule not found")

// ErrRuleExists is returned when adding a rule whose ID is taken.
var ErrRuleExists = errors.New("rule already exists")

// RuleStore holds risk-factor rule definitions.
type RuleStore interface {
	Add(rule *Rule) error
	Get(id string) (*Rule, error)
	// List returns every rule, active or not, oldest first.
	List() ([]*Rule, error)
	// ListActive returns active rules, oldest first.
	ListActive() ([]*Rule, error)
	Update(rule *Rule) error
	Delete(id string) error
}

// InMemoryRuleStore keeps rules in a map for the lifetime of the process.
// Safe for concurrent use.
type InMemoryRuleStore struct {
	rules map[string]*Rule
	seq   map[string]uint64 // insertion order
	next  uint64
	mu    sync.RWMutex
}

// NewInMemoryRuleStore creates an empty store.
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		rules: make(map[string]*Rule),
		seq:   make(map[string]uint64),
	}
}

// Add stores a new rule and stamps CreatedAt and UpdatedAt.
func (s *InMemoryRuleStore) Add(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrRuleExists)
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.rules[rule.ID] = rule
	s.next++
	s.seq[rule.ID] = s.next
	return nil
}

// Get retrieves a rule by ID.
func (s *InMemoryRuleStore) Get(id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[id]
	if !exists {
		return nil, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	return rule, nil
}

func (s *InMemoryRuleStore) List() ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		all = append(all, rule)
	}
	s.sortRules(all)
	return all, nil
}

func (s *InMemoryRuleStore) ListActive() ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*Rule
	for _, rule := range s.rules {
		if rule.Active {
			active = append(active, rule)
		}
	}
	s.sortRules(active)
	return active, nil
}

// Update replaces an existing rule, keeping its original CreatedAt.
func (s *InMemoryRuleStore) Update(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rules[rule.ID]
	if !exists {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrRuleNotFound)
	}

	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()
	s.rules[rule.ID] = rule
	return nil
}

func (s *InMemoryRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[id]; !exists {
		return fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}

	delete(s.rules, id)
	delete(s.seq, id)
	return nil
}

// sortRules orders by insertion so factor lists are stable. Callers hold mu.
func (s *InMemoryRuleStore) sortRules(rules []*Rule) {
	sort.Slice(rules, func(i, j int) bool {
		return s.seq[rules[i].ID] < s.seq[rules[j].ID]
	})
}
