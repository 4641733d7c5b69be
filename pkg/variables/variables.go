// Package variables stores current variable values per scope together with an
// append-only history of every write.
package variables

import (
	"cmp"
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/google/uuid"
)

// Committer is the slice of persistence the store needs.
type Committer interface {
	Commit(ctx context.Context, batch *persistence.Batch) error
}

// Store holds variables keyed by scope. A scope is a process instance ID or a task ID.
//
// Writes go through a Change: stage, commit its batch, then Apply. Callers that write
// the same scope concurrently must serialise around that sequence; the engine does so
// with its per-instance lock, and the Set* helpers below with writeMu.
type Store struct {
	logger    *slog.Logger
	committer Committer
	now       func() time.Time

	sequence atomic.Int64
	writeMu  sync.Mutex

	mu      sync.RWMutex
	scopes  map[string]map[string]*models.Variable
	history []*models.HistoricVariableUpdate // ascending by Sequence
}

// New creates an empty store.
func New(logger *slog.Logger, committer Committer) *Store {
	return &Store{
		logger:    logger,
		committer: committer,
		now:       func() time.Time { return time.Now().UTC() },
		scopes:    make(map[string]map[string]*models.Variable),
	}
}

// Restore loads persisted variables and history.
func (s *Store) Restore(snapshot *persistence.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, variable := range snapshot.Variables {
		s.put(variable)
	}

	s.history = append(s.history, snapshot.History...)

	for _, update := range snapshot.History {
		if update.Sequence > s.sequence.Load() {
			s.sequence.Store(update.Sequence)
		}
	}
}

// Get returns the current value of one variable.
func (s *Store) Get(scopeID, name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	variable, ok := s.scopes[scopeID][name]
	if !ok {
		return nil, false
	}

	return variable.Value, true
}

// GetAll returns a copy of every current value in the scope. It is never nil.
func (s *Store) GetAll(scopeID string) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values := make(map[string]any, len(s.scopes[scopeID]))
	for name, variable := range s.scopes[scopeID] {
		values[name] = variable.Value
	}

	return values
}

// Variables returns the current variable records of a scope ordered by name.
func (s *Store) Variables(scopeID string) []models.Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Variable, 0, len(s.scopes[scopeID]))
	for _, variable := range s.scopes[scopeID] {
		result = append(result, *variable)
	}

	slices.SortFunc(result, func(a, b models.Variable) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return result
}

// Set writes one variable.
func (s *Store) Set(ctx context.Context, scopeID, instanceID, name string, value any) error {
	return s.SetAll(ctx, scopeID, instanceID, map[string]any{name: value})
}

// SetAll writes every value of the mapping to the scope in one commit.
func (s *Store) SetAll(ctx context.Context, scopeID, instanceID string, values map[string]any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	change := s.Begin()
	if err := change.Set(scopeID, instanceID, "", values); err != nil {
		return models.NewEngineError("SetVariables", "scope", scopeID, err)
	}

	return s.commit(ctx, "SetVariables", scopeID, change)
}

// MergeInto writes source over the target scope; source wins on collisions.
func (s *Store) MergeInto(ctx context.Context, targetScopeID, instanceID string, source map[string]any) error {
	return s.SetAll(ctx, targetScopeID, instanceID, source)
}

func (s *Store) commit(ctx context.Context, op, scopeID string, change *Change) error {
	if change.Empty() {
		return nil
	}

	if err := s.committer.Commit(ctx, change.Batch()); err != nil {
		return models.NewEngineError(op, "scope", scopeID, err)
	}

	s.Apply(change)

	return nil
}

// History returns every write recorded for the process instance, oldest first.
func (s *Store) History(instanceID string) []*models.HistoricVariableUpdate {
	return s.filterHistory(func(update *models.HistoricVariableUpdate) bool {
		return update.InstanceID == instanceID
	})
}

// HistoryByScope returns every write recorded for one scope, oldest first.
func (s *Store) HistoryByScope(scopeID string) []*models.HistoricVariableUpdate {
	return s.filterHistory(func(update *models.HistoricVariableUpdate) bool {
		return update.ScopeID == scopeID
	})
}

func (s *Store) filterHistory(match func(*models.HistoricVariableUpdate) bool) []*models.HistoricVariableUpdate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.HistoricVariableUpdate

	for _, update := range s.history {
		if match(update) {
			result = append(result, update)
		}
	}

	return result
}

// PruneHistory deletes history records written before the cutoff and returns how
// many were removed. Current values are never touched.
func (s *Store) PruneHistory(ctx context.Context, before time.Time) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()

	batch := persistence.NewBatch()
	pruned := make(map[string]struct{})

	for _, update := range s.history {
		if update.Time.Before(before) {
			batch.DeleteHistory(update.ID)
			pruned[update.ID] = struct{}{}
		}
	}

	s.mu.RUnlock()

	if len(pruned) == 0 {
		return 0, nil
	}

	if err := s.committer.Commit(ctx, batch); err != nil {
		return 0, models.NewEngineError("PruneHistory", "variable history", "", err)
	}

	s.mu.Lock()
	s.history = slices.DeleteFunc(s.history, func(update *models.HistoricVariableUpdate) bool {
		_, ok := pruned[update.ID]

		return ok
	})
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Pruned variable history", "records", len(pruned), "before", before)

	return len(pruned), nil
}

// Begin starts a change against the current state.
func (s *Store) Begin() *Change {
	return &Change{store: s, pending: make(map[string]*models.Variable)}
}

// Apply makes a committed change visible.
func (s *Store) Apply(change *Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, variable := range change.variables {
		s.put(variable)
	}

	for _, scopeID := range change.deletedScopes {
		delete(s.scopes, scopeID)
	}

	s.history = append(s.history, change.history...)
}

func (s *Store) put(variable *models.Variable) {
	scope, ok := s.scopes[variable.ScopeID]
	if !ok {
		scope = make(map[string]*models.Variable)
		s.scopes[variable.ScopeID] = scope
	}

	scope[variable.Name] = variable
}

func (s *Store) current(scopeID, name string) *models.Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scopes[scopeID][name]
}

func (s *Store) names(scopeID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Collect(maps.Keys(s.scopes[scopeID]))
}

// Change is a set of staged variable writes and scope deletions.
type Change struct {
	store         *Store
	variables     []*models.Variable
	history       []*models.HistoricVariableUpdate
	deletedScopes []string
	pending       map[string]*models.Variable
}

// Set stages writes of values into a scope. taskID names the task the write is
// attributed to in history, if any.
func (c *Change) Set(scopeID, instanceID, taskID string, values map[string]any) error {
	normalized, err := models.NormalizeVariables(values)
	if err != nil {
		return err
	}

	now := c.store.now()

	for _, name := range slices.Sorted(maps.Keys(normalized)) {
		revision := 1
		if previous := c.latest(scopeID, name); previous != nil {
			revision = previous.Revision + 1
		}

		variable := &models.Variable{
			ScopeID:    scopeID,
			InstanceID: instanceID,
			Name:       name,
			Value:      normalized[name],
			Revision:   revision,
			UpdatedAt:  now,
		}

		c.variables = append(c.variables, variable)
		c.pending[variable.Key()] = variable

		c.history = append(c.history, &models.HistoricVariableUpdate{
			ID:         uuid.NewString(),
			ScopeID:    scopeID,
			InstanceID: instanceID,
			TaskID:     taskID,
			Name:       name,
			Value:      variable.Value,
			Revision:   revision,
			Sequence:   c.store.sequence.Add(1),
			Time:       now,
		})
	}

	return nil
}

// DeleteScope stages removal of every current value in the scope. History is kept.
// Deletions apply after all staged writes.
func (c *Change) DeleteScope(scopeID string) {
	c.deletedScopes = append(c.deletedScopes, scopeID)
}

func (c *Change) latest(scopeID, name string) *models.Variable {
	if variable, ok := c.pending[models.VariableKey(scopeID, name)]; ok {
		return variable
	}

	return c.store.current(scopeID, name)
}

// Updates returns the history records the change will append.
func (c *Change) Updates() []*models.HistoricVariableUpdate {
	return c.history
}

// Empty reports whether nothing is staged.
func (c *Change) Empty() bool {
	return len(c.variables) == 0 && len(c.deletedScopes) == 0
}

// Batch renders the change as persistence operations.
func (c *Change) Batch() *persistence.Batch {
	batch := persistence.NewBatch()

	for _, variable := range c.variables {
		batch.SaveVariable(variable)
	}

	for _, update := range c.history {
		batch.AppendHistory(update)
	}

	for _, scopeID := range c.deletedScopes {
		names := c.store.names(scopeID)

		for _, variable := range c.variables {
			if variable.ScopeID == scopeID && !slices.Contains(names, variable.Name) {
				names = append(names, variable.Name)
			}
		}

		for _, name := range names {
			batch.DeleteVariable(scopeID, name)
		}
	}

	return batch
}
