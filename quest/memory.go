package quest

import (
	"context"
	"sync"

	"github.com/neighborly/points-engine/ledger"
)

// =============================================================================
// MEMORY CATALOG / PROGRESS STORE - for tests and dev
// =============================================================================

// MemoryCatalog is a fixed in-memory definition catalog.
type MemoryCatalog struct {
	mu           sync.RWMutex
	quests       map[QuestID]Definition
	achievements map[AchievementID]Achievement
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		quests:       make(map[QuestID]Definition),
		achievements: make(map[AchievementID]Achievement),
	}
}

func (c *MemoryCatalog) PutQuest(d Definition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quests[d.ID] = d
}

func (c *MemoryCatalog) PutAchievement(a Achievement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.achievements[a.ID] = a
}

func (c *MemoryCatalog) Quest(_ context.Context, id QuestID) (*Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.quests[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (c *MemoryCatalog) Quests(_ context.Context) ([]Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]Definition, 0, len(c.quests))
	for _, d := range c.quests {
		defs = append(defs, d)
	}
	return defs, nil
}

func (c *MemoryCatalog) Achievement(_ context.Context, id AchievementID) (*Achievement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.achievements[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// MemoryProgressStore keeps progress and unlocks in maps.
type MemoryProgressStore struct {
	mu       sync.RWMutex
	progress map[progressKey]Progress
	unlocks  map[progressKey]Unlock
}

type progressKey struct {
	User ledger.UserID
	ID   string
}

func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{
		progress: make(map[progressKey]Progress),
		unlocks:  make(map[progressKey]Unlock),
	}
}

func (s *MemoryProgressStore) Progress(_ context.Context, user ledger.UserID, quest QuestID) (*Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[progressKey{User: user, ID: string(quest)}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryProgressStore) SaveProgress(_ context.Context, p Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[progressKey{User: p.UserID, ID: string(p.QuestID)}] = p
	return nil
}

func (s *MemoryProgressStore) ProgressByUser(_ context.Context, user ledger.UserID) ([]Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Progress
	for k, p := range s.progress {
		if k.User == user {
			result = append(result, p)
		}
	}
	return result, nil
}

func (s *MemoryProgressStore) Unlocked(_ context.Context, user ledger.UserID, achievement AchievementID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.unlocks[progressKey{User: user, ID: string(achievement)}]
	return ok, nil
}

func (s *MemoryProgressStore) SaveUnlock(_ context.Context, u Unlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlocks[progressKey{User: u.UserID, ID: string(u.AchievementID)}] = u
	return nil
}
