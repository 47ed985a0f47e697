package store

import (
	"context"
	"maps"
	"sort"
	"sync"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]*ChatMessage
	order    []string
	logs     []AutomationLog
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string]*ChatMessage)}
}

func (s *MemoryStore) SaveMessage(_ context.Context, msg *ChatMessage) error {
	prepareMessage(msg)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[msg.ID]; !exists {
		s.order = append(s.order, msg.ID)
	}
	c := cloneMessage(*msg)
	s.messages[msg.ID] = &c
	return nil
}

func (s *MemoryStore) GetMessage(_ context.Context, id string) (*ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneMessage(*msg)
	return &c, nil
}

func (s *MemoryStore) UpdateApproval(_ context.Context, id string, update ApprovalUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return ErrNotFound
	}
	approved := update.Approved
	msg.Approved = &approved
	if update.Approved {
		msg.N8NResponse = maps.Clone(update.N8NResponse)
		msg.EditedData = maps.Clone(update.EditedData)
	}
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ChatMessage
	for _, id := range s.order {
		if msg := s.messages[id]; msg.SessionID == sessionID {
			out = append(out, cloneMessage(*msg))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit = limitOr(limit, DefaultHistoryLimit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ClearHistory(_ context.Context, sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	kept := s.order[:0]
	for _, id := range s.order {
		if s.messages[id].SessionID == sessionID {
			delete(s.messages, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return deleted, nil
}

func (s *MemoryStore) SaveAutomationLog(_ context.Context, log *AutomationLog) error {
	prepareLog(log)

	s.mu.Lock()
	defer s.mu.Unlock()

	c := *log
	c.Parameters = maps.Clone(log.Parameters)
	c.Result = maps.Clone(log.Result)
	s.logs = append(s.logs, c)
	return nil
}

func (s *MemoryStore) AutomationHistory(_ context.Context, sessionID string, limit int) ([]AutomationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []AutomationLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].SessionID == sessionID {
			out = append(out, s.logs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit = limitOr(limit, DefaultAutomationHistoryLimit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func cloneMessage(m ChatMessage) ChatMessage {
	m.IntentData = maps.Clone(m.IntentData)
	m.N8NResponse = maps.Clone(m.N8NResponse)
	m.EditedData = maps.Clone(m.EditedData)
	if m.Approved != nil {
		v := *m.Approved
		m.Approved = &v
	}
	return m
}
