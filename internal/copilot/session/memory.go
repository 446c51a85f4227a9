package session

import (
	"context"
	"sync"
)

// MemoryStore is the default, process-lifetime session store. A restart loses
// all session history; that is an accepted limitation at this scale.
type MemoryStore struct {
	mu                sync.RWMutex
	messages          map[string][]string
	aiMessages        map[string][]string
	followUpQuestions map[string][][]string
	selectedResponses map[string]map[string]string
	selectedOrder     map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages:          make(map[string][]string),
		aiMessages:        make(map[string][]string),
		followUpQuestions: make(map[string][][]string),
		selectedResponses: make(map[string]map[string]string),
		selectedOrder:     make(map[string][]string),
	}
}

func (s *MemoryStore) AddMessage(_ context.Context, sessionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sessionID] = append(s.messages[sessionID], text)
	return nil
}

func (s *MemoryStore) Messages(_ context.Context, sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStrings(s.messages[sessionID]), nil
}

func (s *MemoryStore) AddAIMessage(_ context.Context, sessionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiMessages[sessionID] = append(s.aiMessages[sessionID], text)
	return nil
}

func (s *MemoryStore) AIMessages(_ context.Context, sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStrings(s.aiMessages[sessionID]), nil
}

func (s *MemoryStore) AddFollowUpQuestions(_ context.Context, sessionID string, questions []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followUpQuestions[sessionID] = append(s.followUpQuestions[sessionID], copyStrings(questions))
	return nil
}

func (s *MemoryStore) FollowUpQuestions(_ context.Context, sessionID string) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batches := make([][]string, 0, len(s.followUpQuestions[sessionID]))
	for _, batch := range s.followUpQuestions[sessionID] {
		batches = append(batches, copyStrings(batch))
	}
	return batches, nil
}

func (s *MemoryStore) AddSelectedResponse(_ context.Context, sessionID, question, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectedResponses[sessionID] == nil {
		s.selectedResponses[sessionID] = make(map[string]string)
	}
	if _, exists := s.selectedResponses[sessionID][question]; !exists {
		s.selectedOrder[sessionID] = append(s.selectedOrder[sessionID], question)
	}
	s.selectedResponses[sessionID][question] = response
	return nil
}

func (s *MemoryStore) SelectedQuestions(_ context.Context, sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStrings(s.selectedOrder[sessionID]), nil
}

func (s *MemoryStore) SelectedResponse(_ context.Context, sessionID, question string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	response, ok := s.selectedResponses[sessionID][question]
	return response, ok, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = make(map[string][]string)
	s.aiMessages = make(map[string][]string)
	s.followUpQuestions = make(map[string][][]string)
	s.selectedResponses = make(map[string]map[string]string)
	s.selectedOrder = make(map[string][]string)
	return nil
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

var _ Store = (*MemoryStore)(nil)
