package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/javajack/sheetform"
)

// upload is one resolved workbook waiting to be filled.
type upload struct {
	ID       string
	FileName string
	Received time.Time
	Batch    *sheetform.Batch
}

// uploadStore keeps the most recent uploads in memory, keyed by id.
// Adding beyond max evicts the oldest.
type uploadStore struct {
	mu    sync.Mutex
	max   int
	byID  map[string]*upload
	order []string
}

func newUploadStore(max int) *uploadStore {
	if max < 1 {
		max = 1
	}
	return &uploadStore{max: max, byID: make(map[string]*upload)}
}

// add stores batch under a new id and returns the upload.
func (s *uploadStore) add(fileName string, batch *sheetform.Batch) *upload {
	u := &upload{
		ID:       uuid.NewString(),
		FileName: fileName,
		Received: time.Now().UTC(),
		Batch:    batch,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[u.ID] = u
	s.order = append(s.order, u.ID)
	for len(s.order) > s.max {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
	return u
}

func (s *uploadStore) get(id string) (*upload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	return u, ok
}

func (s *uploadStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
