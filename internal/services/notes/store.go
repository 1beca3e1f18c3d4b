package notes

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
)

// ErrNotFound is returned by Store.Get for an id that holds no note.
var ErrNotFound = stderrors.New("note not found")

// Note is a titled text note.
type Note struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Store persists notes. Ids are sequential decimal strings starting at "1",
// and List returns notes in id order.
type Store interface {
	List(ctx context.Context) ([]*Note, error)
	Get(ctx context.Context, id string) (*Note, error)
	Create(ctx context.Context, title, content string) (*Note, error)
	Close() error
}

// Compile-time verification that every backend implements Store.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// DefaultNotes are the notes a fresh server starts with.
func DefaultNotes() []Note {
	return []Note{
		{Title: "First Note", Content: "This is note 1"},
		{Title: "Second Note", Content: "This is note 2"},
	}
}

// Seed creates notes in s when it is empty.
func Seed(ctx context.Context, s Store, notes ...Note) error {
	existing, err := s.List(ctx)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		return nil
	}

	for _, n := range notes {
		if _, err := s.Create(ctx, n.Title, n.Content); err != nil {
			return err
		}
	}

	return nil
}

// MemoryStore keeps notes in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	notes []*Note
}

// NewMemoryStore creates a store holding the given notes, numbered from 1.
func NewMemoryStore(seed ...Note) *MemoryStore {
	s := &MemoryStore{notes: make([]*Note, 0, len(seed))}

	for _, n := range seed {
		s.append(n.Title, n.Content)
	}

	return s
}

func (s *MemoryStore) append(title, content string) *Note {
	n := &Note{ID: strconv.Itoa(len(s.notes) + 1), Title: title, Content: content}
	s.notes = append(s.notes, n)

	return n
}

// List returns copies of all notes.
func (s *MemoryStore) List(context.Context) ([]*Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Note, 0, len(s.notes))
	for _, n := range s.notes {
		c := *n
		out = append(out, &c)
	}

	return out, nil
}

// Get returns a copy of the note with the given id.
func (s *MemoryStore) Get(_ context.Context, id string) (*Note, error) {
	idx, err := strconv.Atoi(id)
	if err != nil {
		return nil, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx < 1 || idx > len(s.notes) {
		return nil, ErrNotFound
	}

	c := *s.notes[idx-1]

	return &c, nil
}

// Create appends a note.
func (s *MemoryStore) Create(_ context.Context, title, content string) (*Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *s.append(title, content)

	return &c, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
