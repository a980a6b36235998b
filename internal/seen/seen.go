// Package seen tracks which news item IDs have already been handled so a
// restart does not re-notify on the same items. Membership is mirrored to a
// flat file, one ID per line, appended after each successful notification.
package seen

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// DefaultCap is how many IDs the backing file keeps after a trim.
const DefaultCap = 500

type Set struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	path string
	cap  int
}

// Load hydrates a Set from path. A missing file yields an empty set; the
// file is created on the first Add.
func Load(path string) (*Set, error) {
	s := &Set{
		ids:  make(map[string]struct{}),
		path: path,
		cap:  DefaultCap,
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open seen file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			s.ids[id] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read seen file: %w", err)
	}
	return s, nil
}

// Contains reports whether id has already been handled.
func (s *Set) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Add records id in memory and appends it to the backing file. Adding an
// already-present id is a no-op.
func (s *Set) Add(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return nil
	}
	s.ids[id] = struct{}{}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("append seen file: %w", err)
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, id)
	return err
}

// Len returns the number of remembered IDs.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Trim rewrites the backing file keeping only the last cap lines so the file
// does not grow without bound. The in-memory set shrinks to match, which is
// safe: feeds rotate, so an evicted ID will not be refetched in practice.
func (s *Set) Trim() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) <= s.cap {
		return nil
	}

	kept := lines[len(lines)-s.cap:]
	if err := os.WriteFile(s.path, []byte(strings.Join(kept, "\n")+"\n"), 0o644); err != nil {
		return err
	}

	s.ids = make(map[string]struct{}, len(kept))
	for _, id := range kept {
		if id = strings.TrimSpace(id); id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return nil
}
