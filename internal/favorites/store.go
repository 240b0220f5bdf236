// ABOUTME: In-memory ordered mapping of tags to saved queries
// ABOUTME: Keeps the order list and the mapping over exactly the same tag set

package favorites

import (
	"fmt"
	"sort"
)

// Entry is one saved search in display order.
type Entry struct {
	Tag   string
	Query string
}

// OrderedStore holds the tag order and the tag->query mapping.
// It is not safe for concurrent use.
type OrderedStore struct {
	tags     []string
	searches map[string]string
}

// NewOrderedStore creates an empty store.
func NewOrderedStore() *OrderedStore {
	return &OrderedStore{searches: make(map[string]string)}
}

// Restore replaces the contents with loaded data, repairing any disagreement
// between the two blobs: tags without a query and repeated tags are dropped
// from the order, and mapped tags missing from the order are appended in
// sorted order.
func (s *OrderedStore) Restore(order []string, mapping map[string]string) {
	s.searches = make(map[string]string, len(mapping))
	for tag, query := range mapping {
		s.searches[tag] = query
	}

	s.tags = make([]string, 0, len(mapping))
	seen := make(map[string]bool, len(mapping))
	for _, tag := range order {
		if _, ok := s.searches[tag]; !ok || seen[tag] {
			continue
		}
		seen[tag] = true
		s.tags = append(s.tags, tag)
	}

	var missing []string
	for tag := range s.searches {
		if !seen[tag] {
			missing = append(missing, tag)
		}
	}
	sort.Strings(missing)
	s.tags = append(s.tags, missing...)
}

// Count returns the number of saved searches.
func (s *OrderedStore) Count() int {
	return len(s.tags)
}

// TagAt returns the tag displayed at index.
func (s *OrderedStore) TagAt(index int) (string, error) {
	if err := s.checkIndex(index); err != nil {
		return "", err
	}
	return s.tags[index], nil
}

// QueryFor returns the query saved under tag.
func (s *OrderedStore) QueryFor(tag string) (string, bool) {
	query, ok := s.searches[tag]
	return query, ok
}

// QueryAt returns the query of the tag displayed at index.
func (s *OrderedStore) QueryAt(index int) (string, bool, error) {
	tag, err := s.TagAt(index)
	if err != nil {
		return "", false, err
	}
	query, ok := s.searches[tag]
	return query, ok, nil
}

// Upsert saves query under tag. A new tag goes to the front of the order; an
// existing tag keeps its position. Reports whether the tag was new.
func (s *OrderedStore) Upsert(tag, query string) bool {
	_, exists := s.searches[tag]
	s.searches[tag] = query
	if exists {
		return false
	}

	s.tags = append(s.tags, "")
	copy(s.tags[1:], s.tags)
	s.tags[0] = tag
	return true
}

// RemoveAt deletes the search displayed at index and returns its tag.
func (s *OrderedStore) RemoveAt(index int) (string, error) {
	if err := s.checkIndex(index); err != nil {
		return "", err
	}
	tag := s.tags[index]
	s.tags = append(s.tags[:index], s.tags[index+1:]...)
	delete(s.searches, tag)
	return tag, nil
}

// RemoveTag deletes tag if present and reports whether it was.
func (s *OrderedStore) RemoveTag(tag string) bool {
	if _, ok := s.searches[tag]; !ok {
		return false
	}
	delete(s.searches, tag)
	for i, t := range s.tags {
		if t == tag {
			s.tags = append(s.tags[:i], s.tags[i+1:]...)
			break
		}
	}
	return true
}

// Move relocates the tag at from so that it ends up at index to.
// The mapping is untouched.
func (s *OrderedStore) Move(from, to int) error {
	if err := s.checkIndex(from); err != nil {
		return err
	}
	if err := s.checkIndex(to); err != nil {
		return err
	}
	if from == to {
		return nil
	}

	tag := s.tags[from]
	if from < to {
		copy(s.tags[from:to], s.tags[from+1:to+1])
	} else {
		copy(s.tags[to+1:from+1], s.tags[to:from])
	}
	s.tags[to] = tag
	return nil
}

// Tags returns a copy of the order list.
func (s *OrderedStore) Tags() []string {
	out := make([]string, len(s.tags))
	copy(out, s.tags)
	return out
}

// Mapping returns a copy of the tag->query mapping.
func (s *OrderedStore) Mapping() map[string]string {
	out := make(map[string]string, len(s.searches))
	for tag, query := range s.searches {
		out[tag] = query
	}
	return out
}

// Entries returns every saved search in display order.
func (s *OrderedStore) Entries() []Entry {
	out := make([]Entry, len(s.tags))
	for i, tag := range s.tags {
		out[i] = Entry{Tag: tag, Query: s.searches[tag]}
	}
	return out
}

func (s *OrderedStore) checkIndex(index int) error {
	if index < 0 || index >= len(s.tags) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(s.tags))
	}
	return nil
}
