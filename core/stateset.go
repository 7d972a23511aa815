package core

import (
	"sort"
)

// StateSet is an insertion-ordered set of node indexes.
type StateSet struct {
	list []int
	has  map[int]bool
}

// NewStateSet makes a set with the given members.
func NewStateSet(xs ...int) *StateSet {
	s := &StateSet{
		list: make([]int, 0, len(xs)+4),
		has:  make(map[int]bool, len(xs)+4),
	}
	for _, x := range xs {
		s.Add(x)
	}
	return s
}

// Add adds x if it's not already a member.
func (s *StateSet) Add(x int) {
	if s.has[x] {
		return
	}
	s.has[x] = true
	s.list = append(s.list, x)
}

// Delete removes x if it's a member.
func (s *StateSet) Delete(x int) {
	if !s.has[x] {
		return
	}
	delete(s.has, x)
	for i, y := range s.list {
		if y == x {
			s.list = append(s.list[:i], s.list[i+1:]...)
			break
		}
	}
}

func (s *StateSet) Has(x int) bool {
	return s.has[x]
}

func (s *StateSet) Len() int {
	return len(s.list)
}

func (s *StateSet) IsEmpty() bool {
	return len(s.list) == 0
}

// Clear removes every member.
func (s *StateSet) Clear() {
	s.list = s.list[:0]
	s.has = make(map[int]bool)
}

// Slice returns the members in insertion order.  The slice is a copy.
func (s *StateSet) Slice() []int {
	acc := make([]int, len(s.list))
	copy(acc, s.list)
	return acc
}

// Clone makes a copy.
func (s *StateSet) Clone() *StateSet {
	return NewStateSet(s.list...)
}

// Union adds all members of t.
func (s *StateSet) Union(t *StateSet) {
	for _, x := range t.list {
		s.Add(x)
	}
}

// Some reports whether f is true for some member.
func (s *StateSet) Some(f func(int) bool) bool {
	for _, x := range s.list {
		if f(x) {
			return true
		}
	}
	return false
}

// Intersects reports whether s and t have a common member.
func (s *StateSet) Intersects(t *StateSet) bool {
	if t.Len() < s.Len() {
		s, t = t, s
	}
	for _, x := range s.list {
		if t.has[x] {
			return true
		}
	}
	return false
}

// Sorted returns the members in document order (ascending index),
// or in reverse document order if desc.
func (s *StateSet) Sorted(desc bool) []int {
	acc := s.Slice()
	if desc {
		sort.Sort(sort.Reverse(sort.IntSlice(acc)))
	} else {
		sort.Ints(acc)
	}
	return acc
}
