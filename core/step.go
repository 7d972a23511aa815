package core

// Transition selection and microsteps.
//
// All of this code runs on the session's goroutine.

// selectTransitions returns the conflict-free set of transitions
// enabled by the event.  A nil event selects eventless transitions.
//
// Atomic states are considered in document order.  For each, the
// state and then its ancestors are searched for the first transition
// (in document order) that matches and whose guard is true.
func (s *Session) selectTransitions(ev *Event) []*TransitionNode {
	var enabled []*TransitionNode
	seen := make(map[*TransitionNode]bool)

	for _, st := range s.config.Sorted(false) {
		if !s.def.Nodes[st].IsAtomic() {
			continue
		}
		lineage := append([]int{st}, s.def.ProperAncestors(st, -1)...)
	LOOP:
		for _, n := range lineage {
			for _, t := range s.def.Nodes[n].Transitions {
				if ev == nil {
					if !t.Eventless() {
						continue
					}
				} else if t.Eventless() || !t.Events.Matches(ev.Name) {
					continue
				}
				if t.Cond != "" && !s.dm.Cond(t.Cond) {
					continue
				}
				if !seen[t] {
					seen[t] = true
					enabled = append(enabled, t)
				}
				break LOOP
			}
		}
	}

	return s.removeConflictingTransitions(enabled)
}

// removeConflictingTransitions keeps, for each pair of transitions
// with intersecting exit sets, the earlier one, unless the later
// one's source is a descendant of the earlier one's source.
func (s *Session) removeConflictingTransitions(enabled []*TransitionNode) []*TransitionNode {
	if len(enabled) < 2 {
		return enabled
	}

	exits := make(map[*TransitionNode]*StateSet, len(enabled))
	exitSet := func(t *TransitionNode) *StateSet {
		x, have := exits[t]
		if !have {
			x = s.computeExitSet([]*TransitionNode{t})
			exits[t] = x
		}
		return x
	}

	filtered := make([]*TransitionNode, 0, len(enabled))
	for _, t1 := range enabled {
		preempted := false
		remove := make(map[*TransitionNode]bool)
		for _, t2 := range filtered {
			if !exitSet(t1).Intersects(exitSet(t2)) {
				continue
			}
			if s.def.IsDescendant(t1.Source, t2.Source) {
				remove[t2] = true
			} else {
				preempted = true
				break
			}
		}
		if preempted {
			continue
		}
		if 0 < len(remove) {
			kept := filtered[:0]
			for _, t := range filtered {
				if !remove[t] {
					kept = append(kept, t)
				}
			}
			filtered = kept
		}
		filtered = append(filtered, t1)
	}
	return filtered
}

// microstep applies a conflict-free set of transitions.
func (s *Session) microstep(ts []*TransitionNode) {
	s.exitStates(ts)
	s.executeTransitionContent(ts)
	s.enterStates(ts)
}

// computeExitSet returns the active states that the transitions
// would exit.
func (s *Session) computeExitSet(ts []*TransitionNode) *StateSet {
	acc := NewStateSet()
	for _, t := range ts {
		if len(t.Targets) == 0 {
			continue
		}
		domain := s.transitionDomain(t)
		for _, st := range s.config.list {
			if s.def.IsDescendant(st, domain) {
				acc.Add(st)
			}
		}
	}
	return acc
}

// transitionDomain returns the state whose descendants the transition
// exits and enters.  Returns -1 for a targetless transition.
func (s *Session) transitionDomain(t *TransitionNode) int {
	targets := s.effectiveTargets(t)
	if targets.IsEmpty() {
		return -1
	}
	src := s.def.Nodes[t.Source]
	if t.Type == Internal && src.IsCompound() {
		all := true
		for _, x := range targets.list {
			if !s.def.IsDescendant(x, t.Source) {
				all = false
				break
			}
		}
		if all {
			return t.Source
		}
	}
	return s.findLCCA(append([]int{t.Source}, targets.list...))
}

// findLCCA returns the least common compound ancestor of the states.
// The root counts as compound.
func (s *Session) findLCCA(states []int) int {
	for _, anc := range s.def.ProperAncestors(states[0], -1) {
		if !s.def.Nodes[anc].IsCompound() && anc != Root {
			continue
		}
		all := true
		for _, x := range states[1:] {
			if !s.def.IsDescendant(x, anc) {
				all = false
				break
			}
		}
		if all {
			return anc
		}
	}
	return Root
}

// effectiveTargets expands history targets.
func (s *Session) effectiveTargets(t *TransitionNode) *StateSet {
	acc := NewStateSet()
	for _, x := range t.Targets {
		n := s.def.Nodes[x]
		if n.History == NoHistory {
			acc.Add(x)
			continue
		}
		if h, have := s.history[x]; have {
			acc.Union(h)
		} else {
			acc.Union(s.effectiveTargets(n.Transitions[0]))
		}
	}
	return acc
}

func (s *Session) exitStates(ts []*TransitionNode) {
	exitSet := s.computeExitSet(ts)
	for _, st := range exitSet.list {
		s.statesToInvoke.Delete(st)
	}
	order := exitSet.Sorted(true)

	// Record history before anything is exited.
	for _, st := range order {
		n := s.def.Nodes[st]
		for _, h := range n.Histories {
			deep := s.def.Nodes[h].History == DeepHistory
			rec := NewStateSet()
			for _, x := range s.config.list {
				if deep {
					if s.def.Nodes[x].IsAtomic() && s.def.IsDescendant(x, st) {
						rec.Add(x)
					}
				} else if s.def.Nodes[x].Parent == st {
					rec.Add(x)
				}
			}
			s.history[h] = rec
		}
	}

	for _, st := range order {
		n := s.def.Nodes[st]
		for _, block := range n.OnExit {
			s.execute(block)
		}
		s.cancelInvokes(st)
		s.cfgLock.Lock()
		s.config.Delete(st)
		s.cfgLock.Unlock()
		s.exited(n)
	}
}

func (s *Session) executeTransitionContent(ts []*TransitionNode) {
	for _, t := range ts {
		if s.monitor != nil {
			s.monitor.Transition(s, s.def.Nodes[t.Source].Id, s.ids(t.Targets))
		}
		s.execute(t.Actions)
	}
}

func (s *Session) enterStates(ts []*TransitionNode) {
	toEnter := NewStateSet()
	forDefaultEntry := NewStateSet()
	defaultHistoryContent := make(map[int][]Action)

	s.computeEntrySet(ts, toEnter, forDefaultEntry, defaultHistoryContent)

	for _, st := range toEnter.Sorted(false) {
		n := s.def.Nodes[st]

		s.cfgLock.Lock()
		s.config.Add(st)
		s.cfgLock.Unlock()
		s.statesToInvoke.Add(st)
		s.entered(n)

		if !s.initialized[st] {
			for _, d := range n.Data {
				s.declare(d, false)
			}
			s.initialized[st] = true
		}

		for _, block := range n.OnEntry {
			s.execute(block)
		}
		if forDefaultEntry.Has(st) && n.Initial != nil {
			s.execute(n.Initial.Actions)
		}
		if content, have := defaultHistoryContent[st]; have {
			s.execute(content)
		}

		if !n.Final {
			continue
		}
		if n.Parent == Root {
			s.running = false
			continue
		}

		parent := s.def.Nodes[n.Parent]
		s.raise(&Event{
			Name: DoneStatePrefix + parent.Id,
			Type: InternalEvent,
			Data: s.doneData(n),
		})

		if parent.Parent < 0 {
			continue
		}
		grandparent := s.def.Nodes[parent.Parent]
		if !grandparent.Parallel {
			continue
		}
		all := true
		for _, c := range grandparent.States {
			if !s.isInFinalState(c) {
				all = false
				break
			}
		}
		if all {
			s.raise(&Event{
				Name: DoneStatePrefix + grandparent.Id,
				Type: InternalEvent,
			})
		}
	}
}

func (s *Session) computeEntrySet(ts []*TransitionNode, toEnter, forDefaultEntry *StateSet, dhc map[int][]Action) {
	for _, t := range ts {
		for _, x := range t.Targets {
			s.addDescendantStatesToEnter(x, toEnter, forDefaultEntry, dhc)
		}
		ancestor := s.transitionDomain(t)
		for _, x := range s.effectiveTargets(t).list {
			s.addAncestorStatesToEnter(x, ancestor, toEnter, forDefaultEntry, dhc)
		}
	}
}

func (s *Session) addDescendantStatesToEnter(st int, toEnter, forDefaultEntry *StateSet, dhc map[int][]Action) {
	n := s.def.Nodes[st]

	if n.History != NoHistory {
		if h, have := s.history[st]; have {
			for _, x := range h.list {
				s.addDescendantStatesToEnter(x, toEnter, forDefaultEntry, dhc)
			}
			for _, x := range h.list {
				s.addAncestorStatesToEnter(x, n.Parent, toEnter, forDefaultEntry, dhc)
			}
			return
		}
		t := n.Transitions[0]
		dhc[n.Parent] = t.Actions
		for _, x := range t.Targets {
			s.addDescendantStatesToEnter(x, toEnter, forDefaultEntry, dhc)
		}
		for _, x := range t.Targets {
			s.addAncestorStatesToEnter(x, n.Parent, toEnter, forDefaultEntry, dhc)
		}
		return
	}

	toEnter.Add(st)

	switch {
	case n.IsCompound():
		forDefaultEntry.Add(st)
		for _, x := range n.Initial.Targets {
			s.addDescendantStatesToEnter(x, toEnter, forDefaultEntry, dhc)
		}
		for _, x := range n.Initial.Targets {
			s.addAncestorStatesToEnter(x, st, toEnter, forDefaultEntry, dhc)
		}
	case n.Parallel:
		s.addRegions(n, toEnter, forDefaultEntry, dhc)
	}
}

func (s *Session) addAncestorStatesToEnter(st, ancestor int, toEnter, forDefaultEntry *StateSet, dhc map[int][]Action) {
	for _, anc := range s.def.ProperAncestors(st, ancestor) {
		if anc == Root {
			break
		}
		toEnter.Add(anc)
		if n := s.def.Nodes[anc]; n.Parallel {
			s.addRegions(n, toEnter, forDefaultEntry, dhc)
		}
	}
}

// addRegions adds each child of a parallel state that doesn't
// already have a descendant to enter.
func (s *Session) addRegions(n *Node, toEnter, forDefaultEntry *StateSet, dhc map[int][]Action) {
	for _, c := range n.States {
		if !toEnter.Some(func(x int) bool { return x == c || s.def.IsDescendant(x, c) }) {
			s.addDescendantStatesToEnter(c, toEnter, forDefaultEntry, dhc)
		}
	}
}

// isInFinalState reports whether a compound state has an active final
// child, or whether all regions of a parallel state are in final
// states.
func (s *Session) isInFinalState(st int) bool {
	n := s.def.Nodes[st]
	switch {
	case n.IsCompound():
		for _, c := range n.States {
			if s.def.Nodes[c].Final && s.config.Has(c) {
				return true
			}
		}
		return false
	case n.Parallel:
		for _, c := range n.States {
			if !s.isInFinalState(c) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// doneData evaluates a final state's donedata.
func (s *Session) doneData(n *Node) interface{} {
	dd := n.DoneData
	if dd == nil {
		return nil
	}
	if dd.Content != nil {
		v, ok := EvalContent(s.dm, dd.Content)
		if !ok {
			return nil
		}
		return v
	}
	data, ok := s.dm.Params(nil, dd.Params)
	if !ok {
		return nil
	}
	return data
}

func (s *Session) entered(n *Node) {
	s.debugf("enter %s", n.Id)
	if s.monitor != nil {
		s.monitor.Entered(s, n.Id)
	}
}

func (s *Session) exited(n *Node) {
	s.debugf("exit %s", n.Id)
	if s.monitor != nil {
		s.monitor.Exited(s, n.Id)
	}
}
