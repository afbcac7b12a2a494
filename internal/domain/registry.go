package domain

// participantSet keeps participants in arrival order. Re-inserting a member
// keeps its position and replaces its origin.
type participantSet struct {
	entries []setEntry
	index   map[ParticipantID]int
}

type setEntry struct {
	participant Participant
	origin      Origin
}

func newParticipantSet() participantSet {
	return participantSet{index: make(map[ParticipantID]int)}
}

func (s *participantSet) put(p Participant, origin Origin) {
	if i, ok := s.index[p.ID]; ok {
		s.entries[i] = setEntry{participant: p, origin: origin}
		return
	}
	s.index[p.ID] = len(s.entries)
	s.entries = append(s.entries, setEntry{participant: p, origin: origin})
}

func (s *participantSet) remove(id ParticipantID) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.entries); j++ {
		s.index[s.entries[j].participant.ID] = j
	}
}

func (s *participantSet) has(id ParticipantID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *participantSet) get(id ParticipantID) (setEntry, bool) {
	i, ok := s.index[id]
	if !ok {
		return setEntry{}, false
	}
	return s.entries[i], true
}

func (s *participantSet) len() int {
	return len(s.entries)
}

func (s *participantSet) participants() []Participant {
	out := make([]Participant, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.participant
	}
	return out
}
