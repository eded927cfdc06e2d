package model

// Household is the full roommate and chore collection a record store loads
// and saves in one piece. Roommates keep creation order.
type Household struct {
	Roommates []Roommate `json:"users"`
	Chores    []Chore    `json:"chores"`
}

// NewHousehold returns an empty household with non-nil collections.
func NewHousehold() *Household {
	return &Household{
		Roommates: []Roommate{},
		Chores:    []Chore{},
	}
}

// Roommate returns the roommate ref points at, or nil if it dangles.
func (h *Household) Roommate(ref RoommateRef) *Roommate {
	for i := range h.Roommates {
		if h.Roommates[i].Username == string(ref) {
			return &h.Roommates[i]
		}
	}
	return nil
}

// ChoreIndex returns the position of the chore with the given id, or -1.
func (h *Household) ChoreIndex(id string) int {
	for i := range h.Chores {
		if h.Chores[i].ID == id {
			return i
		}
	}
	return -1
}

// RoommatePointers returns pointers into h.Roommates in order, skipping the
// excluded ref when it is non-empty.
func (h *Household) RoommatePointers(exclude RoommateRef) []*Roommate {
	out := make([]*Roommate, 0, len(h.Roommates))
	for i := range h.Roommates {
		if exclude != "" && h.Roommates[i].Username == string(exclude) {
			continue
		}
		out = append(out, &h.Roommates[i])
	}
	return out
}

// Clone returns a deep copy of h.
func (h *Household) Clone() *Household {
	out := &Household{
		Roommates: make([]Roommate, len(h.Roommates)),
		Chores:    make([]Chore, len(h.Chores)),
	}
	copy(out.Roommates, h.Roommates)
	for i, c := range h.Chores {
		if c.Deadline != nil {
			d := *c.Deadline
			c.Deadline = &d
		}
		if c.CompletedAt != nil {
			t := *c.CompletedAt
			c.CompletedAt = &t
		}
		out.Chores[i] = c
	}
	return out
}
