package domain

import "strings"

// OwnerPolicy selects how AddOwner treats an id that is already a secondary owner.
type OwnerPolicy int

const (
	// PolicyAppend appends unconditionally; repeated grants produce repeated entries.
	PolicyAppend OwnerPolicy = iota
	// PolicyDedup skips ids that are already listed.
	PolicyDedup
)

func (p OwnerPolicy) String() string {
	switch p {
	case PolicyAppend:
		return "append"
	case PolicyDedup:
		return "dedup"
	default:
		return "unknown"
	}
}

// Ownership holds the primary owner and the ordered list of secondary owners.
type Ownership struct {
	PrimaryOwnerID  string   `json:"primary_owner_id"`
	SecondaryOwners []string `json:"secondary_owners"`
}

// Shareable is implemented by entities whose access is granted through an
// owner list.
type Shareable interface {
	Owners() *Ownership
	OwnerPolicy() OwnerPolicy
}

// Owners exposes the plant's ownership record.
func (p *Plant) Owners() *Ownership { return &p.Ownership }

// OwnerPolicy returns PolicyAppend; plants allow repeated grants.
func (p *Plant) OwnerPolicy() OwnerPolicy { return PolicyAppend }

// Owners exposes the room's ownership record.
func (r *Room) Owners() *Ownership { return &r.Ownership }

// OwnerPolicy returns PolicyDedup.
func (r *Room) OwnerPolicy() OwnerPolicy { return PolicyDedup }

// AddOwner grants id secondary access to s according to its policy.
func AddOwner(s Shareable, id string) {
	o := s.Owners()
	if s.OwnerPolicy() == PolicyDedup && indexOf(o.SecondaryOwners, id) >= 0 {
		return
	}
	o.SecondaryOwners = append(o.SecondaryOwners, id)
}

// AddOwners applies AddOwner for every id in order.
func AddOwners(s Shareable, ids ...string) {
	for _, id := range ids {
		AddOwner(s, id)
	}
}

// RemoveOwner removes the first occurrence of id from the secondary owners.
func RemoveOwner(s Shareable, id string) {
	o := s.Owners()
	o.SecondaryOwners = removeFirst(o.SecondaryOwners, id)
}

// TransferOwnership makes newOwnerID the primary owner and demotes the previous
// primary owner to a secondary owner. The new owner is removed from the
// secondary list before the old one is added back.
func TransferOwnership(s Shareable, newOwnerID string) {
	o := s.Owners()
	old := o.PrimaryOwnerID
	RemoveOwner(s, newOwnerID)
	if old != "" {
		AddOwner(s, old)
	}
	o.PrimaryOwnerID = newOwnerID
}

// CompileOwnerID concatenates the primary owner with every secondary owner.
// The value is an opaque access marker and is never parsed back.
func CompileOwnerID(s Shareable) string {
	o := s.Owners()
	var b strings.Builder
	b.WriteString(o.PrimaryOwnerID)
	for _, id := range o.SecondaryOwners {
		b.WriteString(id)
	}
	return b.String()
}

// IsOwner reports whether userID is the primary or a secondary owner.
func IsOwner(s Shareable, userID string) bool {
	if userID == "" {
		return false
	}
	o := s.Owners()
	return o.PrimaryOwnerID == userID || indexOf(o.SecondaryOwners, userID) >= 0
}

func indexOf(values []string, id string) int {
	for i, v := range values {
		if v == id {
			return i
		}
	}
	return -1
}

func removeFirst(values []string, id string) []string {
	idx := indexOf(values, id)
	if idx < 0 {
		return values
	}
	out := make([]string, 0, len(values)-1)
	out = append(out, values[:idx]...)
	return append(out, values[idx+1:]...)
}

func removeAll(values []string, id string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
