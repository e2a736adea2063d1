package domain

// RelationState describes the relationship between two profiles as seen from
// the first one.
type RelationState string

// Relation states.
const (
	RelationUnrelated RelationState = "unrelated"
	RelationPending   RelationState = "pending"   // from has requested to
	RelationRequested RelationState = "requested" // to has requested from
	RelationFriends   RelationState = "friends"
)

// Relation classifies the pair (from, to).
func Relation(from, to *Profile) RelationState {
	switch {
	case from.IsFriend(to.ID):
		return RelationFriends
	case indexOf(from.PendingRequests, to.ID) >= 0:
		return RelationPending
	case indexOf(from.FriendRequests, to.ID) >= 0:
		return RelationRequested
	default:
		return RelationUnrelated
	}
}

// IsFriend reports whether id is in the profile's friend list.
func (p *Profile) IsFriend(id string) bool {
	return indexOf(p.Friends, id) >= 0
}

// RequestFriend records a request from one profile to another. Repeated
// requests are recorded again.
func RequestFriend(from, to *Profile) {
	from.PendingRequests = append(from.PendingRequests, to.ID)
	to.FriendRequests = append(to.FriendRequests, from.ID)
}

// UnrequestFriend withdraws a request made by from.
func UnrequestFriend(from, to *Profile) {
	from.PendingRequests = removeFirst(from.PendingRequests, to.ID)
	to.FriendRequests = removeFirst(to.FriendRequests, from.ID)
}

// AcceptFriendRequest makes self and requester friends when self still holds
// an incoming request from requester. It returns false and leaves both
// profiles untouched otherwise.
func AcceptFriendRequest(self, requester *Profile) bool {
	if indexOf(self.FriendRequests, requester.ID) < 0 {
		return false
	}
	addFriend(requester, self)
	addFriend(self, requester)
	return true
}

// addFriend appends friend to p's friend list and clears request bookkeeping
// between the two in both directions.
func addFriend(p, friend *Profile) {
	p.Friends = append(p.Friends, friend.ID)
	p.PendingRequests = removeAll(p.PendingRequests, friend.ID)
	p.FriendRequests = removeAll(p.FriendRequests, friend.ID)
}
