package permission

// Principal is the identity of the current request, rebuilt from storage.
type Principal struct {
	ID          int64
	Username    string
	DisplayName string
	State       int
	// GroupIDs and Groups are parallel: ids and titles of the memberships.
	GroupIDs    []int64
	Groups      []string
	Permissions Set
	Admin       bool
}

// Guest returns the anonymous principal.
func Guest() Principal {
	return Principal{Username: "guest", DisplayName: "Guest", Permissions: Set{}}
}

// IsGuest reports whether p is anonymous.
func (p Principal) IsGuest() bool { return p.ID == 0 }

// AllowedTo reports whether p may act under any of required.
//
// Guests are always refused, admins always allowed. An empty required list
// means no restriction. Otherwise one held permission is enough.
func (p Principal) AllowedTo(required ...string) bool {
	if p.IsGuest() {
		return false
	}
	if p.Admin {
		return true
	}
	if len(required) == 0 {
		return true
	}
	return p.Permissions.Intersects(required...)
}

// InGroup reports whether p belongs to the group titled title.
func (p Principal) InGroup(title string) bool {
	for _, g := range p.Groups {
		if g == title {
			return true
		}
	}
	return false
}

// InGroupID reports whether p belongs to the group with id.
func (p Principal) InGroupID(id int64) bool {
	for _, g := range p.GroupIDs {
		if g == id {
			return true
		}
	}
	return false
}
