package session

// Flag is a one-shot marker carried across a single redirect, such as
// "the last autologin failed". Flags are read with State.Take.
type Flag uint8

const (
	FlagAutologinFailed Flag = 1 << iota
	FlagLoginFailed
	FlagActivationByMail
	FlagActivationByAdmin
)

// State is the login state of one client session. Components mutate it in
// place; the owner saves it at the end of the request.
type State struct {
	ID        string
	LoggedIn  bool
	UserID    int64
	Remember  bool
	Flags     Flag
	// FormToken is the hex digest handed to forms of this session; empty
	// until first requested.
	FormToken string
	CreatedAt int64
	UpdatedAt int64
}

// IsGuest reports whether no user is bound to the session.
func (s *State) IsGuest() bool {
	return !s.LoggedIn || s.UserID == 0
}

// Set raises f.
func (s *State) Set(f Flag) { s.Flags |= f }

// Has reports whether f is raised without clearing it.
func (s *State) Has(f Flag) bool { return s.Flags&f != 0 }

// Clear lowers f.
func (s *State) Clear(f Flag) { s.Flags &^= f }

// Take reports whether f was raised and lowers it.
func (s *State) Take(f Flag) bool {
	had := s.Has(f)
	s.Clear(f)
	return had
}

// TakeAutologinFailed reads and clears FlagAutologinFailed.
func (s *State) TakeAutologinFailed() bool { return s.Take(FlagAutologinFailed) }

// TakeLoginFailed reads and clears FlagLoginFailed.
func (s *State) TakeLoginFailed() bool { return s.Take(FlagLoginFailed) }

// TakeActivationByMail reads and clears FlagActivationByMail.
func (s *State) TakeActivationByMail() bool { return s.Take(FlagActivationByMail) }

// TakeActivationByAdmin reads and clears FlagActivationByAdmin.
func (s *State) TakeActivationByAdmin() bool { return s.Take(FlagActivationByAdmin) }

// Bind marks the session as logged in for userID.
func (s *State) Bind(userID int64, remember bool) {
	s.LoggedIn = true
	s.UserID = userID
	s.Remember = remember
}

// ResetToGuest clears the user binding. Flags and ID are kept.
func (s *State) ResetToGuest() {
	s.LoggedIn = false
	s.UserID = 0
	s.Remember = false
}
