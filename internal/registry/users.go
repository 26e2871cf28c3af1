package registry

import (
	"sort"
	"time"
)

// Connect records one live connection for the given logical user,
// creating the record on first sight. It returns true when this is the
// user's 0→1 connection edge, i.e. when a presence "joined" event
// should be announced. Repeat connections for an already-present user
// bump the refcount silently.
func (r *Registry) Connect(userID, displayName string) (joined bool, err error) {
	if userID == "" {
		return false, ErrInvalidUserID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		u = &User{ID: userID}
		r.users[userID] = u
	}
	if displayName != "" {
		u.DisplayName = displayName
	}
	u.LastSeenAt = time.Now()
	u.ConnectionRefCount++

	joined = u.ConnectionRefCount == 1
	if joined {
		r.logger.Info("user joined", "user_id", userID)
	} else {
		r.logger.Debug("user connection added", "user_id", userID, "refcount", u.ConnectionRefCount)
	}
	return joined, nil
}

// Disconnect drops one connection for the user. It returns true when
// this was the user's last connection (the 1→0 edge), meaning a
// presence "left" event should be announced. Disconnecting an unknown
// or already-absent user is a no-op.
func (r *Registry) Disconnect(userID string) (left bool) {
	if userID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok || u.ConnectionRefCount == 0 {
		return false
	}
	u.ConnectionRefCount--

	left = u.ConnectionRefCount == 0
	if left {
		r.logger.Info("user left", "user_id", userID)
	} else {
		r.logger.Debug("user connection removed", "user_id", userID, "refcount", u.ConnectionRefCount)
	}
	return left
}

// ExitUser handles an explicit exit: all of the user's connections are
// released at once. Returns true when the user was present, so a
// single "left" event fires regardless of how many connections they
// held. The record itself stays so a returning user keeps their
// preference within the active window.
func (r *Registry) ExitUser(userID string) (left bool) {
	if userID == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok || u.ConnectionRefCount == 0 {
		return false
	}
	u.ConnectionRefCount = 0

	r.logger.Info("user exited", "user_id", userID)
	return true
}

// SetDisplayName updates the user's display name and bumps last-seen.
func (r *Registry) SetDisplayName(userID, displayName string) error {
	if userID == "" {
		return ErrInvalidUserID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.DisplayName = displayName
	u.LastSeenAt = time.Now()
	return nil
}

// StorePreference overwrites the user's single preference slot and
// bumps last-seen. The user record is created if needed so that a
// preference arriving before the join event is not lost.
func (r *Registry) StorePreference(userID string, env Environment, eventID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		u = &User{ID: userID}
		r.users[userID] = u
	}
	now := time.Now()
	u.LastSeenAt = now
	u.LastPreference = &Preference{
		Environment: env.DeepCopy(),
		SubmittedAt: now,
		EventID:     eventID,
	}

	r.logger.Debug("preference stored", "user_id", userID, "event_id", eventID)
	return nil
}

// GetUser returns a deep copy of the user record.
func (r *Registry) GetUser(userID string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u.DeepCopy(), nil
}

// ActiveUsers returns deep copies of all users that are currently
// connected and were seen within the given window, most recently seen
// first. These are the users whose preferences participate in
// aggregation.
func (r *Registry) ActiveUsers(window time.Duration) []*User {
	cutoff := time.Now().Add(-window)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*User
	for _, u := range r.users {
		if u.ConnectionRefCount > 0 && u.LastSeenAt.After(cutoff) {
			active = append(active, u.DeepCopy())
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].LastSeenAt.After(active[j].LastSeenAt)
	})
	return active
}
