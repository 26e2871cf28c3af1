package aggregate

import (
	"time"

	"github.com/atmoslabs/atmos-core/internal/registry"
)

// CategoricalPolicy selects how non-numeric preference fields are
// resolved when several users disagree.
type CategoricalPolicy string

// Categorical policies.
const (
	// PolicyMostRecent picks the value from the most recently
	// submitted preference.
	PolicyMostRecent CategoricalPolicy = "most_recent"

	// PolicyFirstActive picks the value from the earliest submitted
	// preference among the active users.
	PolicyFirstActive CategoricalPolicy = "first_active"
)

// FairAverage merges the preferences of the given users into one shared
// environment. Numeric fields are the arithmetic mean over users that
// expressed an opinion; users with a nil field neither pull the average
// nor block it. Categorical fields are resolved by policy. Fields on
// which no user has an opinion fall back to the configured default.
//
// Users without a stored preference contribute nothing. An empty user
// list yields the fallback unchanged.
func FairAverage(users []*registry.User, policy CategoricalPolicy, fallback registry.Environment) registry.Environment {
	result := registry.Environment{}

	if t, ok := meanOf(users, func(e registry.Environment) *float64 { return e.Temperature }); ok {
		result.Temperature = &t
	} else {
		result.Temperature = fallback.Temperature
	}
	if h, ok := meanOf(users, func(e registry.Environment) *float64 { return e.Humidity }); ok {
		result.Humidity = &h
	} else {
		result.Humidity = fallback.Humidity
	}

	if c, ok := pickCategorical(users, policy, func(e registry.Environment) *string { return e.LightColor }); ok {
		result.LightColor = &c
	} else {
		result.LightColor = fallback.LightColor
	}
	if m, ok := pickCategorical(users, policy, func(e registry.Environment) *string { return e.Music }); ok {
		result.Music = &m
	} else {
		result.Music = fallback.Music
	}

	return result
}

// Individual resolves one user's personal environment: their own
// preference where stated, the configured default for the rest. A user
// with no preference at all receives the fallback verbatim.
func Individual(user *registry.User, fallback registry.Environment) registry.Environment {
	result := fallback
	if user == nil || user.LastPreference == nil {
		return result
	}

	pref := user.LastPreference.Environment
	if pref.Temperature != nil {
		result.Temperature = pref.Temperature
	}
	if pref.Humidity != nil {
		result.Humidity = pref.Humidity
	}
	if pref.LightColor != nil {
		result.LightColor = pref.LightColor
	}
	if pref.Music != nil {
		result.Music = pref.Music
	}
	return result
}

// meanOf averages one numeric field over all users that expressed an
// opinion on it. The second return is false when nobody did.
func meanOf(users []*registry.User, field func(registry.Environment) *float64) (float64, bool) {
	var sum float64
	var count int
	for _, u := range users {
		if u.LastPreference == nil {
			continue
		}
		if v := field(u.LastPreference.Environment); v != nil {
			sum += *v
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// pickCategorical resolves one categorical field across users by
// submission time according to policy.
func pickCategorical(users []*registry.User, policy CategoricalPolicy, field func(registry.Environment) *string) (string, bool) {
	var chosen string
	var chosenAt time.Time
	found := false

	for _, u := range users {
		if u.LastPreference == nil {
			continue
		}
		v := field(u.LastPreference.Environment)
		if v == nil {
			continue
		}
		at := u.LastPreference.SubmittedAt

		take := !found
		if found {
			switch policy {
			case PolicyFirstActive:
				take = at.Before(chosenAt)
			default: // PolicyMostRecent
				take = at.After(chosenAt)
			}
		}
		if take {
			chosen = *v
			chosenAt = at
			found = true
		}
	}
	return chosen, found
}
