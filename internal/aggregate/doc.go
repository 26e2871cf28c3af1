// Package aggregate turns the preferences of everyone present into one
// environment per display target.
//
// The shared path is a fair average: each numeric field is the mean
// over the users who expressed an opinion on it, so a user who only
// cares about music does not drag the temperature toward zero.
// Categorical fields cannot be averaged, so a policy picks a winner by
// submission time.
//
// The package is pure: no clocks, no locks, no side effects. Callers
// pass in the active-user list and get an environment back.
package aggregate
