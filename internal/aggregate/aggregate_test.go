package aggregate

import (
	"testing"
	"time"

	"github.com/atmoslabs/atmos-core/internal/registry"
)

func float64Ptr(f float64) *float64 { return &f }
func stringPtr(s string) *string    { return &s }

func userWithPref(id string, env registry.Environment, submittedAt time.Time) *registry.User {
	return &registry.User{
		ID: id,
		LastPreference: &registry.Preference{
			Environment: env,
			SubmittedAt: submittedAt,
		},
	}
}

func TestFairAverage(t *testing.T) {
	defaults := registry.Environment{
		Temperature: float64Ptr(21),
		LightColor:  stringPtr("#FFD9A0"),
		Music:       stringPtr("ambient"),
	}
	now := time.Now()

	t.Run("mean of two temperatures", func(t *testing.T) {
		users := []*registry.User{
			userWithPref("a", registry.Environment{Temperature: float64Ptr(20)}, now),
			userWithPref("b", registry.Environment{Temperature: float64Ptr(26)}, now.Add(time.Second)),
		}

		env := FairAverage(users, PolicyMostRecent, defaults)
		if got := *env.Temperature; got != 23 {
			t.Errorf("expected 23, got %v", got)
		}
	})

	t.Run("resubmission replaces not accumulates", func(t *testing.T) {
		// First user changed their mind from 20 to 24; only the
		// latest submission counts, so the shared value moves to 25.
		users := []*registry.User{
			userWithPref("a", registry.Environment{Temperature: float64Ptr(24)}, now.Add(2*time.Second)),
			userWithPref("b", registry.Environment{Temperature: float64Ptr(26)}, now.Add(time.Second)),
		}

		env := FairAverage(users, PolicyMostRecent, defaults)
		if got := *env.Temperature; got != 25 {
			t.Errorf("expected 25, got %v", got)
		}
	})

	t.Run("nil fields do not pull the mean", func(t *testing.T) {
		users := []*registry.User{
			userWithPref("a", registry.Environment{Temperature: float64Ptr(18)}, now),
			userWithPref("b", registry.Environment{Music: stringPtr("jazz")}, now),
			userWithPref("c", registry.Environment{Temperature: float64Ptr(22)}, now),
		}

		env := FairAverage(users, PolicyMostRecent, defaults)
		if got := *env.Temperature; got != 20 {
			t.Errorf("expected mean over opinionated users only (20), got %v", got)
		}
	})

	t.Run("no opinions falls back to default", func(t *testing.T) {
		users := []*registry.User{
			userWithPref("a", registry.Environment{Music: stringPtr("jazz")}, now),
		}

		env := FairAverage(users, PolicyMostRecent, defaults)
		if env.Temperature == nil || *env.Temperature != 21 {
			t.Error("expected default temperature 21")
		}
		if env.LightColor == nil || *env.LightColor != "#FFD9A0" {
			t.Error("expected default light color")
		}
	})

	t.Run("empty user list yields defaults", func(t *testing.T) {
		env := FairAverage(nil, PolicyMostRecent, defaults)
		if env.Temperature == nil || *env.Temperature != 21 {
			t.Error("expected default temperature for empty room")
		}
	})

	t.Run("most_recent picks latest categorical", func(t *testing.T) {
		users := []*registry.User{
			userWithPref("a", registry.Environment{Music: stringPtr("jazz")}, now),
			userWithPref("b", registry.Environment{Music: stringPtr("classical")}, now.Add(time.Second)),
		}

		env := FairAverage(users, PolicyMostRecent, defaults)
		if got := *env.Music; got != "classical" {
			t.Errorf("expected classical, got %s", got)
		}
	})

	t.Run("first_active picks earliest categorical", func(t *testing.T) {
		users := []*registry.User{
			userWithPref("a", registry.Environment{Music: stringPtr("jazz")}, now),
			userWithPref("b", registry.Environment{Music: stringPtr("classical")}, now.Add(time.Second)),
		}

		env := FairAverage(users, PolicyFirstActive, defaults)
		if got := *env.Music; got != "jazz" {
			t.Errorf("expected jazz, got %s", got)
		}
	})

	t.Run("user without preference contributes nothing", func(t *testing.T) {
		users := []*registry.User{
			{ID: "silent"},
			userWithPref("a", registry.Environment{Temperature: float64Ptr(19)}, now),
		}

		env := FairAverage(users, PolicyMostRecent, defaults)
		if got := *env.Temperature; got != 19 {
			t.Errorf("expected 19, got %v", got)
		}
	})
}

func TestIndividual(t *testing.T) {
	defaults := registry.Environment{
		Temperature: float64Ptr(21),
		Music:       stringPtr("ambient"),
	}

	t.Run("own preference wins over defaults", func(t *testing.T) {
		u := userWithPref("a", registry.Environment{Temperature: float64Ptr(24)}, time.Now())

		env := Individual(u, defaults)
		if got := *env.Temperature; got != 24 {
			t.Errorf("expected 24, got %v", got)
		}
		if got := *env.Music; got != "ambient" {
			t.Errorf("expected default music, got %s", got)
		}
	})

	t.Run("no preference yields defaults", func(t *testing.T) {
		env := Individual(&registry.User{ID: "a"}, defaults)
		if got := *env.Temperature; got != 21 {
			t.Errorf("expected default 21, got %v", got)
		}
	})

	t.Run("nil user yields defaults", func(t *testing.T) {
		env := Individual(nil, defaults)
		if env.Music == nil || *env.Music != "ambient" {
			t.Error("expected defaults for nil user")
		}
	})
}
