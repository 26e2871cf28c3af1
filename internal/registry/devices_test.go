package registry

import (
	"errors"
	"testing"
)

func TestUpdateHeartbeat(t *testing.T) {
	t.Run("creates record on first heartbeat", func(t *testing.T) {
		r := New()
		r.UpdateHeartbeat("display-entrance")

		d := r.GetDevice("display-entrance")
		if d == nil {
			t.Fatal("expected device record")
		}
		if d.Status != DeviceOnline {
			t.Errorf("expected online, got %s", d.Status)
		}
	})

	t.Run("clears previous error", func(t *testing.T) {
		r := New()
		r.RecordDeviceError("display-entrance", "render timeout")
		r.UpdateHeartbeat("display-entrance")

		d := r.GetDevice("display-entrance")
		if d.Status != DeviceOnline {
			t.Errorf("expected online after heartbeat, got %s", d.Status)
		}
		if d.LastError != nil {
			t.Errorf("expected error cleared, got %q", *d.LastError)
		}
	})
}

func TestRecordDeviceError(t *testing.T) {
	r := New()
	r.UpdateHeartbeat("display-living")
	r.RecordDeviceError("display-living", "panel unreachable")

	d := r.GetDevice("display-living")
	if d.Status != DeviceError {
		t.Errorf("expected error status, got %s", d.Status)
	}
	if d.LastError == nil || *d.LastError != "panel unreachable" {
		t.Error("expected error message recorded")
	}
}

func TestListDevices(t *testing.T) {
	r := New()
	r.UpdateHeartbeat("display-living")
	r.UpdateHeartbeat("display-entrance")

	devices := r.ListDevices()
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	if devices[0].DeviceID != "display-entrance" {
		t.Errorf("expected ordering by id, got %s first", devices[0].DeviceID)
	}
}

func TestSnapshots(t *testing.T) {
	t.Run("unknown target returns ErrSnapshotNotFound", func(t *testing.T) {
		r := New()

		_, err := r.GetSnapshot("entrance")
		if !errors.Is(err, ErrSnapshotNotFound) {
			t.Errorf("expected ErrSnapshotNotFound, got %v", err)
		}
	})

	t.Run("overwrite carries latest decision id", func(t *testing.T) {
		r := New()
		r.UpdateApplied("entrance", Environment{Temperature: float64Ptr(21)}, "dec-1")
		r.UpdateApplied("entrance", Environment{Temperature: float64Ptr(23)}, "dec-2")

		s, err := r.GetSnapshot("entrance")
		if err != nil {
			t.Fatalf("GetSnapshot failed: %v", err)
		}
		if s.DecisionID != "dec-2" {
			t.Errorf("expected decision dec-2, got %s", s.DecisionID)
		}
		if *s.Applied.Temperature != 23 {
			t.Errorf("expected temperature 23, got %v", *s.Applied.Temperature)
		}
	})

	t.Run("returned snapshot shares no memory with the registry", func(t *testing.T) {
		r := New()
		env := Environment{Temperature: float64Ptr(21)}
		r.UpdateApplied("entrance", env, "dec-1")

		// Neither the caller's environment nor a returned copy may
		// write through into the stored snapshot.
		*env.Temperature = 99
		s, _ := r.GetSnapshot("entrance")
		*s.Applied.Temperature = 50

		fresh, _ := r.GetSnapshot("entrance")
		if *fresh.Applied.Temperature != 21 {
			t.Errorf("expected stored temperature 21, got %v", *fresh.Applied.Temperature)
		}
	})

	t.Run("list ordered by target", func(t *testing.T) {
		r := New()
		r.UpdateApplied("living", Environment{}, "dec-1")
		r.UpdateApplied("entrance", Environment{}, "dec-1")

		snaps := r.ListSnapshots()
		if len(snaps) != 2 {
			t.Fatalf("expected 2 snapshots, got %d", len(snaps))
		}
		if snaps[0].Target != "entrance" {
			t.Errorf("expected entrance first, got %s", snaps[0].Target)
		}
	})
}

func TestReset(t *testing.T) {
	r := New()
	r.Connect("user-1", "Ana")
	r.UpdateHeartbeat("display-1")
	r.UpdateApplied("entrance", Environment{}, "dec-1")

	r.Reset()

	stats := r.GetStats()
	if stats.Users != 0 || stats.Devices != 0 || stats.Snapshots != 0 {
		t.Errorf("expected empty registry after reset, got %+v", stats)
	}
}
