package testutil

import (
	"context"
	"testing"
	"time"
)

func TestLogger_NotNil(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewStore_Usable(t *testing.T) {
	db := NewStore(t)
	if db == nil {
		t.Fatal("expected non-nil store")
	}
	if err := db.DB().PingContext(context.Background()); err != nil {
		t.Fatalf("PingContext: %v", err)
	}
}

func TestClock_Advance(t *testing.T) {
	c := NewClock()
	start := c.Now()
	c.Advance(5 * time.Minute)
	if got := c.Now().Sub(start); got != 5*time.Minute {
		t.Errorf("Advance: elapsed = %v, want 5m", got)
	}
}

func TestClock_Set(t *testing.T) {
	c := NewClock()
	target := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	c.Set(target)
	if !c.Now().Equal(target) {
		t.Errorf("Set: got %v, want %v", c.Now(), target)
	}
}

func TestNewObservation_Defaults(t *testing.T) {
	o := NewObservation()
	if o.Name != "eth0" {
		t.Errorf("Name = %q, want eth0", o.Name)
	}
	if o.IPAddress == "" || o.MACAddress == "" {
		t.Errorf("expected populated defaults, got %+v", o)
	}
}

func TestNewObservation_WithOptions(t *testing.T) {
	o := NewObservation(
		WithName("wlan0"),
		WithIP("192.168.1.20"),
		WithMAC("aa:bb:cc:dd:ee:ff"),
	)
	if o.Name != "wlan0" || o.IPAddress != "192.168.1.20" || o.MACAddress != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("options not applied: %+v", o)
	}
}

func TestSnapshot_Builds(t *testing.T) {
	s := Snapshot(NewObservation(), NewObservation(WithName("wlan0")))
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}
