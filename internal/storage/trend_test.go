package storage

import (
	"testing"
	"time"
)

func TestTrend_FiltersAndSorts(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)
	t3 := t2.Add(24 * time.Hour)

	snaps := []Snapshot{
		{Timestamp: t3, PlayerID: "A-1", Hero: "all-heroes", GamesWon: f(3), GamesLost: f(1), TimePlayedSec: f(120)},
		{Timestamp: t1, PlayerID: "A-1", Hero: "all-heroes", GamesWon: f(0), GamesLost: f(0)},
		{Timestamp: t2, PlayerID: "A-1", Hero: "ana", GamesWon: f(1), GamesLost: f(1)},
		{Timestamp: t2, PlayerID: "B-2", Hero: "all-heroes", GamesWon: f(1), GamesLost: f(1)},
	}

	points := Trend(snaps, "A-1")
	if len(points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(points))
	}
	if !points[0].Timestamp.Equal(t1) || !points[1].Timestamp.Equal(t3) {
		t.Errorf("Expected ascending timestamps, got %v then %v", points[0].Timestamp, points[1].Timestamp)
	}
	if points[0].WinRate != nil {
		t.Error("Expected absent winrate for 0/0")
	}
	if points[1].WinRate == nil || *points[1].WinRate != 0.75 {
		t.Errorf("Expected winrate 0.75, got %v", points[1].WinRate)
	}
	if points[1].TimeMin == nil || *points[1].TimeMin != 2 {
		t.Errorf("Expected 2 minutes, got %v", points[1].TimeMin)
	}

	if all := Trend(snaps, ""); len(all) != 3 {
		t.Errorf("Expected 3 aggregate points across players, got %d", len(all))
	}
}

func TestNewestFirst(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snaps := []Snapshot{{Timestamp: t1, Hero: "a"}, {Timestamp: t1.Add(time.Hour), Hero: "b"}}

	out := NewestFirst(snaps)
	if out[0].Hero != "b" || snaps[0].Hero != "a" {
		t.Errorf("Expected a sorted copy, got %+v", out)
	}
}
