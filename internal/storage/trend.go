package storage

import (
	"sort"

	"github.com/ow-stat-tracker/internal/stats"
)

// Trend picks the all-heroes snapshots (optionally for one player) in time
// order and derives win rate and minutes played for each.
func Trend(snaps []Snapshot, playerID string) []TrendPoint {
	points := []TrendPoint{}
	for _, s := range snaps {
		if s.Hero != stats.AllHeroes {
			continue
		}
		if playerID != "" && s.PlayerID != playerID {
			continue
		}
		points = append(points, TrendPoint{
			Timestamp:   s.Timestamp,
			PlayerID:    s.PlayerID,
			Gamemode:    s.Gamemode,
			GamesPlayed: s.GamesPlayed,
			WinRate:     stats.WinRate(s.GamesWon, s.GamesLost),
			TimeMin:     stats.Minutes(s.TimePlayedSec),
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// NewestFirst returns a copy of snaps ordered by timestamp, latest first
func NewestFirst(snaps []Snapshot) []Snapshot {
	out := make([]Snapshot, len(snaps))
	copy(out, snaps)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}
