package storage

import (
	"errors"
	"time"
)

// ErrStoreCorrupt is returned when the snapshot file does not match Columns
// or holds a cell that cannot be read back. Writes are refused until fixed.
var ErrStoreCorrupt = errors.New("snapshot store corrupt")

// Columns is the snapshot file schema, in order
var Columns = []string{
	"timestamp",
	"battletag",
	"player_id",
	"gamemode",
	"platform",
	"hero",
	"games_played",
	"games_won",
	"games_lost",
	"time_played_sec",
	"eliminations",
	"deaths",
	"hero_damage_done",
	"healing_done",
}

// Snapshot is one persisted stat row with its capture context.
// Nil numeric fields are stored as empty cells.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Battletag string    `json:"battletag"`
	PlayerID  string    `json:"player_id"`
	Gamemode  string    `json:"gamemode"`
	Platform  string    `json:"platform"`
	Hero      string    `json:"hero"`

	GamesPlayed    *float64 `json:"games_played"`
	GamesWon       *float64 `json:"games_won"`
	GamesLost      *float64 `json:"games_lost"`
	TimePlayedSec  *float64 `json:"time_played_sec"`
	Eliminations   *float64 `json:"eliminations"`
	Deaths         *float64 `json:"deaths"`
	HeroDamageDone *float64 `json:"hero_damage_done"`
	HealingDone    *float64 `json:"healing_done"`
}

// numeric returns pointers to the numeric fields in Columns order (from index 6)
func (s *Snapshot) numeric() []**float64 {
	return []**float64{
		&s.GamesPlayed,
		&s.GamesWon,
		&s.GamesLost,
		&s.TimePlayedSec,
		&s.Eliminations,
		&s.Deaths,
		&s.HeroDamageDone,
		&s.HealingDone,
	}
}

// TrendPoint is one all-heroes snapshot prepared for the history charts
type TrendPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	PlayerID    string    `json:"player_id"`
	Gamemode    string    `json:"gamemode"`
	GamesPlayed *float64  `json:"games_played"`
	WinRate     *float64  `json:"winrate"`
	TimeMin     *float64  `json:"time_min"`
}
