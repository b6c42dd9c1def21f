package stats

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// AllHeroes is the key of the aggregate row across every hero
const AllHeroes = "all-heroes"

// StatRow is the flat projection of one hero's career stats. A nil field
// means the value was missing or unusable upstream.
type StatRow struct {
	Hero           string   `json:"hero"`
	GamesPlayed    *float64 `json:"games_played"`
	GamesWon       *float64 `json:"games_won"`
	GamesLost      *float64 `json:"games_lost"`
	TimePlayedSec  *float64 `json:"time_played_sec"`
	Eliminations   *float64 `json:"eliminations"`
	Deaths         *float64 `json:"deaths"`
	HeroDamageDone *float64 `json:"hero_damage_done"`
	HealingDone    *float64 `json:"healing_done"`

	// Derived
	WinRate       *float64 `json:"winrate"`
	TimePlayedMin *float64 `json:"time_played_min"`
}

// field paths inside each hero's stat groups
var fields = []struct {
	path string
	set  func(*StatRow, *float64)
}{
	{"game.games_played", func(r *StatRow, v *float64) { r.GamesPlayed = v }},
	{"game.games_won", func(r *StatRow, v *float64) { r.GamesWon = v }},
	{"game.games_lost", func(r *StatRow, v *float64) { r.GamesLost = v }},
	{"game.time_played", func(r *StatRow, v *float64) { r.TimePlayedSec = v }},
	{"combat.eliminations", func(r *StatRow, v *float64) { r.Eliminations = v }},
	{"combat.deaths", func(r *StatRow, v *float64) { r.Deaths = v }},
	{"combat.hero_damage_done", func(r *StatRow, v *float64) { r.HeroDamageDone = v }},
	{"assists.healing_done", func(r *StatRow, v *float64) { r.HealingDone = v }},
}

// Normalize flattens a hero-key -> stat-groups mapping into one row per hero,
// in the order the keys appear in the document. It never fails: anything
// that is not a number along a field's path becomes nil.
func Normalize(careerJSON []byte) []StatRow {
	root := gjson.ParseBytes(careerJSON)
	if !root.IsObject() {
		return []StatRow{}
	}

	rows := []StatRow{}
	index := make(map[string]int)

	root.ForEach(func(key, hero gjson.Result) bool {
		row := StatRow{Hero: key.String()}
		for _, f := range fields {
			f.set(&row, Pluck(hero, f.path))
		}
		row.WinRate = WinRate(row.GamesWon, row.GamesLost)
		row.TimePlayedMin = Minutes(row.TimePlayedSec)

		// a repeated key keeps its first position and its last value
		if i, ok := index[row.Hero]; ok {
			rows[i] = row
		} else {
			index[row.Hero] = len(rows)
			rows = append(rows, row)
		}
		return true
	})

	return rows
}

// Pluck walks a dotted path from v and coerces the leaf to a finite float.
// A missing segment, a non-object along the way, or a failed coercion
// yields nil.
func Pluck(v gjson.Result, path string) *float64 {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		if !cur.IsObject() {
			return nil
		}
		cur = cur.Get(gjson.Escape(seg))
		if !cur.Exists() {
			return nil
		}
	}
	return toFloat(cur)
}

func toFloat(r gjson.Result) *float64 {
	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Num
	case gjson.String:
		n, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		f = n
	case gjson.True:
		f = 1
	case gjson.False:
		f = 0
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// WinRate is won/(won+lost), nil unless both are present and the sum is positive
func WinRate(won, lost *float64) *float64 {
	if won == nil || lost == nil {
		return nil
	}
	total := *won + *lost
	if total <= 0 {
		return nil
	}
	wr := *won / total
	return &wr
}

// Minutes converts seconds to minutes, keeping nil as nil
func Minutes(sec *float64) *float64 {
	if sec == nil {
		return nil
	}
	m := *sec / 60
	return &m
}

// SortByTimePlayed returns a copy ordered by time played, most first, with
// rows lacking a value at the end.
func SortByTimePlayed(rows []StatRow) []StatRow {
	out := make([]StatRow, len(rows))
	copy(out, rows)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].TimePlayedSec, out[j].TimePlayedSec
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a > *b
	})
	return out
}

// FilterHero returns the rows whose hero key matches
func FilterHero(rows []StatRow, hero string) []StatRow {
	out := []StatRow{}
	for _, r := range rows {
		if r.Hero == hero {
			out = append(out, r)
		}
	}
	return out
}
