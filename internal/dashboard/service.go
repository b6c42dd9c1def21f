package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ow-stat-tracker/internal/overfast"
	"github.com/ow-stat-tracker/internal/stats"
	"github.com/ow-stat-tracker/internal/storage"
)

var (
	ErrCooldown        = errors.New("please wait a few seconds before fetching again")
	ErrNoBattletag     = errors.New("enter a BattleTag first")
	ErrInvalidMode     = errors.New("mode must be competitive or quickplay")
	ErrInvalidPlatform = errors.New("platform must be empty, pc or console")
	ErrNothingToSave   = errors.New("fetch stats first")
	ErrNoHistory       = errors.New("history database not configured")
)

// Gamemodes and Platforms accepted by Fetch. The empty platform means any.
var (
	Gamemodes = []string{"competitive", "quickplay"}
	Platforms = []string{"", "pc", "console"}
)

// SaveKind tells which save control produced a batch
type SaveKind string

const (
	SaveAggregate SaveKind = "aggregate"
	SaveView      SaveKind = "view"
)

// Notification types pushed to the browser
const (
	NoteFetchStarted  = "fetch_started"
	NoteRateLimited   = "rate_limited"
	NoteFetchDone     = "fetch_done"
	NoteFetchFailed   = "fetch_failed"
	NoteSnapshotSaved = "snapshot_saved"
)

// FetchInput holds the raw values of the lookup controls
type FetchInput struct {
	Battletag string `json:"battletag"`
	Gamemode  string `json:"gamemode"`
	Platform  string `json:"platform"`
	Hero      string `json:"hero"`
}

// SaveResult describes one persisted batch
type SaveResult struct {
	BatchID   uuid.UUID `json:"batchId"`
	Kind      SaveKind  `json:"kind"`
	Rows      int       `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

// StatsSource is the upstream API, usually an *overfast.CachedClient
type StatsSource interface {
	Summary(ctx context.Context, playerID string) (*overfast.Summary, error)
	CareerStats(ctx context.Context, playerID string, q overfast.StatsQuery) (json.RawMessage, error)
}

// SnapshotStore is the durable snapshot log
type SnapshotStore interface {
	Load() ([]storage.Snapshot, error)
	Save(rows []storage.Snapshot) error
}

// Mirror receives a copy of each saved batch and answers history queries
type Mirror interface {
	SaveSnapshots(ctx context.Context, batchID uuid.UUID, rows []storage.Snapshot) error
	History(ctx context.Context, playerID, hero string) ([]storage.Snapshot, error)
}

// EventSink publishes fetch and save events for analytics
type EventSink interface {
	EmitFetchCompleted(sessionID, playerID, gamemode, platform, hero string, rows int)
	EmitSnapshotSaved(batchID uuid.UUID, sessionID string, kind string, rows []storage.Snapshot)
}

// Notifier pushes progress to the browser tabs of one session
type Notifier interface {
	Notify(sessionID string, kind string, data any)
}

// Service runs the fetch and save flows against explicit session state
type Service struct {
	source   StatsSource
	store    SnapshotStore
	mirror   Mirror
	events   EventSink
	notifier Notifier
	cooldown time.Duration
	now      func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithMirror enables the history database copy
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithEvents enables analytics events
func WithEvents(e EventSink) Option {
	return func(s *Service) { s.events = e }
}

// WithNotifier enables progress pushes
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithCooldown sets the minimum gap between fetches of one session
func WithCooldown(d time.Duration) Option {
	return func(s *Service) { s.cooldown = d }
}

// WithClock replaces time.Now (tests)
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new dashboard service
func NewService(source StatsSource, store SnapshotStore, opts ...Option) *Service {
	s := &Service{
		source:   source,
		store:    store,
		cooldown: 5 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch looks up a player's summary and career stats and stores the
// normalized table in the returned session. On failure the previous fetch
// result is kept; only the cooldown clock moves.
func (s *Service) Fetch(ctx context.Context, sess Session, in FetchInput) (Session, error) {
	now := s.now()
	if !sess.LastFetch.IsZero() && now.Sub(sess.LastFetch) < s.cooldown {
		return sess, ErrCooldown
	}
	sess.LastFetch = now

	battletag := strings.TrimSpace(in.Battletag)
	if battletag == "" {
		return sess, ErrNoBattletag
	}
	mode := strings.TrimSpace(in.Gamemode)
	if mode == "" {
		mode = Gamemodes[0]
	}
	if !contains(Gamemodes, mode) {
		return sess, ErrInvalidMode
	}
	platform := strings.TrimSpace(in.Platform)
	if !contains(Platforms, platform) {
		return sess, ErrInvalidPlatform
	}
	hero := strings.TrimSpace(in.Hero)
	pid := overfast.PlayerIDFromBattletag(battletag)

	s.notify(sess.ID, NoteFetchStarted, map[string]string{"battletag": battletag, "playerId": pid})
	ctx = overfast.ObserveRetries(ctx, func(ev overfast.RetryEvent) {
		s.notify(sess.ID, NoteRateLimited, map[string]any{
			"url":        ev.URL,
			"attempt":    ev.Attempt,
			"maxRetries": ev.MaxRetries,
			"waitSec":    ev.Wait.Seconds(),
			"fromHeader": ev.FromHeader,
		})
	})

	summary, err := s.source.Summary(ctx, pid)
	if err != nil {
		return sess, s.fetchFailed(sess, err)
	}
	raw, err := s.source.CareerStats(ctx, pid, overfast.StatsQuery{Gamemode: mode, Platform: platform, Hero: hero})
	if err != nil {
		return sess, s.fetchFailed(sess, err)
	}
	table := stats.Normalize(raw)

	sess.Battletag = battletag
	sess.PlayerID = pid
	sess.Gamemode = mode
	sess.Platform = platform
	sess.Hero = hero
	sess.Summary = summary
	sess.Table = table
	sess.FetchedAt = now

	log.Printf("[session] %s fetched %s (%s) %s: %d rows", sess.ID, battletag, pid, mode, len(table))
	s.notify(sess.ID, NoteFetchDone, map[string]any{"battletag": battletag, "playerId": pid, "rows": len(table)})
	if s.events != nil {
		s.events.EmitFetchCompleted(sess.ID, pid, mode, platform, hero, len(table))
	}

	return sess, nil
}

func (s *Service) fetchFailed(sess Session, err error) error {
	log.Printf("[session] %s fetch failed: %v", sess.ID, err)
	s.notify(sess.ID, NoteFetchFailed, map[string]string{"error": err.Error()})
	return fmt.Errorf("fetch failed: %w", err)
}

// SaveAggregate persists only the all-heroes row of the current table
func (s *Service) SaveAggregate(ctx context.Context, sess Session) (SaveResult, error) {
	return s.save(ctx, sess, stats.FilterHero(sess.Table, stats.AllHeroes), SaveAggregate)
}

// SaveView persists every row of the current table
func (s *Service) SaveView(ctx context.Context, sess Session) (SaveResult, error) {
	return s.save(ctx, sess, sess.Table, SaveView)
}

func (s *Service) save(ctx context.Context, sess Session, rows []stats.StatRow, kind SaveKind) (SaveResult, error) {
	if len(rows) == 0 || sess.PlayerID == "" {
		return SaveResult{}, ErrNothingToSave
	}

	ts := s.now().UTC()
	snaps := make([]storage.Snapshot, 0, len(rows))
	for _, r := range rows {
		snaps = append(snaps, storage.Snapshot{
			Timestamp:      ts,
			Battletag:      sess.Battletag,
			PlayerID:       sess.PlayerID,
			Gamemode:       sess.Gamemode,
			Platform:       sess.Platform,
			Hero:           r.Hero,
			GamesPlayed:    r.GamesPlayed,
			GamesWon:       r.GamesWon,
			GamesLost:      r.GamesLost,
			TimePlayedSec:  r.TimePlayedSec,
			Eliminations:   r.Eliminations,
			Deaths:         r.Deaths,
			HeroDamageDone: r.HeroDamageDone,
			HealingDone:    r.HealingDone,
		})
	}

	if err := s.store.Save(snaps); err != nil {
		return SaveResult{}, fmt.Errorf("save failed: %w", err)
	}

	result := SaveResult{BatchID: uuid.New(), Kind: kind, Rows: len(snaps), Timestamp: ts}

	if s.mirror != nil {
		if err := s.mirror.SaveSnapshots(ctx, result.BatchID, snaps); err != nil {
			log.Printf("Warning: snapshot mirror failed for batch %s: %v", result.BatchID, err)
		}
	}
	if s.events != nil {
		s.events.EmitSnapshotSaved(result.BatchID, sess.ID, string(kind), snaps)
	}
	s.notify(sess.ID, NoteSnapshotSaved, result)

	return result, nil
}

// Snapshots returns every saved snapshot, newest first
func (s *Service) Snapshots(ctx context.Context) ([]storage.Snapshot, error) {
	snaps, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return storage.NewestFirst(snaps), nil
}

// Trend returns the all-heroes history points, optionally for one player
func (s *Service) Trend(ctx context.Context, playerID string) ([]storage.TrendPoint, error) {
	snaps, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return storage.Trend(snaps, playerID), nil
}

// History queries the mirror database for one player and hero
func (s *Service) History(ctx context.Context, playerID, hero string) ([]storage.Snapshot, error) {
	if s.mirror == nil {
		return nil, ErrNoHistory
	}
	if hero == "" {
		hero = stats.AllHeroes
	}
	return s.mirror.History(ctx, playerID, hero)
}

func (s *Service) notify(sessionID, kind string, data any) {
	if s.notifier != nil && sessionID != "" {
		s.notifier.Notify(sessionID, kind, data)
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
