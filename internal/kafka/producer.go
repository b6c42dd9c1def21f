package kafka

import (
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/ow-stat-tracker/internal/storage"
)

const (
	TopicStatEvents = "stat-tracker-events"
)

// EventType represents the type of tracker event
type EventType string

const (
	EventFetchCompleted EventType = "fetch_completed"
	EventSnapshotSaved  EventType = "snapshot_saved"
)

// Event is the envelope published for analytics
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	PlayerID  string    `json:"playerId"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// FetchCompletedData contains data for fetch events
type FetchCompletedData struct {
	Gamemode string `json:"gamemode"`
	Platform string `json:"platform"`
	Hero     string `json:"hero"`
	Rows     int    `json:"rows"`
}

// SnapshotSavedData contains data for save events
type SnapshotSavedData struct {
	BatchID string   `json:"batchId"`
	Kind    string   `json:"kind"`
	Rows    int      `json:"rows"`
	Heroes  []string `json:"heroes"`
}

// Producer handles Kafka event production
type Producer struct {
	producer sarama.SyncProducer
	enabled  bool
}

// NewProducer creates a new Kafka producer. With no brokers, or none
// reachable, it returns a disabled producer whose Emit calls do nothing.
func NewProducer(brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return &Producer{enabled: false}, nil
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		log.Printf("Kafka producer not available: %v (analytics disabled)", err)
		return &Producer{enabled: false}, nil
	}

	log.Println("Kafka producer connected")
	return &Producer{producer: producer, enabled: true}, nil
}

// EmitFetchCompleted emits a fetch event
func (p *Producer) EmitFetchCompleted(sessionID, playerID, gamemode, platform, hero string, rows int) {
	if !p.enabled {
		return
	}

	p.send(Event{
		ID:        uuid.NewString(),
		Type:      EventFetchCompleted,
		SessionID: sessionID,
		PlayerID:  playerID,
		Timestamp: time.Now().UTC(),
		Data: FetchCompletedData{
			Gamemode: gamemode,
			Platform: platform,
			Hero:     hero,
			Rows:     rows,
		},
	})
}

// EmitSnapshotSaved emits a save event for one batch
func (p *Producer) EmitSnapshotSaved(batchID uuid.UUID, sessionID string, kind string, rows []storage.Snapshot) {
	if !p.enabled || len(rows) == 0 {
		return
	}

	heroes := make([]string, 0, len(rows))
	for _, r := range rows {
		heroes = append(heroes, r.Hero)
	}

	p.send(Event{
		ID:        uuid.NewString(),
		Type:      EventSnapshotSaved,
		SessionID: sessionID,
		PlayerID:  rows[0].PlayerID,
		Timestamp: rows[0].Timestamp,
		Data: SnapshotSavedData{
			BatchID: batchID.String(),
			Kind:    kind,
			Rows:    len(rows),
			Heroes:  heroes,
		},
	})
}

// send sends an event to Kafka
func (p *Producer) send(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: TopicStatEvents,
		Key:   sarama.StringEncoder(event.PlayerID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(msg)
	if err != nil {
		log.Printf("Error sending event to Kafka: %v", err)
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// IsEnabled returns whether Kafka is enabled
func (p *Producer) IsEnabled() bool {
	return p.enabled
}
