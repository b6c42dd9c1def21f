package kafka

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// AnalyticsMetrics holds aggregated usage data
type AnalyticsMetrics struct {
	TotalFetches   int64                     `json:"totalFetches"`
	TotalSaves     int64                     `json:"totalSaves"`
	SnapshotRows   int64                     `json:"snapshotRows"`
	SavesByKind    map[string]int            `json:"savesByKind"`
	FetchesPerHour map[string]int            `json:"fetchesPerHour"`
	PlayerStats    map[string]*PlayerMetrics `json:"playerStats"`
	mu             sync.RWMutex
}

// PlayerMetrics holds per-player usage
type PlayerMetrics struct {
	Fetches      int       `json:"fetches"`
	Saves        int       `json:"saves"`
	SnapshotRows int       `json:"snapshotRows"`
	LastSeen     time.Time `json:"lastSeen"`
}

// Consumer handles Kafka event consumption for analytics
type Consumer struct {
	consumer sarama.ConsumerGroup
	metrics  *AnalyticsMetrics
	ctx      context.Context
	cancel   context.CancelFunc
}

func newMetrics() *AnalyticsMetrics {
	return &AnalyticsMetrics{
		SavesByKind:    make(map[string]int),
		FetchesPerHour: make(map[string]int),
		PlayerStats:    make(map[string]*PlayerMetrics),
	}
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumer, err := sarama.NewConsumerGroup(brokers, "stat-tracker-analytics", config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		consumer: consumer,
		metrics:  newMetrics(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins consuming events
func (c *Consumer) Start() {
	go func() {
		for {
			if err := c.consumer.Consume(c.ctx, []string{TopicStatEvents}, c); err != nil {
				log.Printf("Consumer error: %v", err)
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
	log.Println("Kafka consumer started")
}

// Setup is called at the beginning of a new session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called at the end of a session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		c.processMessage(msg.Value)
		session.MarkMessage(msg, "")
	}
	return nil
}

// processMessage handles a single event payload
func (c *Consumer) processMessage(value []byte) {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("Error unmarshaling event: %v", err)
		return
	}

	c.metrics.mu.Lock()
	defer c.metrics.mu.Unlock()

	switch event.Type {
	case EventFetchCompleted:
		c.handleFetchCompleted(event)
	case EventSnapshotSaved:
		c.handleSnapshotSaved(event)
	}
}

func (c *Consumer) player(event Event) *PlayerMetrics {
	pm := c.metrics.PlayerStats[event.PlayerID]
	if pm == nil {
		pm = &PlayerMetrics{}
		c.metrics.PlayerStats[event.PlayerID] = pm
	}
	if event.Timestamp.After(pm.LastSeen) {
		pm.LastSeen = event.Timestamp
	}
	return pm
}

// handleFetchCompleted processes fetch events
func (c *Consumer) handleFetchCompleted(event Event) {
	c.metrics.TotalFetches++
	c.metrics.FetchesPerHour[event.Timestamp.UTC().Format("2006-01-02-15")]++
	c.player(event).Fetches++
}

// handleSnapshotSaved processes save events
func (c *Consumer) handleSnapshotSaved(event Event) {
	data, ok := event.Data.(map[string]interface{})
	if !ok {
		return
	}

	rows := 0
	if n, ok := data["rows"].(float64); ok {
		rows = int(n)
	}

	c.metrics.TotalSaves++
	c.metrics.SnapshotRows += int64(rows)
	if kind, ok := data["kind"].(string); ok {
		c.metrics.SavesByKind[kind]++
	}

	pm := c.player(event)
	pm.Saves++
	pm.SnapshotRows += rows
}

// GetMetrics returns a copy of the current metrics
func (c *Consumer) GetMetrics() *AnalyticsMetrics {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	out := newMetrics()
	out.TotalFetches = c.metrics.TotalFetches
	out.TotalSaves = c.metrics.TotalSaves
	out.SnapshotRows = c.metrics.SnapshotRows

	for k, v := range c.metrics.SavesByKind {
		out.SavesByKind[k] = v
	}
	for k, v := range c.metrics.FetchesPerHour {
		out.FetchesPerHour[k] = v
	}
	for k, v := range c.metrics.PlayerStats {
		pm := *v
		out.PlayerStats[k] = &pm
	}

	return out
}

// GetFetchesPerHour returns fetches in the last 24 hours by hour
func (c *Consumer) GetFetchesPerHour() map[string]int {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	now := time.Now().UTC()
	result := make(map[string]int)

	for i := 0; i < 24; i++ {
		key := now.Add(-time.Duration(i) * time.Hour).Format("2006-01-02-15")
		result[key] = c.metrics.FetchesPerHour[key]
	}

	return result
}

// GetMostTrackedPlayer returns the player with the most saved snapshot rows
func (c *Consumer) GetMostTrackedPlayer() string {
	c.metrics.mu.RLock()
	defer c.metrics.mu.RUnlock()

	best, top := "", 0
	for player, pm := range c.metrics.PlayerStats {
		if pm.SnapshotRows > top || (pm.SnapshotRows == top && top > 0 && player < best) {
			best, top = player, pm.SnapshotRows
		}
	}
	return best
}

// Stop stops the consumer
func (c *Consumer) Stop() {
	c.cancel()
	c.consumer.Close()
}
