package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/roots/internal/logging"
)

const changeChannelPrefix = "roots:changes:"

// Tables with a change feed.
const (
	TableHabits      = "habits"
	TableFriendships = "friendships"
)

type ChangeOp string

const (
	ChangeInsert ChangeOp = "insert"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// Change announces that a row owned by OwnerID changed. Subscribers re-query
// rather than patch local state from the event.
type Change struct {
	Table   string    `json:"table"`
	Op      ChangeOp  `json:"op"`
	RowID   uuid.UUID `json:"row_id"`
	OwnerID uuid.UUID `json:"owner_id"`
	At      time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

var ErrUnknownFeedTable = newError(ErrInvalid, "unknown feed table")

func ValidFeedTable(table string) bool {
	return table == TableHabits || table == TableFriendships
}

func changeChannel(table string, owner uuid.UUID) string {
	return changeChannelPrefix + table + ":" + owner.String()
}

type pubSubClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// FeedService fans row changes out over redis pub/sub.
type FeedService struct {
	client pubSubClient
	now    func() time.Time
}

func NewFeedService(client *redis.Client) *FeedService {
	return &FeedService{client: client, now: time.Now}
}

func (s *FeedService) Publish(ctx context.Context, change Change) error {
	if !ValidFeedTable(change.Table) {
		return ErrUnknownFeedTable
	}
	if change.At.IsZero() {
		change.At = s.now().UTC()
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}
	if err := s.client.Publish(ctx, changeChannel(change.Table, change.OwnerID), payload).Err(); err != nil {
		return fmt.Errorf("publishing change: %w", err)
	}
	return nil
}

// Subscribe streams changes to table rows owned by owner until ctx is done.
// The returned channel is closed when the subscription ends.
func (s *FeedService) Subscribe(ctx context.Context, table string, owner uuid.UUID) (<-chan Change, error) {
	if !ValidFeedTable(table) {
		return nil, ErrUnknownFeedTable
	}

	sub := s.client.Subscribe(ctx, changeChannel(table, owner))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", table, err)
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				change, err := decodeChange(msg.Payload)
				if err != nil {
					logging.Warn("Dropping malformed change", map[string]interface{}{
						"channel": msg.Channel,
						"error":   err.Error(),
					})
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decodeChange(payload string) (Change, error) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return Change{}, err
	}
	if !ValidFeedTable(change.Table) {
		return Change{}, fmt.Errorf("unknown table %q", change.Table)
	}
	return change, nil
}

// publishAll sends each change, logging failures. Writes have already
// committed, so a lost event only delays subscribers until their next query.
func publishAll(ctx context.Context, p Publisher, changes ...Change) {
	if p == nil {
		return
	}
	for _, c := range changes {
		if err := p.Publish(ctx, c); err != nil {
			logging.Warn("Failed to publish change", map[string]interface{}{
				"table":  c.Table,
				"op":     string(c.Op),
				"row_id": c.RowID.String(),
				"error":  err.Error(),
			})
		}
	}
}
