package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/roots/internal/logging"
	"github.com/HammerMeetNail/roots/internal/metrics"
	"github.com/HammerMeetNail/roots/internal/models"
)

const (
	minSearchLength    = 2
	searchResultLimit  = 20
	friendEmailTimeout = 30 * time.Second
)

var (
	ErrFriendshipNotFound     = newError(ErrNotFound, "friendship not found")
	ErrCannotFriendSelf       = newError(ErrConflict, "you cannot add yourself as a friend")
	ErrAlreadyFriends         = newError(ErrConflict, "you are already friends")
	ErrRequestAlreadySent     = newError(ErrConflict, "friend request already sent")
	ErrRequestAlreadyReceived = newError(ErrConflict, "this user already sent you a friend request")
	ErrFriendshipNotPending   = newError(ErrConflict, "friend request is no longer pending")
	ErrNotFriendshipRecipient = newError(ErrUnauthorized, "only the recipient can respond to this request")
	ErrNotFriendshipSender    = newError(ErrUnauthorized, "only the sender can cancel this request")
	ErrNotFriend              = newError(ErrUnauthorized, "you are not friends with this user")
)

const friendshipColumns = `id, sender_id, receiver_id, status, created_at`

// FriendNotifier tells a user they received a friend request.
type FriendNotifier interface {
	SendFriendRequestEmail(ctx context.Context, to, sender string) error
}

type FriendService struct {
	db      DB
	email   FriendNotifier
	feed    Publisher
	metrics *metrics.Metrics
	// background runs fire-and-forget work such as notification emails.
	background func(func())
}

func NewFriendService(db DB, email FriendNotifier, feed Publisher, m *metrics.Metrics) *FriendService {
	return &FriendService{
		db:         db,
		email:      email,
		feed:       feed,
		metrics:    m,
		background: func(f func()) { go f() },
	}
}

func scanFriendship(row Row) (*models.Friendship, error) {
	f := &models.Friendship{}
	if err := row.Scan(&f.ID, &f.SenderID, &f.ReceiverID, &f.Status, &f.CreatedAt); err != nil {
		return nil, err
	}
	return f, nil
}

// SendRequestByEmail asks the user registered under email to be caller's friend.
// A previously rejected pair is reopened as a fresh request.
func (s *FriendService) SendRequestByEmail(ctx context.Context, caller *models.User, email string) (*models.Friendship, error) {
	email = strings.TrimSpace(email)
	if strings.EqualFold(email, caller.Email) {
		return nil, ErrCannotFriendSelf
	}

	var (
		targetID    uuid.UUID
		targetEmail string
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, email FROM users WHERE LOWER(email) = LOWER($1)`,
		email,
	).Scan(&targetID, &targetEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if targetID == caller.ID {
		return nil, ErrCannotFriendSelf
	}

	existing, err := scanFriendship(s.db.QueryRow(ctx,
		`SELECT `+friendshipColumns+` FROM friendships
		 WHERE (sender_id = $1 AND receiver_id = $2)
		    OR (sender_id = $2 AND receiver_id = $1)`,
		caller.ID, targetID,
	))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("checking friendship existence: %w", err)
	}

	var friendship *models.Friendship
	if existing != nil {
		switch {
		case existing.Status == models.FriendshipStatusAccepted:
			return nil, ErrAlreadyFriends
		case existing.Status == models.FriendshipStatusPending && existing.SenderID == caller.ID:
			return nil, ErrRequestAlreadySent
		case existing.Status == models.FriendshipStatusPending:
			return nil, ErrRequestAlreadyReceived
		}
		friendship, err = scanFriendship(s.db.QueryRow(ctx,
			`UPDATE friendships
			 SET sender_id = $2, receiver_id = $3, status = 'pending', created_at = NOW()
			 WHERE id = $1
			 RETURNING `+friendshipColumns,
			existing.ID, caller.ID, targetID,
		))
	} else {
		friendship, err = scanFriendship(s.db.QueryRow(ctx,
			`INSERT INTO friendships (id, sender_id, receiver_id, status)
			 VALUES ($1, $2, $3, 'pending')
			 RETURNING `+friendshipColumns,
			uuid.New(), caller.ID, targetID,
		))
	}
	if isUniqueViolation(err) {
		return nil, ErrRequestAlreadySent
	}
	if err != nil {
		return nil, fmt.Errorf("creating friend request: %w", err)
	}

	s.metrics.ObserveFriendRequest("sent")
	s.publish(ctx, ChangeInsert, friendship)
	s.notify(targetEmail, caller.DisplayName)
	return friendship, nil
}

func (s *FriendService) notify(to, sender string) {
	if s.email == nil {
		return
	}
	s.background(func() {
		// The request context ends with the response.
		ctx, cancel := context.WithTimeout(context.Background(), friendEmailTimeout)
		defer cancel()
		if err := s.email.SendFriendRequestEmail(ctx, to, sender); err != nil {
			logging.Error("Error sending friend request email", map[string]interface{}{"error": err.Error()})
		}
	})
}

func (s *FriendService) AcceptRequest(ctx context.Context, userID, friendshipID uuid.UUID) (*models.Friendship, error) {
	friendship, err := s.getByID(ctx, friendshipID)
	if err != nil {
		return nil, err
	}
	if friendship.ReceiverID != userID {
		return nil, ErrNotFriendshipRecipient
	}
	if friendship.Status != models.FriendshipStatusPending {
		return nil, ErrFriendshipNotPending
	}

	if _, err := s.db.Exec(ctx,
		"UPDATE friendships SET status = 'accepted' WHERE id = $1",
		friendshipID,
	); err != nil {
		return nil, fmt.Errorf("accepting friendship: %w", err)
	}

	friendship.Status = models.FriendshipStatusAccepted
	s.metrics.ObserveFriendRequest("accepted")
	s.publish(ctx, ChangeUpdate, friendship)
	return friendship, nil
}

// DeclineRequest removes a pending request addressed to userID.
func (s *FriendService) DeclineRequest(ctx context.Context, userID, friendshipID uuid.UUID) error {
	friendship, err := s.getByID(ctx, friendshipID)
	if err != nil {
		return err
	}
	if friendship.ReceiverID != userID {
		return ErrNotFriendshipRecipient
	}
	if friendship.Status != models.FriendshipStatusPending {
		return ErrFriendshipNotPending
	}
	if err := s.delete(ctx, friendship, "declining"); err != nil {
		return err
	}
	s.metrics.ObserveFriendRequest("declined")
	return nil
}

// CancelRequest withdraws a pending request userID sent.
func (s *FriendService) CancelRequest(ctx context.Context, userID, friendshipID uuid.UUID) error {
	friendship, err := s.getByID(ctx, friendshipID)
	if err != nil {
		return err
	}
	if friendship.SenderID != userID {
		return ErrNotFriendshipSender
	}
	if friendship.Status != models.FriendshipStatusPending {
		return ErrFriendshipNotPending
	}
	if err := s.delete(ctx, friendship, "canceling"); err != nil {
		return err
	}
	s.metrics.ObserveFriendRequest("canceled")
	return nil
}

// RemoveFriend ends an accepted friendship. Either party may remove it.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendshipID uuid.UUID) error {
	friendship, err := s.getByID(ctx, friendshipID)
	if err != nil {
		return err
	}
	if !friendship.Involves(userID) || friendship.Status != models.FriendshipStatusAccepted {
		return ErrFriendshipNotFound
	}
	return s.delete(ctx, friendship, "removing")
}

func (s *FriendService) delete(ctx context.Context, friendship *models.Friendship, verb string) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM friendships WHERE id = $1", friendship.ID); err != nil {
		return fmt.Errorf("%s friendship: %w", verb, err)
	}
	s.publish(ctx, ChangeDelete, friendship)
	return nil
}

func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error) {
	rows, err := s.db.Query(ctx,
		`SELECT f.id, f.sender_id, f.receiver_id, f.status, f.created_at,
		        u.id, u.display_name, u.avatar_url
		 FROM friendships f
		 JOIN users u ON u.id = CASE WHEN f.sender_id = $1 THEN f.receiver_id ELSE f.sender_id END
		 WHERE (f.sender_id = $1 OR f.receiver_id = $1) AND f.status = 'accepted'
		 ORDER BY u.display_name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	return collectFriends(rows)
}

// ListPendingRequests returns requests waiting on userID's answer.
func (s *FriendService) ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT f.id, f.sender_id, f.receiver_id, f.status, f.created_at,
		        u.id, u.display_name, u.avatar_url
		 FROM friendships f
		 JOIN users u ON u.id = f.sender_id
		 WHERE f.receiver_id = $1 AND f.status = 'pending'
		 ORDER BY f.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending requests: %w", err)
	}
	defer rows.Close()

	requests := []models.FriendRequest{}
	for rows.Next() {
		var r models.FriendRequest
		if err := rows.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &r.Status, &r.CreatedAt,
			&r.Sender.ID, &r.Sender.DisplayName, &r.Sender.AvatarURL); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating requests: %w", err)
	}
	return requests, nil
}

// ListSentRequests returns userID's outstanding requests with the recipient as Friend.
func (s *FriendService) ListSentRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error) {
	rows, err := s.db.Query(ctx,
		`SELECT f.id, f.sender_id, f.receiver_id, f.status, f.created_at,
		        u.id, u.display_name, u.avatar_url
		 FROM friendships f
		 JOIN users u ON u.id = f.receiver_id
		 WHERE f.sender_id = $1 AND f.status = 'pending'
		 ORDER BY f.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sent requests: %w", err)
	}
	return collectFriends(rows)
}

func collectFriends(rows Rows) ([]models.FriendWithUser, error) {
	defer rows.Close()

	friends := []models.FriendWithUser{}
	for rows.Next() {
		var f models.FriendWithUser
		if err := rows.Scan(&f.ID, &f.SenderID, &f.ReceiverID, &f.Status, &f.CreatedAt,
			&f.Friend.ID, &f.Friend.DisplayName, &f.Friend.AvatarURL); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friends: %w", err)
	}
	return friends, nil
}

func (s *FriendService) IsFriend(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	var isFriend bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM friendships
			WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
			  AND status = 'accepted'
		)`,
		userID, otherID,
	).Scan(&isFriend)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return isFriend, nil
}

// GetFriendUserID resolves an accepted friendship to the other party's user id.
func (s *FriendService) GetFriendUserID(ctx context.Context, userID, friendshipID uuid.UUID) (uuid.UUID, error) {
	friendship, err := s.getByID(ctx, friendshipID)
	if err != nil {
		return uuid.Nil, err
	}
	if !friendship.Involves(userID) || friendship.Status != models.FriendshipStatusAccepted {
		return uuid.Nil, ErrNotFriend
	}
	return friendship.OtherParty(userID), nil
}

func (s *FriendService) SearchUsers(ctx context.Context, currentUserID uuid.UUID, query string) ([]models.UserSearchResult, error) {
	query = strings.TrimSpace(query)
	if len(query) < minSearchLength {
		return []models.UserSearchResult{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, display_name, email, avatar_url FROM users
		 WHERE id != $1
		   AND (email ILIKE $2 ESCAPE '\' OR display_name ILIKE $2 ESCAPE '\')
		 ORDER BY display_name
		 LIMIT $3`,
		currentUserID, "%"+escapeLike(query)+"%", searchResultLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	defer rows.Close()

	results := []models.UserSearchResult{}
	for rows.Next() {
		var u models.UserSearchResult
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.Email, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		results = append(results, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return results, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *FriendService) getByID(ctx context.Context, friendshipID uuid.UUID) (*models.Friendship, error) {
	friendship, err := scanFriendship(s.db.QueryRow(ctx,
		`SELECT `+friendshipColumns+` FROM friendships WHERE id = $1`,
		friendshipID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFriendshipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting friendship: %w", err)
	}
	return friendship, nil
}

// publish notifies both parties, each on their own friendships feed.
func (s *FriendService) publish(ctx context.Context, op ChangeOp, f *models.Friendship) {
	publishAll(ctx, s.feed,
		Change{Table: TableFriendships, Op: op, RowID: f.ID, OwnerID: f.SenderID},
		Change{Table: TableFriendships, Op: op, RowID: f.ID, OwnerID: f.ReceiverID},
	)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
