package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/roots/internal/models"
)

// UserServiceInterface defines the contract for user operations.
type UserServiceInterface interface {
	Create(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error
}

// AuthServiceInterface defines the contract for authentication operations.
type AuthServiceInterface interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hash, password string) bool
	CreateSession(ctx context.Context, userID uuid.UUID) (token string, err error)
	ValidateSession(ctx context.Context, token string) (*models.User, error)
	CheckSession(ctx context.Context, token string, timeout time.Duration) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error
}

// TokenServiceInterface issues and checks bearer tokens.
type TokenServiceInterface interface {
	Issue(user *models.User) (string, time.Time, error)
	Validate(token string) (*models.SessionInfo, error)
}

// RitualServiceInterface defines the contract for ritual operations used by handlers.
type RitualServiceInterface interface {
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Ritual, error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Ritual, error)
	Create(ctx context.Context, ownerID uuid.UUID, name string) (*models.Ritual, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, params models.UpdateRitualParams) (*models.Ritual, error)
	Unchain(ctx context.Context, ownerID, id uuid.UUID) (*models.Ritual, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	Complete(ctx context.Context, ownerID, id uuid.UUID, today time.Time) (*models.CompletionResult, error)
	FormChain(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Ritual, error)
	RecentActivity(ctx context.Context, ownerID uuid.UUID, today time.Time) (models.WeeklyActivity, error)
	Garden(ctx context.Context, ownerID uuid.UUID, today time.Time) (*models.Garden, error)
}

// FriendServiceInterface defines the contract for friend operations.
type FriendServiceInterface interface {
	SendRequestByEmail(ctx context.Context, caller *models.User, email string) (*models.Friendship, error)
	AcceptRequest(ctx context.Context, userID, friendshipID uuid.UUID) (*models.Friendship, error)
	DeclineRequest(ctx context.Context, userID, friendshipID uuid.UUID) error
	CancelRequest(ctx context.Context, userID, friendshipID uuid.UUID) error
	RemoveFriend(ctx context.Context, userID, friendshipID uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error)
	ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)
	ListSentRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error)
	IsFriend(ctx context.Context, userID, otherID uuid.UUID) (bool, error)
	GetFriendUserID(ctx context.Context, userID, friendshipID uuid.UUID) (uuid.UUID, error)
	SearchUsers(ctx context.Context, currentUserID uuid.UUID, query string) ([]models.UserSearchResult, error)
}

// AvatarServiceInterface stores profile images.
type AvatarServiceInterface interface {
	Upload(ctx context.Context, userID uuid.UUID, contentType string, size int64, r io.Reader) (string, error)
}

// FeedSubscriber streams row changes for one table and owner.
type FeedSubscriber interface {
	Subscribe(ctx context.Context, table string, owner uuid.UUID) (<-chan Change, error)
}

var (
	_ UserServiceInterface   = (*UserService)(nil)
	_ AuthServiceInterface   = (*AuthService)(nil)
	_ TokenServiceInterface  = (*TokenService)(nil)
	_ RitualServiceInterface = (*RitualService)(nil)
	_ FriendServiceInterface = (*FriendService)(nil)
	_ AvatarServiceInterface = (*AvatarService)(nil)
	_ FeedSubscriber         = (*FeedService)(nil)
	_ Publisher              = (*FeedService)(nil)
	_ FriendNotifier         = (*EmailService)(nil)
	_ ObjectStore            = (*FSStore)(nil)
)
