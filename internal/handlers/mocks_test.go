package handlers

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/roots/internal/models"
	"github.com/HammerMeetNail/roots/internal/services"
)

type mockUserService struct {
	CreateFunc         func(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByIDFunc        func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmailFunc     func(ctx context.Context, email string) (*models.User, error)
	UpdateProfileFunc  func(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, userID uuid.UUID, newPasswordHash string) error
}

func (m *mockUserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, params)
	}
	return nil, nil
}

func (m *mockUserService) UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, userID, newPasswordHash)
	}
	return nil
}

type mockAuthService struct {
	HashPasswordFunc          func(password string) (string, error)
	VerifyPasswordFunc        func(hash, password string) bool
	CreateSessionFunc         func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSessionFunc       func(ctx context.Context, token string) (*models.User, error)
	CheckSessionFunc          func(ctx context.Context, token string, timeout time.Duration) (*models.User, error)
	DeleteSessionFunc         func(ctx context.Context, token string) error
	DeleteAllUserSessionsFunc func(ctx context.Context, userID uuid.UUID) error
}

func (m *mockAuthService) HashPassword(password string) (string, error) {
	if m.HashPasswordFunc != nil {
		return m.HashPasswordFunc(password)
	}
	return "hashed_" + password, nil
}

func (m *mockAuthService) VerifyPassword(hash, password string) bool {
	if m.VerifyPasswordFunc != nil {
		return m.VerifyPasswordFunc(hash, password)
	}
	return hash == "hashed_"+password
}

func (m *mockAuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID)
	}
	return "session-token", nil
}

func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, token)
	}
	return nil, services.ErrSessionNotFound
}

func (m *mockAuthService) CheckSession(ctx context.Context, token string, timeout time.Duration) (*models.User, error) {
	if m.CheckSessionFunc != nil {
		return m.CheckSessionFunc(ctx, token, timeout)
	}
	return nil, services.ErrSessionNotFound
}

func (m *mockAuthService) DeleteSession(ctx context.Context, token string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, token)
	}
	return nil
}

func (m *mockAuthService) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	if m.DeleteAllUserSessionsFunc != nil {
		return m.DeleteAllUserSessionsFunc(ctx, userID)
	}
	return nil
}

type mockTokenService struct {
	IssueFunc    func(user *models.User) (string, time.Time, error)
	ValidateFunc func(token string) (*models.SessionInfo, error)
}

func (m *mockTokenService) Issue(user *models.User) (string, time.Time, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(user)
	}
	return "jwt-token", time.Time{}, nil
}

func (m *mockTokenService) Validate(token string) (*models.SessionInfo, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(token)
	}
	return nil, services.ErrInvalidToken
}

type mockRitualService struct {
	ListFunc           func(ctx context.Context, ownerID uuid.UUID) ([]models.Ritual, error)
	GetFunc            func(ctx context.Context, ownerID, id uuid.UUID) (*models.Ritual, error)
	CreateFunc         func(ctx context.Context, ownerID uuid.UUID, name string) (*models.Ritual, error)
	UpdateFunc         func(ctx context.Context, ownerID, id uuid.UUID, params models.UpdateRitualParams) (*models.Ritual, error)
	UnchainFunc        func(ctx context.Context, ownerID, id uuid.UUID) (*models.Ritual, error)
	DeleteFunc         func(ctx context.Context, ownerID, id uuid.UUID) error
	CompleteFunc       func(ctx context.Context, ownerID, id uuid.UUID, today time.Time) (*models.CompletionResult, error)
	FormChainFunc      func(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Ritual, error)
	RecentActivityFunc func(ctx context.Context, ownerID uuid.UUID, today time.Time) (models.WeeklyActivity, error)
	GardenFunc         func(ctx context.Context, ownerID uuid.UUID, today time.Time) (*models.Garden, error)
}

func (m *mockRitualService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Ritual, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockRitualService) Get(ctx context.Context, ownerID, id uuid.UUID) (*models.Ritual, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, ownerID, id)
	}
	return nil, services.ErrRitualNotFound
}

func (m *mockRitualService) Create(ctx context.Context, ownerID uuid.UUID, name string) (*models.Ritual, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ownerID, name)
	}
	return nil, nil
}

func (m *mockRitualService) Update(ctx context.Context, ownerID, id uuid.UUID, params models.UpdateRitualParams) (*models.Ritual, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, ownerID, id, params)
	}
	return nil, nil
}

func (m *mockRitualService) Unchain(ctx context.Context, ownerID, id uuid.UUID) (*models.Ritual, error) {
	if m.UnchainFunc != nil {
		return m.UnchainFunc(ctx, ownerID, id)
	}
	return nil, nil
}

func (m *mockRitualService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, ownerID, id)
	}
	return nil
}

func (m *mockRitualService) Complete(ctx context.Context, ownerID, id uuid.UUID, today time.Time) (*models.CompletionResult, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, ownerID, id, today)
	}
	return nil, nil
}

func (m *mockRitualService) FormChain(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Ritual, error) {
	if m.FormChainFunc != nil {
		return m.FormChainFunc(ctx, ownerID, ids)
	}
	return nil, nil
}

func (m *mockRitualService) RecentActivity(ctx context.Context, ownerID uuid.UUID, today time.Time) (models.WeeklyActivity, error) {
	if m.RecentActivityFunc != nil {
		return m.RecentActivityFunc(ctx, ownerID, today)
	}
	return models.WeeklyActivity{}, nil
}

func (m *mockRitualService) Garden(ctx context.Context, ownerID uuid.UUID, today time.Time) (*models.Garden, error) {
	if m.GardenFunc != nil {
		return m.GardenFunc(ctx, ownerID, today)
	}
	return &models.Garden{OwnerID: ownerID}, nil
}

type mockFriendService struct {
	SendRequestByEmailFunc  func(ctx context.Context, caller *models.User, email string) (*models.Friendship, error)
	AcceptRequestFunc       func(ctx context.Context, userID, friendshipID uuid.UUID) (*models.Friendship, error)
	DeclineRequestFunc      func(ctx context.Context, userID, friendshipID uuid.UUID) error
	CancelRequestFunc       func(ctx context.Context, userID, friendshipID uuid.UUID) error
	RemoveFriendFunc        func(ctx context.Context, userID, friendshipID uuid.UUID) error
	ListFriendsFunc         func(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error)
	ListPendingRequestsFunc func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error)
	ListSentRequestsFunc    func(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error)
	IsFriendFunc            func(ctx context.Context, userID, otherID uuid.UUID) (bool, error)
	GetFriendUserIDFunc     func(ctx context.Context, userID, friendshipID uuid.UUID) (uuid.UUID, error)
	SearchUsersFunc         func(ctx context.Context, currentUserID uuid.UUID, query string) ([]models.UserSearchResult, error)
}

func (m *mockFriendService) SendRequestByEmail(ctx context.Context, caller *models.User, email string) (*models.Friendship, error) {
	if m.SendRequestByEmailFunc != nil {
		return m.SendRequestByEmailFunc(ctx, caller, email)
	}
	return nil, nil
}

func (m *mockFriendService) AcceptRequest(ctx context.Context, userID, friendshipID uuid.UUID) (*models.Friendship, error) {
	if m.AcceptRequestFunc != nil {
		return m.AcceptRequestFunc(ctx, userID, friendshipID)
	}
	return nil, nil
}

func (m *mockFriendService) DeclineRequest(ctx context.Context, userID, friendshipID uuid.UUID) error {
	if m.DeclineRequestFunc != nil {
		return m.DeclineRequestFunc(ctx, userID, friendshipID)
	}
	return nil
}

func (m *mockFriendService) CancelRequest(ctx context.Context, userID, friendshipID uuid.UUID) error {
	if m.CancelRequestFunc != nil {
		return m.CancelRequestFunc(ctx, userID, friendshipID)
	}
	return nil
}

func (m *mockFriendService) RemoveFriend(ctx context.Context, userID, friendshipID uuid.UUID) error {
	if m.RemoveFriendFunc != nil {
		return m.RemoveFriendFunc(ctx, userID, friendshipID)
	}
	return nil
}

func (m *mockFriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockFriendService) ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequest, error) {
	if m.ListPendingRequestsFunc != nil {
		return m.ListPendingRequestsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockFriendService) ListSentRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error) {
	if m.ListSentRequestsFunc != nil {
		return m.ListSentRequestsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockFriendService) IsFriend(ctx context.Context, userID, otherID uuid.UUID) (bool, error) {
	if m.IsFriendFunc != nil {
		return m.IsFriendFunc(ctx, userID, otherID)
	}
	return false, nil
}

func (m *mockFriendService) GetFriendUserID(ctx context.Context, userID, friendshipID uuid.UUID) (uuid.UUID, error) {
	if m.GetFriendUserIDFunc != nil {
		return m.GetFriendUserIDFunc(ctx, userID, friendshipID)
	}
	return uuid.Nil, services.ErrNotFriend
}

func (m *mockFriendService) SearchUsers(ctx context.Context, currentUserID uuid.UUID, query string) ([]models.UserSearchResult, error) {
	if m.SearchUsersFunc != nil {
		return m.SearchUsersFunc(ctx, currentUserID, query)
	}
	return []models.UserSearchResult{}, nil
}

type mockAvatarService struct {
	UploadFunc func(ctx context.Context, userID uuid.UUID, contentType string, size int64, r io.Reader) (string, error)
}

func (m *mockAvatarService) Upload(ctx context.Context, userID uuid.UUID, contentType string, size int64, r io.Reader) (string, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, userID, contentType, size, r)
	}
	return "/uploads/avatars/" + userID.String() + ".png", nil
}

type mockFeedSubscriber struct {
	SubscribeFunc func(ctx context.Context, table string, owner uuid.UUID) (<-chan services.Change, error)
}

func (m *mockFeedSubscriber) Subscribe(ctx context.Context, table string, owner uuid.UUID) (<-chan services.Change, error) {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(ctx, table, owner)
	}
	ch := make(chan services.Change)
	close(ch)
	return ch, nil
}

var (
	_ services.UserServiceInterface   = (*mockUserService)(nil)
	_ services.AuthServiceInterface   = (*mockAuthService)(nil)
	_ services.TokenServiceInterface  = (*mockTokenService)(nil)
	_ services.RitualServiceInterface = (*mockRitualService)(nil)
	_ services.FriendServiceInterface = (*mockFriendService)(nil)
	_ services.AvatarServiceInterface = (*mockAvatarService)(nil)
	_ services.FeedSubscriber         = (*mockFeedSubscriber)(nil)
)
