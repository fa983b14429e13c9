package handlers

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/HammerMeetNail/roots/internal/models"
	"github.com/HammerMeetNail/roots/internal/rituals"
	"github.com/HammerMeetNail/roots/internal/services"
)

type FriendHandler struct {
	friendService services.FriendServiceInterface
	ritualService services.RitualServiceInterface
	userService   services.UserServiceInterface
	now           func() time.Time
}

func NewFriendHandler(
	friendService services.FriendServiceInterface,
	ritualService services.RitualServiceInterface,
	userService services.UserServiceInterface,
) *FriendHandler {
	return &FriendHandler{
		friendService: friendService,
		ritualService: ritualService,
		userService:   userService,
		now:           time.Now,
	}
}

type SendRequestRequest struct {
	Email string `json:"email"`
}

type FriendListResponse struct {
	Friends  []models.FriendWithUser `json:"friends"`
	Requests []models.FriendRequest  `json:"requests"`
	Sent     []models.FriendWithUser `json:"sent"`
}

type FriendshipResponse struct {
	Friendship *models.Friendship `json:"friendship,omitempty"`
	Message    string             `json:"message,omitempty"`
}

type UserSearchResponse struct {
	Users []models.UserSearchResult `json:"users"`
}

type FriendGardenResponse struct {
	Owner  models.FriendProfile `json:"owner"`
	Garden *models.Garden       `json:"garden"`
}

func (h *FriendHandler) Search(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	query := r.URL.Query().Get("q")
	if len(strings.TrimSpace(query)) < 2 {
		writeJSON(w, http.StatusOK, UserSearchResponse{Users: []models.UserSearchResult{}})
		return
	}

	users, err := h.friendService.SearchUsers(r.Context(), user.ID, query)
	if err != nil {
		writeServiceError(w, "searching users", err)
		return
	}

	writeJSON(w, http.StatusOK, UserSearchResponse{Users: users})
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req SendRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid email address")
		return
	}

	friendship, err := h.friendService.SendRequestByEmail(r.Context(), user, req.Email)
	if err != nil {
		writeServiceError(w, "sending friend request", err)
		return
	}

	writeJSON(w, http.StatusCreated, FriendshipResponse{Friendship: friendship, Message: "Friend request sent"})
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	friendshipID, ok := pathID(w, r, "id", "friendship")
	if !ok {
		return
	}

	friendship, err := h.friendService.AcceptRequest(r.Context(), user.ID, friendshipID)
	if err != nil {
		writeServiceError(w, "accepting friend request", err)
		return
	}

	writeJSON(w, http.StatusOK, FriendshipResponse{Friendship: friendship, Message: "Friend request accepted"})
}

func (h *FriendHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	friendshipID, ok := pathID(w, r, "id", "friendship")
	if !ok {
		return
	}

	if err := h.friendService.DeclineRequest(r.Context(), user.ID, friendshipID); err != nil {
		writeServiceError(w, "declining friend request", err)
		return
	}

	writeJSON(w, http.StatusOK, FriendshipResponse{Message: "Friend request declined"})
}

func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	friendshipID, ok := pathID(w, r, "id", "friendship")
	if !ok {
		return
	}

	if err := h.friendService.CancelRequest(r.Context(), user.ID, friendshipID); err != nil {
		writeServiceError(w, "canceling friend request", err)
		return
	}

	writeJSON(w, http.StatusOK, FriendshipResponse{Message: "Friend request canceled"})
}

func (h *FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	friendshipID, ok := pathID(w, r, "id", "friendship")
	if !ok {
		return
	}

	if err := h.friendService.RemoveFriend(r.Context(), user.ID, friendshipID); err != nil {
		writeServiceError(w, "removing friend", err)
		return
	}

	writeJSON(w, http.StatusOK, FriendshipResponse{Message: "Friend removed"})
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "listing friends", err)
		return
	}

	requests, err := h.friendService.ListPendingRequests(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "listing pending requests", err)
		return
	}

	sent, err := h.friendService.ListSentRequests(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "listing sent requests", err)
		return
	}

	if friends == nil {
		friends = []models.FriendWithUser{}
	}
	if requests == nil {
		requests = []models.FriendRequest{}
	}
	if sent == nil {
		sent = []models.FriendWithUser{}
	}

	writeJSON(w, http.StatusOK, FriendListResponse{
		Friends:  friends,
		Requests: requests,
		Sent:     sent,
	})
}

// Garden shows a friend's garden as of the friend's own calendar day.
func (h *FriendHandler) Garden(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	friendshipID, ok := pathID(w, r, "id", "friendship")
	if !ok {
		return
	}

	friendID, err := h.friendService.GetFriendUserID(r.Context(), user.ID, friendshipID)
	if err != nil {
		writeServiceError(w, "resolving friend", err)
		return
	}

	friend, err := h.userService.GetByID(r.Context(), friendID)
	if err != nil {
		writeServiceError(w, "getting friend", err)
		return
	}

	loc := time.UTC
	if l, err := time.LoadLocation(friend.Timezone); err == nil {
		loc = l
	}

	garden, err := h.ritualService.Garden(r.Context(), friendID, rituals.Today(h.now(), loc))
	if err != nil {
		writeServiceError(w, "loading friend garden", err)
		return
	}

	writeJSON(w, http.StatusOK, FriendGardenResponse{
		Owner: models.FriendProfile{
			ID:          friend.ID,
			DisplayName: friend.DisplayName,
			AvatarURL:   friend.AvatarURL,
		},
		Garden: garden,
	})
}
