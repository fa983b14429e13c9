package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/roots/internal/models"
	"github.com/HammerMeetNail/roots/internal/services"
)

// multipart framing allowance on top of the image itself
const avatarFormOverhead = 64 << 10

type ProfileHandler struct {
	userService   services.UserServiceInterface
	avatarService services.AvatarServiceInterface
}

func NewProfileHandler(userService services.UserServiceInterface, avatarService services.AvatarServiceInterface) *ProfileHandler {
	return &ProfileHandler{userService: userService, avatarService: avatarService}
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Timezone    *string `json:"timezone"`
}

type AvatarResponse struct {
	AvatarURL string `json:"avatar_url"`
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), user.ID, models.UpdateProfileParams{
		DisplayName: req.DisplayName,
		Timezone:    req.Timezone,
	})
	if err != nil {
		writeServiceError(w, "updating profile", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: updated, Message: "Profile updated"})
}

func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAvatarSize+avatarFormOverhead)
	file, header, err := r.FormFile("avatar")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "avatar must be 2 MiB or smaller")
			return
		}
		writeError(w, http.StatusBadRequest, "avatar file is required")
		return
	}
	defer file.Close()

	url, err := h.avatarService.Upload(r.Context(), user.ID, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		writeServiceError(w, "uploading avatar", err)
		return
	}

	writeJSON(w, http.StatusOK, AvatarResponse{AvatarURL: url})
}
