package service

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mediabiz "github.com/akuzmenko/blogpix/internal/media/biz"
	mediaservice "github.com/akuzmenko/blogpix/internal/media/service"
	apperrors "github.com/akuzmenko/blogpix/internal/pkg/errors"
	"github.com/akuzmenko/blogpix/internal/pkg/response"
	"github.com/akuzmenko/blogpix/internal/user/biz"
)

type UserService struct {
	uc     *biz.UserUseCase
	logger *zap.Logger
}

func NewUserService(uc *biz.UserUseCase, logger *zap.Logger) *UserService {
	return &UserService{uc: uc, logger: logger}
}

type CreateUserRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=150"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"max=150"`
	LastName  string `json:"last_name" binding:"max=150"`
}

type UpdateUserRequest struct {
	Email     *string `json:"email" binding:"omitempty,email"`
	FirstName *string `json:"first_name" binding:"omitempty,max=150"`
	LastName  *string `json:"last_name" binding:"omitempty,max=150"`
	IsActive  *bool   `json:"is_active"`
}

type UserResponse struct {
	ID         int64            `json:"id"`
	Username   string           `json:"username"`
	Email      string           `json:"email"`
	FirstName  string           `json:"first_name"`
	LastName   string           `json:"last_name"`
	IsActive   bool             `json:"is_active"`
	DateJoined string           `json:"date_joined"`
	Profile    *ProfileResponse `json:"profile,omitempty"`
}

type ProfileResponse struct {
	Birthday  string `json:"birthday,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

func (s *UserService) toResponse(c *gin.Context, user *biz.User) *UserResponse {
	resp := &UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		IsActive:   user.IsActive,
		DateJoined: user.DateJoined.Format(time.RFC3339),
	}
	if user.Profile != nil {
		profile := &ProfileResponse{
			AvatarURL: s.uc.AvatarURL(c.Request.Context(), user.Profile),
		}
		if user.Profile.Birthday != nil {
			profile.Birthday = user.Profile.Birthday.Format("2006-01-02")
		}
		resp.Profile = profile
	}
	return resp
}

func (s *UserService) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := s.uc.CreateUser(c.Request.Context(), req.Username, req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Created(c, s.toResponse(c, user))
}

func (s *UserService) GetUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	user, err := s.uc.GetUser(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, s.toResponse(c, user))
}

type listUsersQuery struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

func (s *UserService) ListUsers(c *gin.Context) {
	var q listUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	users, total, err := s.uc.ListUsers(c.Request.Context(), q.Page, q.PageSize)
	if err != nil {
		s.handleError(c, err)
		return
	}

	items := make([]*UserResponse, len(users))
	for i, user := range users {
		items[i] = s.toResponse(c, user)
	}

	response.Success(c, gin.H{
		"users":     items,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

func (s *UserService) UpdateUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := s.uc.UpdateUser(c.Request.Context(), id, &biz.UserUpdate{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsActive:  req.IsActive,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, s.toResponse(c, user))
}

func (s *UserService) DeleteUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if err := s.uc.DeleteUser(c.Request.Context(), id); err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": id})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login checks credentials. Repeated failures open a 24-hour block on
// the profile; the response does not reveal which part was wrong.
func (s *UserService) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	user, err := s.uc.VerifyPassword(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, biz.ErrUserBlocked):
			response.ErrorWithCode(c, apperrors.ErrUserBlocked)
		case errors.Is(err, biz.ErrWrongPassword), errors.Is(err, biz.ErrUserNotFound):
			response.ErrorWithCode(c, apperrors.ErrUserBadCredentials)
		default:
			s.handleError(c, err)
		}
		return
	}

	response.Success(c, s.toResponse(c, user))
}

type updateProfileRequest struct {
	Birthday *string `json:"birthday"` // YYYY-MM-DD, null clears
}

func (s *UserService) UpdateProfile(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var birthday *time.Time
	if req.Birthday != nil {
		t, err := time.Parse("2006-01-02", *req.Birthday)
		if err != nil {
			response.BadRequest(c, "birthday must be YYYY-MM-DD")
			return
		}
		birthday = &t
	}

	profile, err := s.uc.UpdateProfile(c.Request.Context(), id, birthday)
	if err != nil {
		s.handleError(c, err)
		return
	}

	resp := &ProfileResponse{AvatarURL: s.uc.AvatarURL(c.Request.Context(), profile)}
	if profile.Birthday != nil {
		resp.Birthday = profile.Birthday.Format("2006-01-02")
	}
	response.Success(c, resp)
}

// UploadAvatar replaces the current avatar; thumbnail sizes are built
// lazily on first resolve
func (s *UserService) UploadAvatar(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.BadRequest(c, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	asset, err := s.uc.UploadAvatar(c.Request.Context(), id, header.Filename, file)
	if err != nil {
		s.logger.Error("avatar upload failed",
			zap.Int64("user_id", id),
			zap.String("filename", header.Filename),
			zap.Error(err),
		)
		s.handleError(c, err)
		return
	}

	response.Created(c, gin.H{"id": asset.ID, "url": s.uc.AssetURL(asset)})
}

type avatarQuery struct {
	Width  int `form:"width,default=300" binding:"min=1,max=4096"`
	Height int `form:"height,default=300" binding:"min=1,max=4096"`
}

// GetAvatar resolves an avatar derivative at the requested size and
// returns its public URL
func (s *UserService) GetAvatar(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var q avatarQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	url, err := s.uc.ResolveAvatar(c.Request.Context(), id, q.Width, q.Height)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, gin.H{"url": url, "width": q.Width, "height": q.Height})
}

func (s *UserService) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrUserNotFound):
		response.ErrorWithCode(c, apperrors.ErrUserNotFound)
	case errors.Is(err, biz.ErrUsernameTaken):
		response.ErrorWithCode(c, apperrors.ErrUserExists)
	case errors.Is(err, biz.ErrEmailTaken):
		response.ErrorWithCode(c, apperrors.ErrUserEmailExists)
	case errors.Is(err, biz.ErrUserBlocked):
		response.ErrorWithCode(c, apperrors.ErrUserBlocked)
	case errors.Is(err, biz.ErrProfileNotFound):
		response.ErrorWithCode(c, apperrors.ErrProfileNotFound)
	case errors.Is(err, mediabiz.ErrAssetNotFound):
		response.ErrorWithCode(c, apperrors.ErrMediaAssetNotFound)
	case isMediaError(err):
		mediaservice.HandleMediaError(c, err)
	default:
		s.logger.Error("user operation failed", zap.Error(err))
		response.ErrorWithCode(c, apperrors.ErrInternalServer)
	}
}

func isMediaError(err error) bool {
	return errors.Is(err, mediabiz.ErrUnsupportedFormat) ||
		errors.Is(err, mediabiz.ErrPayloadTooLarge) ||
		errors.Is(err, mediabiz.ErrStorageFailure) ||
		errors.Is(err, mediabiz.ErrDerivationFailed) ||
		errors.Is(err, mediabiz.ErrInvalidDimensions) ||
		errors.Is(err, mediabiz.ErrBlobNotFound)
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *UserService) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.POST("", s.CreateUser)
		users.POST("/login", s.Login)
		users.GET("", s.ListUsers)
		users.GET("/:id", s.GetUser)
		users.PUT("/:id", s.UpdateUser)
		users.DELETE("/:id", s.DeleteUser)
		users.PUT("/:id/profile", s.UpdateProfile)
		users.PUT("/:id/avatar", s.UploadAvatar)
		users.GET("/:id/avatar", s.GetAvatar)
	}
}
