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
	"github.com/akuzmenko/blogpix/internal/post/biz"
)

type PostService struct {
	uc     *biz.PostUseCase
	logger *zap.Logger
}

func NewPostService(uc *biz.PostUseCase, logger *zap.Logger) *PostService {
	return &PostService{uc: uc, logger: logger}
}

type CreatePostRequest struct {
	Name   string `json:"name" binding:"required,max=150"`
	Text   string `json:"text" binding:"required"`
	UserID int64  `json:"user_id" binding:"required"`
}

type UpdatePostRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=150"`
	Text        *string `json:"text"`
	IsPublished *bool   `json:"is_published"`
}

type PostResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Text        string          `json:"text"`
	IsPublished bool            `json:"is_published"`
	UserID      int64           `json:"user_id"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	Images      []ImageResponse `json:"images"`
}

type ImageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *PostService) toResponse(post *biz.Post) *PostResponse {
	images := make([]ImageResponse, len(post.Images))
	for i, asset := range post.Images {
		images[i] = ImageResponse{ID: asset.ID, URL: s.uc.ImageURL(asset)}
	}

	return &PostResponse{
		ID:          post.ID,
		Name:        post.Name,
		Text:        post.Text,
		IsPublished: post.IsPublished,
		UserID:      post.UserID,
		CreatedAt:   post.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   post.UpdatedAt.Format(time.RFC3339),
		Images:      images,
	}
}

func (s *PostService) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	post, err := s.uc.CreatePost(c.Request.Context(), req.Name, req.Text, req.UserID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Created(c, s.toResponse(post))
}

func (s *PostService) GetPost(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	post, err := s.uc.GetPost(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, s.toResponse(post))
}

type listPostsQuery struct {
	Page        int    `form:"page,default=1" binding:"min=1"`
	PageSize    int    `form:"page_size,default=20" binding:"min=1,max=100"`
	Search      string `form:"search"`
	IsPublished *bool  `form:"is_published"`
	UserID      int64  `form:"user_id"`
	DateFrom    string `form:"date_from"` // YYYY-MM-DD
	DateTo      string `form:"date_to"`   // YYYY-MM-DD
	SortBy      string `form:"sort_by,default=created_at"`
	SortOrder   string `form:"sort_order,default=desc" binding:"omitempty,oneof=asc desc"`
}

func (s *PostService) ListPosts(c *gin.Context) {
	var q listPostsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	filter := &biz.PostFilter{
		Search:      q.Search,
		IsPublished: q.IsPublished,
		UserID:      q.UserID,
	}
	if t, err := time.Parse("2006-01-02", q.DateFrom); err == nil && q.DateFrom != "" {
		filter.DateFrom = &t
	}
	if t, err := time.Parse("2006-01-02", q.DateTo); err == nil && q.DateTo != "" {
		filter.DateTo = &t
	}

	sort := &biz.PostSort{SortBy: q.SortBy, SortOrder: q.SortOrder}

	posts, total, err := s.uc.ListPosts(c.Request.Context(), filter, sort, q.Page, q.PageSize)
	if err != nil {
		s.handleError(c, err)
		return
	}

	items := make([]*PostResponse, len(posts))
	for i, post := range posts {
		items[i] = s.toResponse(post)
	}

	response.Success(c, gin.H{
		"posts":     items,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

func (s *PostService) UpdatePost(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	post, err := s.uc.UpdatePost(c.Request.Context(), id, &biz.PostUpdate{
		Name:        req.Name,
		Text:        req.Text,
		IsPublished: req.IsPublished,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, s.toResponse(post))
}

func (s *PostService) DeletePost(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if err := s.uc.DeletePost(c.Request.Context(), id); err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": id})
}

type bulkCreateRequest struct {
	Posts []CreatePostRequest `json:"posts" binding:"required,min=1,max=100,dive"`
}

func (s *PostService) BulkCreatePosts(c *gin.Context) {
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	inputs := make([]*biz.Post, len(req.Posts))
	for i, p := range req.Posts {
		inputs[i] = &biz.Post{Name: p.Name, Text: p.Text, UserID: p.UserID}
	}

	posts, err := s.uc.BulkCreate(c.Request.Context(), inputs)
	if err != nil {
		s.handleError(c, err)
		return
	}

	items := make([]*PostResponse, len(posts))
	for i, post := range posts {
		items[i] = s.toResponse(post)
	}
	response.Created(c, gin.H{"posts": items})
}

type bulkUpdateRequest struct {
	IDs    []int64           `json:"ids" binding:"required,min=1"`
	Update UpdatePostRequest `json:"update"`
}

func (s *PostService) BulkUpdatePosts(c *gin.Context) {
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	matched, updated, err := s.uc.BulkUpdate(c.Request.Context(), req.IDs, &biz.PostUpdate{
		Name:        req.Update.Name,
		Text:        req.Update.Text,
		IsPublished: req.Update.IsPublished,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, gin.H{"matched": matched, "updated": updated})
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

func (s *PostService) BulkDeletePosts(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	deleted, err := s.uc.BulkDelete(c.Request.Context(), req.IDs)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": deleted})
}

func (s *PostService) PostStats(c *gin.Context) {
	userID, _ := strconv.ParseInt(c.Query("user_id"), 10, 64)

	stats, err := s.uc.Stats(c.Request.Context(), userID)
	if err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, stats)
}

// UploadImage accepts a multipart image and attaches it to the post;
// configured thumbnail sizes are materialized eagerly
func (s *PostService) UploadImage(c *gin.Context) {
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

	asset, err := s.uc.UploadImage(c.Request.Context(), id, header.Filename, file)
	if err != nil {
		s.logger.Error("post image upload failed",
			zap.Int64("post_id", id),
			zap.String("filename", header.Filename),
			zap.Error(err),
		)
		s.handleError(c, err)
		return
	}

	response.Created(c, ImageResponse{ID: asset.ID, URL: s.uc.ImageURL(asset)})
}

func (s *PostService) ListImages(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	assets, err := s.uc.ListImages(c.Request.Context(), id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	items := make([]ImageResponse, len(assets))
	for i, asset := range assets {
		items[i] = ImageResponse{ID: asset.ID, URL: s.uc.ImageURL(asset)}
	}
	response.Success(c, gin.H{"images": items})
}

func (s *PostService) DeleteImage(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	assetID := c.Param("imageID")

	if err := s.uc.DeleteImage(c.Request.Context(), id, assetID); err != nil {
		s.handleError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": assetID})
}

func (s *PostService) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrPostNotFound):
		response.ErrorWithCode(c, apperrors.ErrPostNotFound)
	case errors.Is(err, biz.ErrPostNameTaken):
		response.ErrorWithCode(c, apperrors.ErrPostNameTaken)
	case errors.Is(err, biz.ErrPostNameTooLong):
		response.ErrorWithCode(c, apperrors.ErrPostInvalidInput, "name exceeds 150 characters")
	case errors.Is(err, biz.ErrPostImageNotFound), errors.Is(err, mediabiz.ErrAssetNotFound):
		response.ErrorWithCode(c, apperrors.ErrPostImageNotFound)
	case isMediaError(err):
		mediaservice.HandleMediaError(c, err)
	default:
		s.logger.Error("post operation failed", zap.Error(err))
		response.ErrorWithCode(c, apperrors.ErrInternalServer)
	}
}

func isMediaError(err error) bool {
	return errors.Is(err, mediabiz.ErrUnsupportedFormat) ||
		errors.Is(err, mediabiz.ErrPayloadTooLarge) ||
		errors.Is(err, mediabiz.ErrStorageFailure) ||
		errors.Is(err, mediabiz.ErrDerivationFailed) ||
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

func (s *PostService) RegisterRoutes(r *gin.RouterGroup) {
	posts := r.Group("/posts")
	{
		posts.POST("", s.CreatePost)
		posts.GET("", s.ListPosts)
		posts.GET("/stats", s.PostStats)
		posts.POST("/bulk", s.BulkCreatePosts)
		posts.PUT("/bulk", s.BulkUpdatePosts)
		posts.DELETE("/bulk", s.BulkDeletePosts)
		posts.GET("/:id", s.GetPost)
		posts.PUT("/:id", s.UpdatePost)
		posts.DELETE("/:id", s.DeletePost)
		posts.POST("/:id/images", s.UploadImage)
		posts.GET("/:id/images", s.ListImages)
		posts.DELETE("/:id/images/:imageID", s.DeleteImage)
	}
}
