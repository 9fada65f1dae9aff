package service

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akuzmenko/blogpix/internal/media/biz"
	apperrors "github.com/akuzmenko/blogpix/internal/pkg/errors"
	"github.com/akuzmenko/blogpix/internal/pkg/response"
)

type MediaService struct {
	uc     *biz.AssetUseCase
	logger *zap.Logger
}

func NewMediaService(uc *biz.AssetUseCase, logger *zap.Logger) *MediaService {
	return &MediaService{uc: uc, logger: logger}
}

type thumbnailQuery struct {
	Width  int `form:"width" binding:"required,min=1,max=4096"`
	Height int `form:"height" binding:"required,min=1,max=4096"`
}

// ResolveThumbnail returns the URL of the derivative for an asset,
// materializing it on first demand. A derivation failure is an explicit
// unavailable signal; the caller may fall back to the original URL.
func (s *MediaService) ResolveThumbnail(c *gin.Context) {
	assetID := c.Param("id")

	var q thumbnailQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "width and height are required, 1..4096")
		return
	}

	url, err := s.uc.ResolveDerivative(c.Request.Context(), assetID, q.Width, q.Height)
	if err != nil {
		s.logger.Warn("thumbnail resolution failed",
			zap.String("asset_id", assetID),
			zap.Int("width", q.Width),
			zap.Int("height", q.Height),
			zap.Error(err),
		)
		HandleMediaError(c, err)
		return
	}

	response.Success(c, gin.H{
		"url":    url,
		"width":  q.Width,
		"height": q.Height,
	})
}

// DeleteAsset removes an asset and best-effort deletes its blob and
// known derivatives
func (s *MediaService) DeleteAsset(c *gin.Context) {
	assetID := c.Param("id")

	if err := s.uc.Delete(c.Request.Context(), assetID); err != nil {
		s.logger.Error("failed to delete asset", zap.String("asset_id", assetID), zap.Error(err))
		HandleMediaError(c, err)
		return
	}

	response.Success(c, gin.H{"deleted": assetID})
}

func (s *MediaService) RegisterRoutes(r *gin.RouterGroup) {
	assets := r.Group("/assets")
	{
		assets.GET("/:id/thumbnail", s.ResolveThumbnail)
		assets.DELETE("/:id", s.DeleteAsset)
	}
}

// HandleMediaError maps media pipeline sentinel errors onto the response
// envelope. Shared with the post and user services, which front the same
// pipeline.
func HandleMediaError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrUnsupportedFormat):
		response.ErrorWithCode(c, apperrors.ErrMediaUnsupportedFormat)
	case errors.Is(err, biz.ErrPayloadTooLarge):
		response.ErrorWithCode(c, apperrors.ErrMediaPayloadTooLarge)
	case errors.Is(err, biz.ErrAssetNotFound):
		response.ErrorWithCode(c, apperrors.ErrMediaAssetNotFound)
	case errors.Is(err, biz.ErrOwnerNotFound):
		response.ErrorWithCode(c, apperrors.ErrMediaOwnerNotFound)
	case errors.Is(err, biz.ErrInvalidDimensions):
		response.ErrorWithCode(c, apperrors.ErrInvalidParams, "invalid thumbnail dimensions")
	case errors.Is(err, biz.ErrOverloaded):
		response.ErrorWithCode(c, apperrors.ErrMediaOverloaded)
	case errors.Is(err, biz.ErrDerivationFailed):
		response.ErrorWithCode(c, apperrors.ErrMediaDerivationFailed)
	case errors.Is(err, biz.ErrStorageFailure), errors.Is(err, biz.ErrBlobNotFound):
		response.ErrorWithCode(c, apperrors.ErrMediaStorageFailure)
	default:
		response.ErrorWithCode(c, apperrors.ErrInternalServer)
	}
}
