package handler

import (
	"github.com/labstack/echo/v4"

	"chatcore/internal/domain/entity"
	"chatcore/internal/usecase"
	"chatcore/pkg/response"
)

type MediaHandler struct {
	media *usecase.MediaUseCase
}

func NewMediaHandler(media *usecase.MediaUseCase) *MediaHandler {
	return &MediaHandler{
		media: media,
	}
}

// Search serves GET /v1/media/search?kind=gifs|stickers&q=&category=
func (h *MediaHandler) Search(c echo.Context) error {
	kind := entity.MediaKind(c.QueryParam("kind"))
	if kind == "" {
		kind = entity.MediaKindGIF
	}
	userID, _ := c.Get("uid").(string)

	items, err := h.media.Search(c.Request().Context(), userID, kind, c.QueryParam("q"), c.QueryParam("category"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]interface{}{
		"kind":       kind,
		"items":      items,
		"categories": entity.MediaCategories,
	})
}
