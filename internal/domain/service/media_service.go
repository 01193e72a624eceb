package service

import (
	"context"
	"time"

	"chatcore/internal/domain/entity"
)

// MediaProvider is the external GIF/sticker search API.
type MediaProvider interface {
	Trending(ctx context.Context, kind entity.MediaKind, limit int) ([]entity.Media, error)
	Search(ctx context.Context, kind entity.MediaKind, query string, limit int) ([]entity.Media, error)
}

// MediaCache stores provider results. A miss is reported as (nil, false, nil).
type MediaCache interface {
	Get(ctx context.Context, key string) ([]entity.Media, bool, error)
	Set(ctx context.Context, key string, items []entity.Media, ttl time.Duration) error
}
