package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"chatcore/internal/domain/entity"
	"chatcore/internal/domain/service"
	"chatcore/internal/infrastructure/ratelimit"
	"chatcore/pkg/errors"
)

const (
	// MediaResultLimit is the page size requested from the media provider.
	MediaResultLimit = 20

	DefaultMaxImageBytes = 5 * 1024 * 1024

	chatImageFolder = "chat-images"
)

type MediaUseCase struct {
	uploader      service.FileUploadService
	provider      service.MediaProvider
	cache         service.MediaCache
	rateLimiter   RateLimiter
	maxImageBytes int64
	cacheTTL      time.Duration
}

type MediaOptions struct {
	MaxImageBytes int64
	CacheTTL      time.Duration
}

// NewMediaUseCase builds the attachment pipeline. cache and rateLimiter may be nil.
func NewMediaUseCase(
	uploader service.FileUploadService,
	provider service.MediaProvider,
	cache service.MediaCache,
	rateLimiter RateLimiter,
	opts MediaOptions,
) *MediaUseCase {
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = DefaultMaxImageBytes
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if rateLimiter == nil {
		rateLimiter = noLimit{}
	}
	return &MediaUseCase{
		uploader:      uploader,
		provider:      provider,
		cache:         cache,
		rateLimiter:   rateLimiter,
		maxImageBytes: opts.MaxImageBytes,
		cacheTTL:      opts.CacheTTL,
	}
}

// ValidateImage checks an attachment without touching the network.
func (uc *MediaUseCase) ValidateImage(attachment *entity.Attachment) (string, error) {
	if attachment == nil || len(attachment.Data) == 0 {
		return "", errors.InvalidAttachment("Attachment is empty")
	}
	if !strings.HasPrefix(attachment.ContentType, "image/") {
		return "", errors.InvalidAttachment("Only image files can be shared")
	}
	if int64(len(attachment.Data)) > uc.maxImageBytes {
		return "", errors.InvalidAttachment(fmt.Sprintf("Image must be at most %d MB", uc.maxImageBytes/(1024*1024)))
	}

	detected := mimetype.Detect(attachment.Data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", errors.InvalidAttachment("File content is not an image")
	}
	return detected.String(), nil
}

// UploadImage validates the attachment and hands it to the upload service,
// returning the stored reference URL.
func (uc *MediaUseCase) UploadImage(ctx context.Context, attachment *entity.Attachment) (string, error) {
	contentType, err := uc.ValidateImage(attachment)
	if err != nil {
		return "", err
	}

	url, err := uc.uploader.UploadFile(ctx, bytes.NewReader(attachment.Data), contentType, chatImageFolder, true)
	if err != nil {
		log.Printf("UploadImage Error: %v", err)
		return "", errors.UploadFailed(err)
	}
	return url, nil
}

// DiscardImage removes an uploaded image that never made it into a message.
// Failures are logged only.
func (uc *MediaUseCase) DiscardImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := uc.uploader.DeleteFile(ctx, url); err != nil {
		log.Printf("DiscardImage Warning: failed to delete %s: %v", url, err)
	}
}

// Search returns trending media when neither query nor category is given,
// otherwise searches by the query, falling back to the category name.
func (uc *MediaUseCase) Search(ctx context.Context, userID string, kind entity.MediaKind, query, category string) ([]entity.Media, error) {
	if !kind.Valid() {
		return nil, errors.BadRequest(fmt.Sprintf("Unsupported media kind %q", kind), nil)
	}
	if category != "" && !entity.IsMediaCategory(category) {
		return nil, errors.BadRequest(fmt.Sprintf("Unknown media category %q", category), nil)
	}

	term := strings.TrimSpace(query)
	if term == "" {
		term = category
	}

	key := mediaCacheKey(kind, term)
	if uc.cache != nil {
		items, ok, err := uc.cache.Get(ctx, key)
		if err != nil {
			log.Printf("SearchMedia Warning: cache read failed for %s: %v", key, err)
		} else if ok {
			return items, nil
		}
	}

	if allowed, wait := uc.rateLimiter.Allow(userID, ratelimit.ActionMediaSearch); !allowed {
		return nil, errors.TooManyRequests("Too many searches, slow down", fmt.Errorf("retry after %v", wait))
	}

	var items []entity.Media
	var err error
	if term == "" {
		items, err = uc.provider.Trending(ctx, kind, MediaResultLimit)
	} else {
		items, err = uc.provider.Search(ctx, kind, term, MediaResultLimit)
	}
	if err != nil {
		log.Printf("SearchMedia Error: kind=%s term=%q: %v", kind, term, err)
		return nil, errors.MediaUnavailable(err)
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, key, items, uc.cacheTTL); err != nil {
			log.Printf("SearchMedia Warning: cache write failed for %s: %v", key, err)
		}
	}
	return items, nil
}

func mediaCacheKey(kind entity.MediaKind, term string) string {
	if term == "" {
		return fmt.Sprintf("%s:trending:%d", kind, MediaResultLimit)
	}
	return fmt.Sprintf("%s:search:%s:%d", kind, strings.ToLower(term), MediaResultLimit)
}
