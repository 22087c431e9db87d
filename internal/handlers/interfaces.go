package handlers

import (
	"context"

	"github.com/fiam/dboembed/internal/models"
	"github.com/fiam/dboembed/internal/oembed"
)

// EmbedResolver turns media URLs into stored embed resources.
type EmbedResolver interface {
	Lookup(ctx context.Context, url string, size oembed.Size) (*models.EmbedResource, error)
}

// EmbedStore reads back previously resolved resources.
type EmbedStore interface {
	FindByID(ctx context.Context, id string) (models.EmbedResource, error)
	ListRecent(ctx context.Context, limit int) ([]models.EmbedResource, error)
}
