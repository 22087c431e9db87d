package repositories

import (
	"context"
	"errors"
	"fmt"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fiam/dboembed/internal/db"
	"github.com/fiam/dboembed/internal/models"
)

const defaultListLimit = 50

// PostgresEmbedRepository persists embed resources and their provider
// identities in PostgreSQL or CockroachDB.
type PostgresEmbedRepository struct {
	pool db.Pool
}

// NewPostgresEmbedRepository constructs an embed repository backed by PostgreSQL.
func NewPostgresEmbedRepository(pool db.Pool) *PostgresEmbedRepository {
	return &PostgresEmbedRepository{pool: pool}
}

// Create stores res, reusing the provider identity with the same name and
// url when one exists. The identity lookup and the resource insert commit
// together. The returned copy carries the generated ids and creation time.
func (r *PostgresEmbedRepository) Create(ctx context.Context, res models.EmbedResource) (models.EmbedResource, error) {
	if !res.Type.Valid() {
		return models.EmbedResource{}, fmt.Errorf("insert embed resource: invalid type %q", res.Type)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.EmbedResource{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	var identity *models.ProviderIdentity
	if res.Provider != nil {
		copied := *res.Provider
		identity = &copied
	}

	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var providerID *string
		if identity != nil {
			id, err := getOrCreateIdentity(ctx, tx, *identity)
			if err != nil {
				return err
			}
			identity.ID = id
			providerID = &id
		}

		return tx.QueryRow(ctx, `
            INSERT INTO oembed_resources (
                id, type, title, author_name, author_url, provider_id,
                thumbnail_url, thumbnail_width, thumbnail_height,
                url, width, height, html, cache_age
            )
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
            RETURNING created
        `, res.ID, string(res.Type), nullable(res.Title), nullable(res.AuthorName), nullable(res.AuthorURL), providerID,
			nullable(res.ThumbnailURL), res.ThumbnailWidth, res.ThumbnailHeight,
			nullable(res.URL), res.Width, res.Height, nullable(res.HTML), res.CacheAge,
		).Scan(&res.Created)
	})
	if err != nil {
		if mapped, ok := mapConstraintError(err); ok {
			return models.EmbedResource{}, mapped
		}
		return models.EmbedResource{}, fmt.Errorf("insert embed resource: %w", err)
	}

	res.Provider = identity
	return res, nil
}

func getOrCreateIdentity(ctx context.Context, tx pgx.Tx, identity models.ProviderIdentity) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
        INSERT INTO oembed_providers (id, provider_name, provider_url)
        VALUES ($1, $2, $3)
        ON CONFLICT (name_key, url_key) DO NOTHING
        RETURNING id
    `, uuid.NewString(), nullable(identity.Name), nullable(identity.URL)).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("insert provider identity: %w", err)
	}

	err = tx.QueryRow(ctx, `
        SELECT id
        FROM oembed_providers
        WHERE name_key = $1 AND url_key = $2
    `, identity.Name, identity.URL).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("select provider identity: %w", err)
	}
	return id, nil
}

const selectResource = `
    SELECT r.id, r.type, r.title, r.author_name, r.author_url,
           p.id, p.provider_name, p.provider_url,
           r.thumbnail_url, r.thumbnail_width, r.thumbnail_height,
           r.url, r.width, r.height, r.html, r.cache_age, r.created
    FROM oembed_resources r
    LEFT JOIN oembed_providers p ON p.id = r.provider_id
`

// FindByID fetches a stored resource together with its provider identity.
func (r *PostgresEmbedRepository) FindByID(ctx context.Context, id string) (models.EmbedResource, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.EmbedResource{}, ErrNotFound
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.EmbedResource{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	res, err := scanResource(conn.QueryRow(ctx, selectResource+`WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.EmbedResource{}, ErrNotFound
		}
		return models.EmbedResource{}, fmt.Errorf("select embed resource: %w", err)
	}
	return res, nil
}

// ListRecent returns up to limit resources, newest first.
func (r *PostgresEmbedRepository) ListRecent(ctx context.Context, limit int) ([]models.EmbedResource, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, selectResource+`ORDER BY r.created DESC, r.id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query embed resources: %w", err)
	}
	defer rows.Close()

	var resources []models.EmbedResource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan embed resource: %w", err)
		}
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embed resources: %w", err)
	}

	return resources, nil
}

func scanResource(row pgx.Row) (models.EmbedResource, error) {
	var (
		res                                   models.EmbedResource
		typ                                   string
		title, authorName, authorURL          *string
		providerID, providerName, providerURL *string
		thumbnailURL, url, html               *string
	)
	err := row.Scan(
		&res.ID, &typ, &title, &authorName, &authorURL,
		&providerID, &providerName, &providerURL,
		&thumbnailURL, &res.ThumbnailWidth, &res.ThumbnailHeight,
		&url, &res.Width, &res.Height, &html, &res.CacheAge, &res.Created,
	)
	if err != nil {
		return models.EmbedResource{}, err
	}

	res.Type = models.ResourceType(typ)
	res.Title = deref(title)
	res.AuthorName = deref(authorName)
	res.AuthorURL = deref(authorURL)
	res.ThumbnailURL = deref(thumbnailURL)
	res.URL = deref(url)
	res.HTML = deref(html)
	if providerID != nil {
		res.Provider = &models.ProviderIdentity{
			ID:   *providerID,
			Name: deref(providerName),
			URL:  deref(providerURL),
		}
	}
	return res, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
