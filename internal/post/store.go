package post

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds vector search queries so a slow ANN scan cannot
// block a chat request indefinitely.
const searchTimeout = 10 * time.Second

// Store manages archived posts in PostgreSQL with pgvector search.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a Store on the given pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

const postColumns = `id, url, content,
	COALESCE(author_handle, ''), COALESCE(author_name, ''),
	posted_at, archived_at, COALESCE(archived_via, ''),
	tags, topics, COALESCE(notes, ''),
	COALESCE(quoted_text, ''), COALESCE(quoted_author, ''), COALESCE(quoted_url, '')`

// Upsert inserts or updates a post. The embedding may be nil for posts
// that have not been embedded yet.
func (s *Store) Upsert(ctx context.Context, p Post) error {
	var embedding *pgvector.Vector
	if p.Embedding != nil {
		v := pgvector.NewVector(p.Embedding)
		embedding = &v
	}

	postedAt := pgtype.Timestamptz{}
	if p.PostedAt != nil {
		postedAt = pgtype.Timestamptz{Time: *p.PostedAt, Valid: true}
	}

	archivedAt := p.ArchivedAt
	if archivedAt.IsZero() {
		archivedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO posts (
			id, url, content, author_handle, author_name,
			posted_at, archived_at, archived_via, tags, topics, notes,
			quoted_text, quoted_author, quoted_url, embedding
		) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''),
			$6, $7, $8, $9, $10, NULLIF($11, ''),
			NULLIF($12, ''), NULLIF($13, ''), NULLIF($14, ''), $15)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			content = EXCLUDED.content,
			author_handle = EXCLUDED.author_handle,
			author_name = EXCLUDED.author_name,
			posted_at = EXCLUDED.posted_at,
			tags = EXCLUDED.tags,
			topics = EXCLUDED.topics,
			notes = EXCLUDED.notes,
			quoted_text = EXCLUDED.quoted_text,
			quoted_author = EXCLUDED.quoted_author,
			quoted_url = EXCLUDED.quoted_url,
			embedding = COALESCE(EXCLUDED.embedding, posts.embedding)`,
		p.ID, p.URL, p.Content, p.AuthorHandle, p.AuthorName,
		postedAt, archivedAt, p.ArchivedVia, emptyToSlice(p.Tags), emptyToSlice(p.Topics), p.Notes,
		p.QuotedText, p.QuotedAuthor, p.QuotedURL, embedding,
	)
	if err != nil {
		return fmt.Errorf("upserting post %q: %w", p.ID, err)
	}

	s.logger.Debug("upserted post", "id", p.ID, "embedded", p.Embedding != nil)
	return nil
}

// ByIDs fetches posts by identifier, preserving the caller's order.
// Unknown identifiers are silently dropped, not an error: callers pass
// user-supplied selections that may reference deleted posts.
func (s *Store) ByIDs(ctx context.Context, ids []string) ([]Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying posts by id: %w", err)
	}

	fetched, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Post, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	// Reorder to match the request; the database returns rows in
	// arbitrary order for ANY().
	ordered := make([]Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// SearchSimilar returns posts whose embedding cosine similarity to the
// query vector is at least threshold, best match first, capped at limit.
// Similarity is 1 minus the pgvector cosine distance.
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]Match, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vec := pgvector.NewVector(embedding)
	rows, err := s.pool.Query(queryCtx, `
		SELECT `+postColumns+`, 1 - (embedding <=> $1) AS similarity
		FROM posts
		WHERE embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := scanPostFields(rows, &m.Post, &m.Similarity); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading matches: %w", err)
	}

	s.logger.Debug("vector search", "matches", len(matches), "threshold", threshold)
	return matches, nil
}

// Recent returns the most recently archived posts.
func (s *Store) Recent(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY archived_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent posts: %w", err)
	}
	return scanPosts(rows)
}

// All returns every archived post, newest first. Embeddings are not
// loaded; export regenerates them on re-import.
func (s *Store) All(ctx context.Context) ([]Post, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY archived_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying all posts: %w", err)
	}
	return scanPosts(rows)
}

// Count returns the total number of archived posts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting posts: %w", err)
	}
	return count, nil
}

// Delete removes a post from the archive.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting post %q: %w", id, err)
	}
	return nil
}

// scanPosts drains rows into posts, closing rows when done.
func scanPosts(rows pgx.Rows) ([]Post, error) {
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := scanPostFields(rows, &p); err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading posts: %w", err)
	}
	return posts, nil
}

// scanPostFields scans one row's post columns plus any extra columns
// (similarity for search results).
func scanPostFields(rows pgx.Rows, p *Post, extra ...any) error {
	var postedAt pgtype.Timestamptz
	dest := []any{
		&p.ID, &p.URL, &p.Content,
		&p.AuthorHandle, &p.AuthorName,
		&postedAt, &p.ArchivedAt, &p.ArchivedVia,
		&p.Tags, &p.Topics, &p.Notes,
		&p.QuotedText, &p.QuotedAuthor, &p.QuotedURL,
	}
	dest = append(dest, extra...)

	if err := rows.Scan(dest...); err != nil {
		return err
	}
	if postedAt.Valid {
		t := postedAt.Time
		p.PostedAt = &t
	}
	return nil
}

// emptyToSlice maps nil to an empty slice so text[] columns never store NULL.
func emptyToSlice(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
