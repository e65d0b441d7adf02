package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"inkwell/internal/model"
	"inkwell/internal/query"
)

// PostResource whitelists the post columns exposed to list queries.
var PostResource = &query.Resource{
	Table: "posts",
	Columns: map[string]string{
		"id":            "id",
		"title":         "title",
		"slug":          "slug",
		"category":      "category",
		"content":       "content",
		"image":         "image",
		"author":        "author_id",
		"authorId":      "author_id",
		"isDraft":       "is_draft",
		"publishedAt":   "published_at",
		"views":         "views",
		"likeCount":     "like_count",
		"bookmarkCount": "bookmark_count",
		"createdAt":     "created_at",
		"updatedAt":     "updated_at",
	},
	Order: []string{"id", "title", "slug", "category", "content", "image", "authorId", "isDraft",
		"publishedAt", "views", "likeCount", "bookmarkCount", "createdAt", "updatedAt"},
	SearchFields: []string{"title", "content"},
	DefaultLimit: query.PostLimit,
}

const postColumns = `id, title, slug, category, content, image, image_key, author_id, is_draft, published_at,
	views, like_count, bookmark_count, deleted, version, created_at, updated_at`

var postTable = Table[model.Post]{
	Resource: PostResource,
	Insertable: func(p *model.Post) map[string]interface{} {
		return map[string]interface{}{
			"title":        p.Title,
			"slug":         p.Slug,
			"category":     p.Category,
			"content":      p.Content,
			"image":        p.Image,
			"image_key":    p.ImageKey,
			"author_id":    p.AuthorID,
			"is_draft":     p.IsDraft,
			"published_at": p.PublishedAt,
		}
	},
	Updatable: func(p *model.Post) map[string]interface{} {
		return map[string]interface{}{
			"title":        p.Title,
			"category":     p.Category,
			"content":      p.Content,
			"image":        p.Image,
			"image_key":    p.ImageKey,
			"slug":         p.Slug,
			"is_draft":     p.IsDraft,
			"published_at": p.PublishedAt,
		}
	},
	Private: []string{"image_key", "deleted"},
}

type postRepository struct {
	Store[model.Post]
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{Store: NewStore(db, postTable), db: db}
}

// GetByIDOrSlug resolves a numeric id or a slug to a non-deleted post.
func (r *postRepository) GetByIDOrSlug(ctx context.Context, idOrSlug string) (*model.Post, error) {
	var (
		post model.Post
		err  error
	)
	if id, convErr := strconv.ParseInt(idOrSlug, 10, 64); convErr == nil {
		err = r.db.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE id = $1 AND deleted = FALSE`, id)
	} else {
		err = r.db.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE slug = $1 AND deleted = FALSE`, idOrSlug)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

// GetByID returns a non-deleted post.
func (r *postRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	var post model.Post
	err := r.db.GetContext(ctx, &post, `SELECT `+postColumns+` FROM posts WHERE id = $1 AND deleted = FALSE`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &post, nil
}

// IncrementViews bumps the view counter in place and returns the new value.
func (r *postRepository) IncrementViews(ctx context.Context, postID int64) (int64, error) {
	var views int64
	err := r.db.GetContext(ctx, &views, `
		UPDATE posts SET views = views + 1 WHERE id = $1 AND deleted = FALSE RETURNING views
	`, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrPostNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment views: %w", err)
	}
	return views, nil
}

// toggle adds or removes (post, user) in a membership table and keeps the
// matching counter on posts in step. changed is false when the row was
// already in the requested state.
func (r *postRepository) toggle(ctx context.Context, table, counter string, postID, userID int64, add bool) (changed bool, total int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stmt string
	delta := 1
	if add {
		stmt = `INSERT INTO ` + table + ` (post_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	} else {
		stmt = `DELETE FROM ` + table + ` WHERE post_id = $1 AND user_id = $2`
		delta = -1
	}

	result, err := tx.ExecContext(ctx, stmt, postID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("update %s: %w", table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("get rows affected: %w", err)
	}

	if rows == 1 {
		err = tx.GetContext(ctx, &total, `
			UPDATE posts SET `+counter+` = GREATEST(`+counter+` + $1, 0) WHERE id = $2 RETURNING `+counter,
			delta, postID)
	} else {
		err = tx.GetContext(ctx, &total, `SELECT `+counter+` FROM posts WHERE id = $1`, postID)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, model.ErrPostNotFound
	}
	if err != nil {
		return false, 0, fmt.Errorf("update %s: %w", counter, err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("commit transaction: %w", err)
	}
	return rows == 1, total, nil
}

func (r *postRepository) Like(ctx context.Context, postID, userID int64) (bool, int, error) {
	return r.toggle(ctx, "post_likes", "like_count", postID, userID, true)
}

func (r *postRepository) Unlike(ctx context.Context, postID, userID int64) (bool, int, error) {
	return r.toggle(ctx, "post_likes", "like_count", postID, userID, false)
}

func (r *postRepository) Bookmark(ctx context.Context, postID, userID int64) (bool, int, error) {
	return r.toggle(ctx, "post_bookmarks", "bookmark_count", postID, userID, true)
}

func (r *postRepository) Unbookmark(ctx context.Context, postID, userID int64) (bool, int, error) {
	return r.toggle(ctx, "post_bookmarks", "bookmark_count", postID, userID, false)
}

// ViewerState reports whether userID has liked and bookmarked postID.
func (r *postRepository) ViewerState(ctx context.Context, postID, userID int64) (liked, bookmarked bool, err error) {
	var state struct {
		Liked      bool `db:"liked"`
		Bookmarked bool `db:"bookmarked"`
	}
	err = r.db.GetContext(ctx, &state, `
		SELECT
			EXISTS(SELECT 1 FROM post_likes WHERE post_id = $1 AND user_id = $2) AS liked,
			EXISTS(SELECT 1 FROM post_bookmarks WHERE post_id = $1 AND user_id = $2) AS bookmarked
	`, postID, userID)
	if err != nil {
		return false, false, fmt.Errorf("get viewer state: %w", err)
	}
	return state.Liked, state.Bookmarked, nil
}

// ListByAuthor returns the author's non-deleted drafts or published posts, newest first.
func (r *postRepository) ListByAuthor(ctx context.Context, authorID int64, drafts bool) ([]model.Post, error) {
	posts := []model.Post{}
	err := r.db.SelectContext(ctx, &posts, `
		SELECT `+postColumns+` FROM posts
		WHERE author_id = $1 AND is_draft = $2 AND deleted = FALSE
		ORDER BY created_at DESC, id DESC
	`, authorID, drafts)
	if err != nil {
		return nil, fmt.Errorf("list posts by author: %w", err)
	}
	return posts, nil
}

func (r *postRepository) listMembership(ctx context.Context, table string, userID int64) ([]model.Post, error) {
	posts := []model.Post{}
	err := r.db.SelectContext(ctx, &posts, `
		SELECT p.id, p.title, p.slug, p.category, p.content, p.image, p.image_key, p.author_id, p.is_draft,
		       p.published_at, p.views, p.like_count, p.bookmark_count, p.deleted, p.version, p.created_at, p.updated_at
		FROM `+table+` m
		JOIN posts p ON p.id = m.post_id
		WHERE m.user_id = $1 AND p.deleted = FALSE AND p.is_draft = FALSE
		ORDER BY m.created_at DESC, p.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return posts, nil
}

// ListLikedBy returns the published posts userID liked, most recent like first.
func (r *postRepository) ListLikedBy(ctx context.Context, userID int64) ([]model.Post, error) {
	return r.listMembership(ctx, "post_likes", userID)
}

// ListBookmarkedBy returns the published posts userID bookmarked, most recent first.
func (r *postRepository) ListBookmarkedBy(ctx context.Context, userID int64) ([]model.Post, error) {
	return r.listMembership(ctx, "post_bookmarks", userID)
}

// Publish flips a draft to published. Drafts only; the transition is one-way.
func (r *postRepository) Publish(ctx context.Context, postID int64, slug *string, publishedAt time.Time) (*model.Post, error) {
	var post model.Post
	err := r.db.GetContext(ctx, &post, `
		UPDATE posts
		SET is_draft = FALSE, published_at = $1, slug = COALESCE(slug, $2),
		    version = version + 1, updated_at = NOW()
		WHERE id = $3 AND is_draft = TRUE AND deleted = FALSE
		RETURNING `+postColumns, publishedAt, slug, postID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPostAlreadyPublic
	}
	if err != nil {
		return nil, fmt.Errorf("publish post: %w", err)
	}
	return &post, nil
}

// DeleteDraft physically removes a draft.
func (r *postRepository) DeleteDraft(ctx context.Context, postID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1 AND is_draft = TRUE`, postID)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrPostNotDraft
	}
	return nil
}
