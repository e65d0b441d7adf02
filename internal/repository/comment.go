package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"inkwell/internal/model"
	"inkwell/internal/query"
)

// CommentResource whitelists the comment columns exposed to list queries.
var CommentResource = &query.Resource{
	Table: "comments",
	Columns: map[string]string{
		"id":        "id",
		"content":   "content",
		"post":      "post_id",
		"postId":    "post_id",
		"author":    "author_id",
		"authorId":  "author_id",
		"parent":    "parent_id",
		"parentId":  "parent_id",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	},
	Order:        []string{"id", "content", "postId", "authorId", "parentId", "createdAt", "updatedAt"},
	SearchFields: []string{"content"},
	DefaultLimit: query.DefaultLimit,
}

const commentColumns = `id, content, post_id, author_id, parent_id, version, created_at, updated_at`

var commentTable = Table[model.Comment]{
	Resource: CommentResource,
	Insertable: func(c *model.Comment) map[string]interface{} {
		return map[string]interface{}{
			"content":   c.Content,
			"post_id":   c.PostID,
			"author_id": c.AuthorID,
			"parent_id": c.ParentID,
		}
	},
	Updatable: func(c *model.Comment) map[string]interface{} {
		return map[string]interface{}{
			"content": c.Content,
		}
	},
}

type commentRepository struct {
	Store[model.Comment]
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{Store: NewStore(db, commentTable), db: db}
}

// GetByID retrieves a single comment.
func (r *commentRepository) GetByID(ctx context.Context, commentID int64) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.GetContext(ctx, &comment, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}

// Create inserts a comment, mapping a vanished post to ErrPostNotFound.
func (r *commentRepository) Create(ctx context.Context, comment *model.Comment) error {
	err := r.Store.Insert(ctx, comment)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		if pqErr.Constraint == "comments_parent_id_fkey" {
			return model.ErrCommentNotFound
		}
		return model.ErrPostNotFound
	}
	return err
}

// UpdateContent rewrites the content of a comment.
func (r *commentRepository) UpdateContent(ctx context.Context, commentID int64, content string) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.GetContext(ctx, &comment, `
		UPDATE comments
		SET content = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+commentColumns, content, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	return &comment, nil
}

// ListReplies returns the replies to parentIDs ordered by creation time.
func (r *commentRepository) ListReplies(ctx context.Context, parentIDs []int64) ([]model.Comment, error) {
	replies := []model.Comment{}
	if len(parentIDs) == 0 {
		return replies, nil
	}

	err := r.db.SelectContext(ctx, &replies, `
		SELECT `+commentColumns+` FROM comments
		WHERE parent_id = ANY($1)
		ORDER BY created_at ASC, id ASC
	`, pq.Array(parentIDs))
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return replies, nil
}

// DeleteWithReplies removes the comment and its direct replies and returns
// the number of rows deleted.
func (r *commentRepository) DeleteWithReplies(ctx context.Context, commentID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1 OR parent_id = $1`, commentID)
	if err != nil {
		return 0, fmt.Errorf("delete comment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return 0, model.ErrCommentNotFound
	}
	return rows, nil
}
