package service

import (
	"context"

	"inkwell/internal/model"
	"inkwell/internal/repository"
)

// authorLoader batches author lookups for posts and comments.
type authorLoader struct {
	users repository.UserRepository
}

func (l authorLoader) load(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error) {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return l.users.GetSummaries(ctx, unique)
}

func (l authorLoader) posts(ctx context.Context, posts []model.Post) error {
	ids := make([]int64, len(posts))
	for i := range posts {
		ids[i] = posts[i].AuthorID
	}
	authors, err := l.load(ctx, ids)
	if err != nil {
		return err
	}
	for i := range posts {
		if a, ok := authors[posts[i].AuthorID]; ok {
			posts[i].Author = &a
		}
	}
	return nil
}

// comments attaches authors to comments and their replies.
func (l authorLoader) comments(ctx context.Context, comments []model.Comment) error {
	var ids []int64
	for i := range comments {
		ids = append(ids, comments[i].AuthorID)
		for j := range comments[i].Replies {
			ids = append(ids, comments[i].Replies[j].AuthorID)
		}
	}
	authors, err := l.load(ctx, ids)
	if err != nil {
		return err
	}

	for i := range comments {
		if a, ok := authors[comments[i].AuthorID]; ok {
			comments[i].Author = &a
		}
		for j := range comments[i].Replies {
			if a, ok := authors[comments[i].Replies[j].AuthorID]; ok {
				comments[i].Replies[j].Author = &a
			}
		}
	}
	return nil
}

// threads loads the replies of top-level comments (oldest first) and then
// populates every author in one batch.
func threads(ctx context.Context, comments repository.CommentRepository, authors authorLoader, top []model.Comment) error {
	if len(top) == 0 {
		return nil
	}

	ids := make([]int64, len(top))
	index := make(map[int64]int, len(top))
	for i := range top {
		ids[i] = top[i].ID
		index[top[i].ID] = i
		top[i].Replies = []model.Comment{}
	}

	replies, err := comments.ListReplies(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range replies {
		if r.ParentID == nil {
			continue
		}
		if i, ok := index[*r.ParentID]; ok {
			top[i].Replies = append(top[i].Replies, r)
		}
	}

	return authors.comments(ctx, top)
}
