package service

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	log "github.com/sirupsen/logrus"

	"inkwell/internal/model"
	"inkwell/internal/repository"
)

type CommentService struct {
	factory     *Factory[model.Comment]
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	notifier    Notifier
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
) *CommentService {
	s := &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		notifier:    notifier,
	}
	authors := authorLoader{users: userRepo}
	s.factory = NewFactory[model.Comment](commentRepo, Descriptor[model.Comment]{
		SetUser: func(c *model.Comment, userID int64) { c.AuthorID = userID },
		Owner:   func(c *model.Comment) int64 { return c.AuthorID },
		Populate: func(ctx context.Context, top []model.Comment) error {
			return threads(ctx, commentRepo, authors, top)
		},
		Updatable: []string{"content"},
	})
	return s
}

// topLevel scopes a comment list to the root comments of one post.
func topLevel(postID int64) []sq.Sqlizer {
	return []sq.Sqlizer{sq.Eq{"post_id": postID}, sq.Eq{"parent_id": nil}}
}

// ListForPost pages through a post's top-level comments, each with its
// replies. The total counts top-level comments only.
func (s *CommentService) ListForPost(ctx context.Context, caller *model.User, postID int64, params url.Values) (*Page[model.Comment], error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}
	return s.factory.List(ctx, caller, params, topLevel(postID)...)
}

// Threads returns the first page of a post's comment threads.
func (s *CommentService) Threads(ctx context.Context, postID int64) ([]model.Comment, error) {
	page, err := s.factory.List(ctx, nil, url.Values{}, topLevel(postID)...)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", model.ErrContentRequired
	}
	if utf8.RuneCountInString(content) > model.MaxCommentLength {
		return "", model.ErrContentTooLong
	}
	return content, nil
}

// Create adds a comment or reply. Threads are two levels deep: replying to
// a reply attaches to its top-level parent and mentions the replied-to
// author.
func (s *CommentService) Create(ctx context.Context, caller *model.User, postID int64, req *model.CommentRequest) (*model.Comment, error) {
	content, err := validateContent(req.Content)
	if err != nil {
		return nil, err
	}

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	parentID := req.Parent
	if req.Parent != nil {
		parent, err := s.commentRepo.GetByID(ctx, *req.Parent)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, model.ErrParentWrongPost
		}

		if parent.ParentID != nil {
			parentID = parent.ParentID
			if author, err := s.userRepo.GetByID(ctx, parent.AuthorID); err == nil {
				content = "@" + author.Username + " " + content
			}
		}
	}

	comment := &model.Comment{
		Content:  content,
		PostID:   postID,
		AuthorID: caller.ID,
		ParentID: parentID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.Author = caller.Summary()

	s.notifier.Notify(ctx, post.AuthorID, caller.ID, model.NotificationTypeComment, &post.ID, &comment.ID)

	log.WithFields(log.Fields{"comment_id": comment.ID, "post_id": postID}).Info("[CommentService] Comment created")
	return comment, nil
}

// Update edits the content of the caller's own comment.
func (s *CommentService) Update(ctx context.Context, caller *model.User, commentID int64, req *model.CommentRequest) (*model.Comment, error) {
	content, err := validateContent(req.Content)
	if err != nil {
		return nil, err
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != caller.ID {
		return nil, model.ErrNotCommentOwner
	}

	updated, err := s.commentRepo.UpdateContent(ctx, commentID, content)
	if err != nil {
		return nil, err
	}
	updated.Author = caller.Summary()
	return updated, nil
}

// Delete removes a comment and its direct replies. The comment's author and
// the post's author may delete.
func (s *CommentService) Delete(ctx context.Context, caller *model.User, commentID int64) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}

	post, err := s.postRepo.GetByID(ctx, comment.PostID)
	if err != nil {
		return err
	}

	if comment.AuthorID != caller.ID && post.AuthorID != caller.ID {
		return model.ErrCommentDeleteDenied
	}

	removed, err := s.commentRepo.DeleteWithReplies(ctx, commentID)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{"comment_id": commentID, "removed": removed}).Info("[CommentService] Comment deleted")
	return nil
}
