package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	log "github.com/sirupsen/logrus"

	"inkwell/internal/model"
	"inkwell/internal/repository"
)

// Notifier records activity for post authors.
type Notifier interface {
	Notify(ctx context.Context, recipientID, senderID int64, notifType string, postID, commentID *int64)
}

type PostService struct {
	factory  *Factory[model.Post]
	postRepo repository.PostRepository
	comments *CommentService
	authors  authorLoader
	notifier Notifier
	images   Images
	now      func() time.Time
}

func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	comments *CommentService,
	notifier Notifier,
	images Images,
) *PostService {
	s := &PostService{
		postRepo: postRepo,
		comments: comments,
		authors:  authorLoader{users: userRepo},
		notifier: notifier,
		images:   images,
		now:      time.Now,
	}
	s.factory = NewFactory[model.Post](postRepo, Descriptor[model.Post]{
		SoftDelete:    true,
		FilterDeleted: true,
		SetUser:       func(p *model.Post, userID int64) { p.AuthorID = userID },
		Owner:         func(p *model.Post) int64 { return p.AuthorID },
		ListScope:     publishedOnly,
		Prepare:       s.prepare,
		Populate:      s.authors.posts,
		Updatable:     []string{"title", "content", "category"},
	})
	return s
}

// publishedOnly hides drafts from everyone but admins.
func publishedOnly(caller *model.User, _ url.Values) []sq.Sqlizer {
	if caller != nil && caller.IsAdmin() {
		return nil
	}
	return []sq.Sqlizer{sq.Eq{"is_draft": false}}
}

func (s *PostService) prepare(p *model.Post) {
	p.Normalize()
	if !p.IsDraft && p.PublishedAt == nil {
		now := s.now()
		p.PublishedAt = &now
	}
}

// newSlug derives a unique, URL-safe slug from title.
func newSlug(title string) string {
	base := slug.Make(title)
	if base == "" {
		base = "post"
	}
	return base + "-" + uuid.NewString()[:8]
}

// Create stores a published post or, with draft set, a draft that may be
// incomplete.
func (s *PostService) Create(ctx context.Context, caller *model.User, req *model.PostRequest, draft bool, image *ImageFile) (*model.Post, error) {
	post := &model.Post{IsDraft: draft}
	req.Apply(post)
	if post.Title != "" {
		sl := newSlug(post.Title)
		post.Slug = &sl
	}

	// Reject invalid bodies before anything is uploaded.
	if err := model.Validate(post); err != nil {
		return nil, err
	}

	if image != nil {
		res, err := s.images.Upload(ctx, model.CoverImage, image.File, image.Header)
		if err != nil {
			return nil, err
		}
		post.Image = &res.URL
		post.ImageKey = &res.Key
	}

	created, err := s.factory.Create(ctx, caller, post)
	if err != nil {
		s.images.DeleteObject(ctx, post.ImageKey)
		return nil, err
	}

	log.WithFields(log.Fields{"post_id": created.ID, "draft": draft}).Info("[PostService] Post created")
	return created, nil
}

// List returns a page of posts. Drafts are visible to admins only.
func (s *PostService) List(ctx context.Context, caller *model.User, params url.Values) (*Page[model.Post], error) {
	return s.factory.List(ctx, caller, params)
}

// Get resolves a post by id or slug, counts the view and attaches the
// author, the comment threads and, for a logged-in viewer, their
// like/bookmark state.
func (s *PostService) Get(ctx context.Context, viewer *model.User, idOrSlug string) (*model.Post, error) {
	post, err := s.postRepo.GetByIDOrSlug(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if post.IsDraft && !canSeeDraft(viewer, post) {
		return nil, model.ErrPostNotFound
	}

	views, err := s.postRepo.IncrementViews(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.Views = views

	posts := []model.Post{*post}
	if err := s.authors.posts(ctx, posts); err != nil {
		return nil, err
	}
	post = &posts[0]

	comments, err := s.comments.Threads(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.Comments = comments

	if viewer != nil {
		liked, bookmarked, err := s.postRepo.ViewerState(ctx, post.ID, viewer.ID)
		if err != nil {
			log.WithError(err).WithField("post_id", post.ID).Warn("[PostService] Failed to load viewer state")
		} else {
			post.IsLiked = &liked
			post.IsBookmarked = &bookmarked
		}
	}

	return post, nil
}

func canSeeDraft(viewer *model.User, post *model.Post) bool {
	return viewer != nil && (viewer.IsAdmin() || viewer.ID == post.AuthorID)
}

// visible returns a post the caller may interact with.
func (s *PostService) visible(ctx context.Context, caller *model.User, postID int64) (*model.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.IsDraft && !canSeeDraft(caller, post) {
		return nil, model.ErrPostNotFound
	}
	return post, nil
}

// Update applies a patch of title, content and category plus an optional
// new cover image. The slug never changes.
func (s *PostService) Update(ctx context.Context, caller *model.User, postID int64, patch map[string]json.RawMessage, image *ImageFile) (*model.Post, error) {
	var mutations []Mutation[model.Post]
	var uploaded *model.UploadResult
	var oldKey *string

	if image != nil {
		res, err := s.images.Upload(ctx, model.CoverImage, image.File, image.Header)
		if err != nil {
			return nil, err
		}
		uploaded = res
		mutations = append(mutations, func(p *model.Post) []string {
			oldKey = p.ImageKey
			p.Image = &res.URL
			p.ImageKey = &res.Key
			return []string{"image", "image_key"}
		})
	}

	post, err := s.factory.Update(ctx, caller, postID, patch, mutations...)
	if err != nil {
		if uploaded != nil {
			s.images.DeleteObject(ctx, &uploaded.Key)
		}
		return nil, err
	}

	s.images.DeleteObject(ctx, oldKey)
	return post, nil
}

// UpdateDraft edits one of the caller's own drafts.
func (s *PostService) UpdateDraft(ctx context.Context, caller *model.User, postID int64, patch map[string]json.RawMessage, image *ImageFile) (*model.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.IsDraft {
		return nil, model.ErrPostNotDraft
	}
	if post.AuthorID != caller.ID {
		return nil, model.ErrUpdateForbidden
	}
	return s.Update(ctx, caller, postID, patch, image)
}

// Delete soft-deletes a post. The cover image is kept with the row.
func (s *PostService) Delete(ctx context.Context, caller *model.User, postID int64) error {
	_, err := s.factory.Delete(ctx, caller, postID)
	return err
}

// PublishDraft turns a complete draft into a published post.
func (s *PostService) PublishDraft(ctx context.Context, caller *model.User, postID int64) (*model.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !s.factory.Authorize(caller, post) {
		return nil, model.ErrUpdateForbidden
	}
	if !post.IsDraft {
		return nil, model.ErrPostAlreadyPublic
	}

	post.IsDraft = false
	post.Normalize()
	if err := model.Validate(post); err != nil {
		return nil, err
	}

	sl := newSlug(post.Title)
	published, err := s.postRepo.Publish(ctx, postID, &sl, s.now())
	if err != nil {
		return nil, err
	}

	posts := []model.Post{*published}
	if err := s.authors.posts(ctx, posts); err != nil {
		return nil, err
	}

	log.WithField("post_id", postID).Info("[PostService] Draft published")
	return &posts[0], nil
}

// DeleteDraft permanently removes a draft and its cover image.
func (s *PostService) DeleteDraft(ctx context.Context, caller *model.User, postID int64) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if !s.factory.Authorize(caller, post) {
		return model.ErrDeleteForbidden
	}
	if !post.IsDraft {
		return model.ErrDraftDeleteOnly
	}

	if err := s.postRepo.DeleteDraft(ctx, postID); err != nil {
		if errors.Is(err, model.ErrPostNotDraft) {
			return model.ErrDraftDeleteOnly
		}
		return err
	}

	s.images.DeleteObject(ctx, post.ImageKey)
	return nil
}

// Like adds the caller's like. Only a like that changed state notifies the
// author.
func (s *PostService) Like(ctx context.Context, caller *model.User, postID int64) (*model.LikeResult, error) {
	post, err := s.visible(ctx, caller, postID)
	if err != nil {
		return nil, err
	}

	changed, total, err := s.postRepo.Like(ctx, postID, caller.ID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.notifier.Notify(ctx, post.AuthorID, caller.ID, model.NotificationTypeLike, &post.ID, nil)
	}
	return &model.LikeResult{Liked: true, TotalLikes: total}, nil
}

func (s *PostService) Unlike(ctx context.Context, caller *model.User, postID int64) (*model.LikeResult, error) {
	if _, err := s.visible(ctx, caller, postID); err != nil {
		return nil, err
	}
	_, total, err := s.postRepo.Unlike(ctx, postID, caller.ID)
	if err != nil {
		return nil, err
	}
	return &model.LikeResult{Liked: false, TotalLikes: total}, nil
}

func (s *PostService) Bookmark(ctx context.Context, caller *model.User, postID int64) (*model.BookmarkResult, error) {
	if _, err := s.visible(ctx, caller, postID); err != nil {
		return nil, err
	}
	_, total, err := s.postRepo.Bookmark(ctx, postID, caller.ID)
	if err != nil {
		return nil, err
	}
	return &model.BookmarkResult{Bookmarked: true, TotalBookmarks: total}, nil
}

func (s *PostService) Unbookmark(ctx context.Context, caller *model.User, postID int64) (*model.BookmarkResult, error) {
	if _, err := s.visible(ctx, caller, postID); err != nil {
		return nil, err
	}
	_, total, err := s.postRepo.Unbookmark(ctx, postID, caller.ID)
	if err != nil {
		return nil, err
	}
	return &model.BookmarkResult{Bookmarked: false, TotalBookmarks: total}, nil
}

// Collections of the caller's own posts, newest first.
const (
	CollectionDrafts    = "drafts"
	CollectionPosts     = "posts"
	CollectionLikes     = "likes"
	CollectionBookmarks = "bookmarks"
)

// Mine lists one of the caller's collections.
func (s *PostService) Mine(ctx context.Context, caller *model.User, collection string) ([]model.Post, error) {
	var (
		posts []model.Post
		err   error
	)
	switch collection {
	case CollectionDrafts:
		posts, err = s.postRepo.ListByAuthor(ctx, caller.ID, true)
	case CollectionPosts:
		posts, err = s.postRepo.ListByAuthor(ctx, caller.ID, false)
	case CollectionLikes:
		posts, err = s.postRepo.ListLikedBy(ctx, caller.ID)
	case CollectionBookmarks:
		posts, err = s.postRepo.ListBookmarkedBy(ctx, caller.ID)
	default:
		return nil, model.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := s.authors.posts(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}
