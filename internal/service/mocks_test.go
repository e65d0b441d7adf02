package service

import (
	"context"
	"mime/multipart"
	"time"

	sq "github.com/Masterminds/squirrel"

	"inkwell/internal/model"
	"inkwell/internal/query"
	"inkwell/internal/repository"
)

// Services depend on repository interfaces, so tests swap in these mocks.
// Each method delegates to an optional fn field; unset fields fall back to
// a neutral answer.

type mockStore[T any] struct {
	resource *query.Resource

	insertFn     func(ctx context.Context, rec *T) error
	findByIDFn   func(ctx context.Context, id int64, scope ...sq.Sqlizer) (*T, error)
	updateFn     func(ctx context.Context, id int64, rec *T, columns []string) error
	deleteFn     func(ctx context.Context, id int64) error
	softDeleteFn func(ctx context.Context, id int64) error
	listFn       func(ctx context.Context, f *query.Features) ([]T, int, error)

	deleteCalls     []int64
	softDeleteCalls []int64
}

func (m *mockStore[T]) Insert(ctx context.Context, rec *T) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, rec)
	}
	return nil
}

func (m *mockStore[T]) FindByID(ctx context.Context, id int64, scope ...sq.Sqlizer) (*T, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id, scope...)
	}
	return nil, repository.ErrNotFound
}

func (m *mockStore[T]) Update(ctx context.Context, id int64, rec *T, columns []string) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, rec, columns)
	}
	return nil
}

func (m *mockStore[T]) Delete(ctx context.Context, id int64) error {
	m.deleteCalls = append(m.deleteCalls, id)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockStore[T]) SoftDelete(ctx context.Context, id int64) error {
	m.softDeleteCalls = append(m.softDeleteCalls, id)
	if m.softDeleteFn != nil {
		return m.softDeleteFn(ctx, id)
	}
	return nil
}

func (m *mockStore[T]) List(ctx context.Context, f *query.Features) ([]T, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	return []T{}, 0, nil
}

func (m *mockStore[T]) Resource() *query.Resource {
	return m.resource
}

// =============================================================================
// USERS
// =============================================================================

type mockUserRepository struct {
	mockStore[model.User]

	createFn                 func(ctx context.Context, user *model.User) error
	getByIDFn                func(ctx context.Context, id int64) (*model.User, error)
	getByEmailFn             func(ctx context.Context, email string) (*model.User, error)
	getByVerificationTokenFn func(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	getByResetTokenFn        func(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	existsByEmailFn          func(ctx context.Context, email string) (bool, error)
	existsByUsernameFn       func(ctx context.Context, username string) (bool, error)
	setVerificationTokenFn   func(ctx context.Context, id int64, tokenHash *string, expires *time.Time) error
	markVerifiedFn           func(ctx context.Context, id int64) (bool, error)
	markWelcomeSentFn        func(ctx context.Context, id int64) (bool, error)
	setResetTokenFn          func(ctx context.Context, id int64, tokenHash *string, expires *time.Time) error
	updatePasswordFn         func(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error
	deactivateFn             func(ctx context.Context, id int64) error
	getSummariesFn           func(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error)

	createCalls          []*model.User
	markVerifiedCalls    int
	markWelcomeSentCalls int
	resetTokenCalls      []*string
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{mockStore: mockStore[model.User]{resource: repository.UserResource}}
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	m.createCalls = append(m.createCalls, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	user.ID = int64(len(m.createCalls))
	return nil
}

func (m *mockUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, email)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	if m.getByVerificationTokenFn != nil {
		return m.getByVerificationTokenFn(ctx, tokenHash, now)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	if m.getByResetTokenFn != nil {
		return m.getByResetTokenFn(ctx, tokenHash, now)
	}
	return nil, model.ErrUserNotFound
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsByEmailFn != nil {
		return m.existsByEmailFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if m.existsByUsernameFn != nil {
		return m.existsByUsernameFn(ctx, username)
	}
	return false, nil
}

func (m *mockUserRepository) SetVerificationToken(ctx context.Context, id int64, tokenHash *string, expires *time.Time) error {
	if m.setVerificationTokenFn != nil {
		return m.setVerificationTokenFn(ctx, id, tokenHash, expires)
	}
	return nil
}

func (m *mockUserRepository) MarkVerified(ctx context.Context, id int64) (bool, error) {
	m.markVerifiedCalls++
	if m.markVerifiedFn != nil {
		return m.markVerifiedFn(ctx, id)
	}
	return true, nil
}

func (m *mockUserRepository) MarkWelcomeSent(ctx context.Context, id int64) (bool, error) {
	m.markWelcomeSentCalls++
	if m.markWelcomeSentFn != nil {
		return m.markWelcomeSentFn(ctx, id)
	}
	return true, nil
}

func (m *mockUserRepository) SetResetToken(ctx context.Context, id int64, tokenHash *string, expires *time.Time) error {
	m.resetTokenCalls = append(m.resetTokenCalls, tokenHash)
	if m.setResetTokenFn != nil {
		return m.setResetTokenFn(ctx, id, tokenHash, expires)
	}
	return nil
}

func (m *mockUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, id, passwordHash, changedAt)
	}
	return nil
}

func (m *mockUserRepository) Deactivate(ctx context.Context, id int64) error {
	if m.deactivateFn != nil {
		return m.deactivateFn(ctx, id)
	}
	return nil
}

func (m *mockUserRepository) GetSummaries(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error) {
	if m.getSummariesFn != nil {
		return m.getSummariesFn(ctx, ids)
	}
	out := make(map[int64]model.UserSummary, len(ids))
	for _, id := range ids {
		out[id] = model.UserSummary{ID: id, Username: "user"}
	}
	return out, nil
}

// =============================================================================
// POSTS
// =============================================================================

type mockPostRepository struct {
	mockStore[model.Post]

	getByIDFn          func(ctx context.Context, postID int64) (*model.Post, error)
	getByIDOrSlugFn    func(ctx context.Context, idOrSlug string) (*model.Post, error)
	incrementViewsFn   func(ctx context.Context, postID int64) (int64, error)
	likeFn             func(ctx context.Context, postID, userID int64) (bool, int, error)
	unlikeFn           func(ctx context.Context, postID, userID int64) (bool, int, error)
	bookmarkFn         func(ctx context.Context, postID, userID int64) (bool, int, error)
	unbookmarkFn       func(ctx context.Context, postID, userID int64) (bool, int, error)
	viewerStateFn      func(ctx context.Context, postID, userID int64) (bool, bool, error)
	listByAuthorFn     func(ctx context.Context, authorID int64, drafts bool) ([]model.Post, error)
	listLikedByFn      func(ctx context.Context, userID int64) ([]model.Post, error)
	listBookmarkedByFn func(ctx context.Context, userID int64) ([]model.Post, error)
	publishFn          func(ctx context.Context, postID int64, slug *string, publishedAt time.Time) (*model.Post, error)
	deleteDraftFn      func(ctx context.Context, postID int64) error

	incrementViewsCalls int
	deleteDraftCalls    []int64
}

func newMockPostRepository() *mockPostRepository {
	return &mockPostRepository{mockStore: mockStore[model.Post]{resource: repository.PostResource}}
}

func (m *mockPostRepository) GetByID(ctx context.Context, postID int64) (*model.Post, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, postID)
	}
	return nil, model.ErrPostNotFound
}

func (m *mockPostRepository) GetByIDOrSlug(ctx context.Context, idOrSlug string) (*model.Post, error) {
	if m.getByIDOrSlugFn != nil {
		return m.getByIDOrSlugFn(ctx, idOrSlug)
	}
	return nil, model.ErrPostNotFound
}

func (m *mockPostRepository) IncrementViews(ctx context.Context, postID int64) (int64, error) {
	m.incrementViewsCalls++
	if m.incrementViewsFn != nil {
		return m.incrementViewsFn(ctx, postID)
	}
	return 1, nil
}

func (m *mockPostRepository) Like(ctx context.Context, postID, userID int64) (bool, int, error) {
	if m.likeFn != nil {
		return m.likeFn(ctx, postID, userID)
	}
	return true, 1, nil
}

func (m *mockPostRepository) Unlike(ctx context.Context, postID, userID int64) (bool, int, error) {
	if m.unlikeFn != nil {
		return m.unlikeFn(ctx, postID, userID)
	}
	return true, 0, nil
}

func (m *mockPostRepository) Bookmark(ctx context.Context, postID, userID int64) (bool, int, error) {
	if m.bookmarkFn != nil {
		return m.bookmarkFn(ctx, postID, userID)
	}
	return true, 1, nil
}

func (m *mockPostRepository) Unbookmark(ctx context.Context, postID, userID int64) (bool, int, error) {
	if m.unbookmarkFn != nil {
		return m.unbookmarkFn(ctx, postID, userID)
	}
	return true, 0, nil
}

func (m *mockPostRepository) ViewerState(ctx context.Context, postID, userID int64) (bool, bool, error) {
	if m.viewerStateFn != nil {
		return m.viewerStateFn(ctx, postID, userID)
	}
	return false, false, nil
}

func (m *mockPostRepository) ListByAuthor(ctx context.Context, authorID int64, drafts bool) ([]model.Post, error) {
	if m.listByAuthorFn != nil {
		return m.listByAuthorFn(ctx, authorID, drafts)
	}
	return []model.Post{}, nil
}

func (m *mockPostRepository) ListLikedBy(ctx context.Context, userID int64) ([]model.Post, error) {
	if m.listLikedByFn != nil {
		return m.listLikedByFn(ctx, userID)
	}
	return []model.Post{}, nil
}

func (m *mockPostRepository) ListBookmarkedBy(ctx context.Context, userID int64) ([]model.Post, error) {
	if m.listBookmarkedByFn != nil {
		return m.listBookmarkedByFn(ctx, userID)
	}
	return []model.Post{}, nil
}

func (m *mockPostRepository) Publish(ctx context.Context, postID int64, slug *string, publishedAt time.Time) (*model.Post, error) {
	if m.publishFn != nil {
		return m.publishFn(ctx, postID, slug, publishedAt)
	}
	return nil, model.ErrPostAlreadyPublic
}

func (m *mockPostRepository) DeleteDraft(ctx context.Context, postID int64) error {
	m.deleteDraftCalls = append(m.deleteDraftCalls, postID)
	if m.deleteDraftFn != nil {
		return m.deleteDraftFn(ctx, postID)
	}
	return nil
}

// =============================================================================
// COMMENTS
// =============================================================================

type mockCommentRepository struct {
	mockStore[model.Comment]

	getByIDFn           func(ctx context.Context, commentID int64) (*model.Comment, error)
	createFn            func(ctx context.Context, comment *model.Comment) error
	updateContentFn     func(ctx context.Context, commentID int64, content string) (*model.Comment, error)
	listRepliesFn       func(ctx context.Context, parentIDs []int64) ([]model.Comment, error)
	deleteWithRepliesFn func(ctx context.Context, commentID int64) (int64, error)

	createCalls            []*model.Comment
	deleteWithRepliesCalls []int64
}

func newMockCommentRepository() *mockCommentRepository {
	return &mockCommentRepository{mockStore: mockStore[model.Comment]{resource: repository.CommentResource}}
}

func (m *mockCommentRepository) GetByID(ctx context.Context, commentID int64) (*model.Comment, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, commentID)
	}
	return nil, model.ErrCommentNotFound
}

func (m *mockCommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	m.createCalls = append(m.createCalls, comment)
	if m.createFn != nil {
		return m.createFn(ctx, comment)
	}
	comment.ID = int64(100 + len(m.createCalls))
	return nil
}

func (m *mockCommentRepository) UpdateContent(ctx context.Context, commentID int64, content string) (*model.Comment, error) {
	if m.updateContentFn != nil {
		return m.updateContentFn(ctx, commentID, content)
	}
	return &model.Comment{ID: commentID, Content: content}, nil
}

func (m *mockCommentRepository) ListReplies(ctx context.Context, parentIDs []int64) ([]model.Comment, error) {
	if m.listRepliesFn != nil {
		return m.listRepliesFn(ctx, parentIDs)
	}
	return []model.Comment{}, nil
}

func (m *mockCommentRepository) DeleteWithReplies(ctx context.Context, commentID int64) (int64, error) {
	m.deleteWithRepliesCalls = append(m.deleteWithRepliesCalls, commentID)
	if m.deleteWithRepliesFn != nil {
		return m.deleteWithRepliesFn(ctx, commentID)
	}
	return 1, nil
}

// =============================================================================
// NOTIFICATIONS, MAIL, MEDIA
// =============================================================================

type mockNotificationRepository struct {
	createFn func(ctx context.Context, n *model.Notification) error

	created []*model.Notification
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	m.created = append(m.created, n)
	if m.createFn != nil {
		return m.createFn(ctx, n)
	}
	return nil
}

func (m *mockNotificationRepository) ListForRecipient(ctx context.Context, recipientID int64) ([]model.Notification, error) {
	out := []model.Notification{}
	for _, n := range m.created {
		if n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepository) MarkRead(ctx context.Context, id, recipientID int64) (*model.Notification, error) {
	for _, n := range m.created {
		if n.ID == id && n.RecipientID == recipientID {
			n.IsRead = true
			return n, nil
		}
	}
	return nil, model.ErrNotificationNotFound
}

func (m *mockNotificationRepository) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	var n int64
	for _, rec := range m.created {
		if rec.RecipientID == recipientID && !rec.IsRead {
			rec.IsRead = true
			n++
		}
	}
	return n, nil
}

type notifyCall struct {
	recipientID, senderID int64
	notifType             string
	postID, commentID     *int64
}

type recordingNotifier struct {
	calls []notifyCall
}

func (r *recordingNotifier) Notify(ctx context.Context, recipientID, senderID int64, notifType string, postID, commentID *int64) {
	r.calls = append(r.calls, notifyCall{recipientID, senderID, notifType, postID, commentID})
}

type mailCall struct {
	template string
	to       string
	url      string
}

type mockMailer struct {
	err     error
	welcome error
	calls   []mailCall
}

func (m *mockMailer) SendVerification(ctx context.Context, user *model.User, url string) error {
	m.calls = append(m.calls, mailCall{"verify", user.Email, url})
	return m.err
}

func (m *mockMailer) SendWelcome(ctx context.Context, user *model.User, url string) error {
	m.calls = append(m.calls, mailCall{"welcome", user.Email, url})
	return m.welcome
}

func (m *mockMailer) SendPasswordReset(ctx context.Context, user *model.User, url string) error {
	m.calls = append(m.calls, mailCall{"reset", user.Email, url})
	return m.err
}

type mockImages struct {
	uploadFn func(ctx context.Context, spec model.ImageSpec) (*model.UploadResult, error)

	deleted []string
}

func (m *mockImages) Upload(ctx context.Context, spec model.ImageSpec, file multipart.File, header *multipart.FileHeader) (*model.UploadResult, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, spec)
	}
	return &model.UploadResult{URL: "https://cdn.test/" + spec.Folder + "/new.jpg", Key: spec.Folder + "/new.jpg"}, nil
}

func (m *mockImages) DeleteObject(ctx context.Context, key *string) {
	if key != nil {
		m.deleted = append(m.deleted, *key)
	}
}

func ptr[T any](v T) *T { return &v }
