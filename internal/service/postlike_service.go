package service

import (
	"context"
	"time"

	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/mysql"
	rdsrepo "CommunityHub/internal/repository/redis"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PostLikeService struct {
	repo       *mysql.PostLikeRepository
	postRepo   *mysql.PostRepository
	memberRepo *mysql.MembershipRepository
	likeCache  *rdsrepo.LikeCacheRepository
	lock       *rdsrepo.DistLock
	log        *zap.Logger
	backoff    time.Duration
}

func NewPostLikeService(db *gorm.DB, rdb *goredis.Client, log *zap.Logger) *PostLikeService {
	return &PostLikeService{
		repo:       mysql.NewPostLikeRepository(db),
		postRepo:   mysql.NewPostRepository(db),
		memberRepo: mysql.NewMembershipRepository(db),
		likeCache:  rdsrepo.NewLikeCacheRepository(rdb),
		lock:       &rdsrepo.DistLock{RDB: rdb},
		log:        log,
		backoff:    50 * time.Millisecond,
	}
}

// Like 先写库；拿到锁则以库为准回写计数，拿不到锁删计数 key 交给读侧回填
func (s *PostLikeService) Like(ctx context.Context, userID, postID string) (bool, error) {
	if err := s.checkAccess(ctx, userID, postID); err != nil {
		return false, err
	}
	changed, err := s.repo.Like(ctx, userID, postID)
	if err != nil {
		return false, writeErr("failed to like post", err)
	}
	if !changed {
		s.likeCache.WarmIsLiked(ctx, userID, postID, true)
		return false, nil
	}
	// 集合更新失败不影响结果
	_ = s.likeCache.AddLike(ctx, userID, postID)
	s.syncCount(ctx, postID)
	return true, nil
}

func (s *PostLikeService) Unlike(ctx context.Context, userID, postID string) (bool, error) {
	if err := s.checkAccess(ctx, userID, postID); err != nil {
		return false, err
	}
	changed, err := s.repo.Unlike(ctx, userID, postID)
	if err != nil {
		return false, writeErr("failed to unlike post", err)
	}
	if !changed {
		s.likeCache.WarmIsLiked(ctx, userID, postID, false)
		return false, nil
	}
	_ = s.likeCache.RemoveLike(ctx, userID, postID)
	s.syncCount(ctx, postID)
	return true, nil
}

func (s *PostLikeService) IsLiked(ctx context.Context, userID, postID string) (bool, error) {
	if userID == "" {
		return false, pkg.ErrUnauthenticated
	}
	// 先查缓存集合，命中才用
	if b, hit, err := s.likeCache.IsLikedCached(ctx, userID, postID); err == nil && hit {
		return b, nil
	}
	b, err := s.repo.IsLiked(ctx, userID, postID)
	if err != nil {
		return false, pkg.WrapError(pkg.KindInternal, "check like", err)
	}
	s.likeCache.WarmIsLiked(ctx, userID, postID, b)
	return b, nil
}

// GetCount 缓存未命中时只让持锁者回源，其余短暂退避后重读
func (s *PostLikeService) GetCount(ctx context.Context, postID string) (int64, error) {
	if v, hit, err := s.likeCache.GetLikeCountCached(ctx, postID); err == nil && hit {
		return v, nil
	}
	token := uuid.NewString()
	got, _ := s.lock.Acquire(ctx, postID, token)
	if got {
		defer func() {
			if err := s.lock.Release(ctx, postID, token); err != nil {
				s.log.Warn("release like lock", zap.String("post_id", postID), zap.Error(err))
			}
		}()
		// 双检
		if v, hit, err := s.likeCache.GetLikeCountCached(ctx, postID); err == nil && hit {
			return v, nil
		}
		v, err := s.loadCount(ctx, postID)
		if err != nil {
			return 0, err
		}
		_ = s.likeCache.SetLikeCount(ctx, postID, v)
		return v, nil
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(s.backoff):
	}
	if v, hit, err := s.likeCache.GetLikeCountCached(ctx, postID); err == nil && hit {
		return v, nil
	}
	return s.loadCount(ctx, postID)
}

func (s *PostLikeService) loadCount(ctx context.Context, postID string) (int64, error) {
	v, err := s.repo.GetLikeCount(ctx, postID)
	if err != nil {
		return 0, lookupErr(err, "post not found")
	}
	return v, nil
}

func (s *PostLikeService) syncCount(ctx context.Context, postID string) {
	token := uuid.NewString()
	got, _ := s.lock.Acquire(ctx, postID, token)
	if !got {
		_ = s.likeCache.DeleteCount(ctx, postID)
		return
	}
	defer func() { _ = s.lock.Release(ctx, postID, token) }()
	v, err := s.repo.GetLikeCount(ctx, postID)
	if err != nil || s.likeCache.SetLikeCount(ctx, postID, v) != nil {
		_ = s.likeCache.DeleteCount(ctx, postID)
	}
}

// checkAccess 帖子存在且调用者是所在社区成员
func (s *PostLikeService) checkAccess(ctx context.Context, userID, postID string) error {
	if userID == "" {
		return pkg.ErrUnauthenticated
	}
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return lookupErr(err, "post not found")
	}
	ok, err := s.memberRepo.IsMember(ctx, post.CommunityID, userID)
	if err != nil {
		return pkg.WrapError(pkg.KindInternal, "check membership", err)
	}
	if !ok {
		return pkg.NewError(pkg.KindForbidden, "not a member")
	}
	return nil
}
