package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"CommunityHub/internal/model"
	"CommunityHub/internal/pkg"
	"CommunityHub/internal/repository/mysql"
	"CommunityHub/internal/repository/redis"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLen = 8

type UserService struct {
	repo   *mysql.UserRepository
	tokens *redis.TokenRepository
	issuer *pkg.TokenIssuer
	log    *zap.Logger
}

func NewUserService(db *gorm.DB, tokens *redis.TokenRepository, issuer *pkg.TokenIssuer, log *zap.Logger) *UserService {
	return &UserService{
		repo:   mysql.NewUserRepository(db),
		tokens: tokens,
		issuer: issuer,
		log:    log,
	}
}

type ProfileUpdate struct {
	DisplayName *string
	AvatarURL   *string
	Bio         *string
}

func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, pkg.NewError(pkg.KindInvalidArgument, "invalid email")
	}
	if len(password) < minPasswordLen {
		return nil, pkg.NewError(pkg.KindInvalidArgument, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindInternal, "hash password", err)
	}
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	user := &model.User{
		Email:       email,
		Password:    string(hash),
		DisplayName: displayName,
		Role:        model.UserRoleUser,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkg.NewError(pkg.KindConflict, "email already registered")
		}
		return nil, writeErr("failed to create user", err)
	}
	return user, nil
}

// Login 校验密码后签发 token，access token 写入 redis 作为唯一有效会话
func (s *UserService) Login(ctx context.Context, email, password string) (*pkg.Pair, *model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkg.NewError(pkg.KindUnauthenticated, "invalid email or password")
		}
		return nil, nil, pkg.WrapError(pkg.KindInternal, "load user", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, nil, pkg.NewError(pkg.KindUnauthenticated, "invalid email or password")
	}
	pair, err := s.issue(ctx, user.ID, user.Role)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.tokens.DeleteUserToken(ctx, userID); err != nil {
		return pkg.WrapError(pkg.KindInternal, "logout", err)
	}
	return nil
}

// Refresh 用 refresh token 换一组新 token，旧 access 随之失效
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*pkg.Pair, error) {
	claims, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindUnauthenticated, "invalid refresh token", err)
	}
	if _, err := s.repo.FindByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkg.NewError(pkg.KindUnauthenticated, "user no longer exists")
		}
		return nil, pkg.WrapError(pkg.KindInternal, "load user", err)
	}
	return s.issue(ctx, claims.UserID, claims.Role)
}

func (s *UserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, "user not found")
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*model.User, error) {
	fields := map[string]any{}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return nil, pkg.NewError(pkg.KindInvalidArgument, "display name cannot be empty")
		}
		fields["display_name"] = name
	}
	if in.AvatarURL != nil {
		fields["avatar_url"] = *in.AvatarURL
	}
	if in.Bio != nil {
		fields["bio"] = *in.Bio
	}
	if err := s.repo.UpdateProfile(ctx, userID, fields); err != nil {
		return nil, writeErr("failed to update profile", err)
	}
	return s.Profile(ctx, userID)
}

// ChangePassword 登录态修改密码，成功后强制重新登录
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return lookupErr(err, "user not found")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return pkg.NewError(pkg.KindInvalidArgument, "old password is incorrect")
	}
	if len(newPassword) < minPasswordLen {
		return pkg.NewError(pkg.KindInvalidArgument, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return pkg.WrapError(pkg.KindInternal, "hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return writeErr("failed to update password", err)
	}
	return s.Logout(ctx, userID)
}

func (s *UserService) issue(ctx context.Context, userID, role string) (*pkg.Pair, error) {
	pair, err := s.issuer.GeneratePair(userID, role)
	if err != nil {
		return nil, pkg.WrapError(pkg.KindInternal, "sign token", err)
	}
	if err := s.tokens.AddUserToken(ctx, userID, pair.AccessToken); err != nil {
		s.log.Error("store access token", zap.String("user_id", userID), zap.Error(err))
		return nil, pkg.WrapError(pkg.KindInternal, "store token", err)
	}
	return pair, nil
}
