package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandor-zhong/baby-chengcheng/models"
	"github.com/sandor-zhong/baby-chengcheng/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minPasswordLen = 6
	resetCodeLen   = 6
	resetCodeTTL   = 15 * time.Minute
	// wrong guesses allowed before a reset code is burned
	maxResetAttempts = 5
)

type UserService struct {
	db     *gorm.DB
	mailer Mailer
	now    func() time.Time
	log    *zap.Logger
}

func NewUserService(db *gorm.DB, mailer Mailer, now func() time.Time, log *zap.Logger) *UserService {
	return &UserService{db: db, mailer: mailer, now: now, log: log}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validatePassword(pw string) error {
	if len(pw) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	return nil
}

func (s *UserService) Register(ctx context.Context, email, password, confirm string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	if password != confirm {
		return nil, fmt.Errorf("%w: passwords do not match", ErrInvalidInput)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{Email: email, PasswordHash: hash}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", zap.Uint("user_id", u.ID))
	return u, nil
}

func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, u.PasswordHash) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *UserService) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	u, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPasswordHash(current, u.PasswordHash) {
		return ErrBadCredentials
	}
	return s.setPassword(ctx, u, next)
}

func (s *UserService) setPassword(ctx context.Context, u *models.User, pw string) error {
	if err := validatePassword(pw); err != nil {
		return err
	}
	hash, err := utils.HashPassword(pw)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	u.ResetToken = ""
	u.ResetTokenExp = time.Time{}
	u.ResetAttempts = 0
	return s.db.WithContext(ctx).Save(u).Error
}

// RequestPasswordReset mails a short reset code. Unknown addresses and mail
// failures both look like success so callers cannot probe which accounts exist.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	code, err := utils.GenerateRandomToken(resetCodeLen)
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}
	u.ResetToken = code
	u.ResetTokenExp = s.now().Add(resetCodeTTL)
	u.ResetAttempts = 0
	if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
		return err
	}
	if err := s.mailer.SendResetCode(ctx, u.Email, code); err != nil {
		s.log.Warn("send reset code", zap.Uint("user_id", u.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword sets a new password when code matches the one mailed to email.
// A code is burned after maxResetAttempts wrong guesses.
func (s *UserService) ResetPassword(ctx context.Context, email, code, next string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ErrInvalidCode
	}
	u, err := s.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return err
	}
	if u.ResetToken == "" || s.now().After(u.ResetTokenExp) {
		return ErrInvalidCode
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(u.ResetToken)) != 1 {
		u.ResetAttempts++
		if u.ResetAttempts >= maxResetAttempts {
			u.ResetToken = ""
			u.ResetTokenExp = time.Time{}
		}
		if err := s.db.WithContext(ctx).Save(u).Error; err != nil {
			return err
		}
		return ErrInvalidCode
	}
	return s.setPassword(ctx, u, next)
}
