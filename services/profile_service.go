package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sandor-zhong/baby-chengcheng/models"
	"github.com/sandor-zhong/baby-chengcheng/utils"

	"go.uber.org/zap"
)

const (
	DefaultAvatarURL = "/static/avatar-default.svg"
	DefaultCoverURL  = "/static/cover-default.svg"
	maxBabyNameRunes = 50
)

// ImageOverrides are fixed avatar/cover URLs taken from the environment. When set
// they win over any uploaded file.
type ImageOverrides struct {
	Avatar string
	Cover  string
}

// ProfileService keeps one small JSON document per user under dataDir/profiles.
type ProfileService struct {
	dir       string
	store     MediaStore
	overrides ImageOverrides
	now       func() time.Time
	log       *zap.Logger

	mu sync.Mutex
}

func NewProfileService(dataDir string, store MediaStore, overrides ImageOverrides, now func() time.Time, log *zap.Logger) *ProfileService {
	return &ProfileService{
		dir:       filepath.Join(dataDir, "profiles"),
		store:     store,
		overrides: overrides,
		now:       now,
		log:       log,
	}
}

func (s *ProfileService) file(userID uint) string {
	return filepath.Join(s.dir, strconv.FormatUint(uint64(userID), 10)+".json")
}

// Load returns the stored profile. A missing or unreadable file yields an empty one.
func (s *ProfileService) Load(userID uint) models.Profile {
	var p models.Profile
	data, err := os.ReadFile(s.file(userID))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("profile read failed", zap.Uint("user_id", userID), zap.Error(err))
		}
		return p
	}
	if err := json.Unmarshal(data, &p); err != nil {
		s.log.Warn("profile is not valid JSON", zap.Uint("user_id", userID), zap.Error(err))
		return models.Profile{}
	}
	return p
}

// Save validates and writes the profile. birth may be empty.
func (s *ProfileService) Save(userID uint, name, birth string) (models.Profile, error) {
	name = strings.TrimSpace(name)
	birth = strings.TrimSpace(birth)
	if len([]rune(name)) > maxBabyNameRunes {
		return models.Profile{}, fmt.Errorf("%w: name is longer than %d characters", ErrInvalidInput, maxBabyNameRunes)
	}
	if birth != "" {
		if _, err := utils.ParseDate(birth, time.UTC); err != nil {
			return models.Profile{}, fmt.Errorf("%w: birth %v", ErrInvalidInput, err)
		}
	}
	p := models.Profile{Name: name, Birth: birth}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return p, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return p, fmt.Errorf("create profile dir: %w", err)
	}
	tmp := s.file(userID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return p, fmt.Errorf("write profile: %w", err)
	}
	if err := os.Rename(tmp, s.file(userID)); err != nil {
		return p, fmt.Errorf("write profile: %w", err)
	}
	return p, nil
}

// ProfileContext is what every page shows about the baby.
type ProfileContext struct {
	BabyName      string `json:"baby_name"`
	BabyBirth     string `json:"baby_birth"`
	BabyAgeMonths int    `json:"baby_age_months"`
	BabyAgeText   string `json:"baby_age_text"`
	AvatarURL     string `json:"avatar_url"`
	CoverURL      string `json:"cover_url"`
}

// Context resolves the profile, the age at today and the image URLs.
// userID 0 means an anonymous visitor and yields defaults only.
func (s *ProfileService) Context(ctx context.Context, userID uint) ProfileContext {
	out := ProfileContext{
		AvatarURL: s.imageURL(ctx, s.overrides.Avatar, userID, AvatarKey, DefaultAvatarURL),
		CoverURL:  s.imageURL(ctx, s.overrides.Cover, userID, CoverKey, DefaultCoverURL),
	}
	if userID == 0 {
		return out
	}
	p := s.Load(userID)
	out.BabyName, out.BabyBirth = p.Name, p.Birth
	if p.Birth == "" {
		return out
	}
	today := s.now()
	birth, err := utils.ParseDate(p.Birth, today.Location())
	if err != nil {
		return out
	}
	out.BabyAgeMonths = utils.AgeMonths(birth, today)
	out.BabyAgeText = utils.AgeBreakdown(birth, today).Text()
	return out
}

// imageURL applies the precedence override > uploaded file (versioned by mtime) > default.
func (s *ProfileService) imageURL(ctx context.Context, override string, userID uint, key func(uint) string, def string) string {
	if override != "" {
		return override
	}
	if userID == 0 || s.store == nil {
		return def
	}
	k := key(userID)
	info, err := s.store.Stat(ctx, k)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Debug("profile image stat failed", zap.String("key", k), zap.Error(err))
		}
		return def
	}
	return s.store.URL(k) + "?v=" + strconv.FormatInt(info.ModTime.Unix(), 10)
}
