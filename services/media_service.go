package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

const (
	momentMaxWidth = 800
	thumbMaxWidth  = 360
	avatarMaxWidth = 512
	momentQuality  = 85
	thumbQuality   = 80
	momentsPrefix  = "moments"
)

var profileImageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// SavedMedia holds the store keys of an uploaded moment attachment.
type SavedMedia struct {
	ImageKey *string
	ThumbKey *string
	VideoKey *string
}

// MediaService turns uploads into resized, re-encoded files in a MediaStore.
type MediaService struct {
	store         MediaStore
	maxBytes      int64
	coverMaxWidth int
	coverQuality  int
	log           *zap.Logger
}

func NewMediaService(store MediaStore, maxBytes int64, coverMaxWidth, coverQuality int, log *zap.Logger) *MediaService {
	return &MediaService{
		store:         store,
		maxBytes:      maxBytes,
		coverMaxWidth: coverMaxWidth,
		coverQuality:  coverQuality,
		log:           log,
	}
}

func (m *MediaService) Store() MediaStore { return m.store }

func (m *MediaService) readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, m.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > m.maxBytes {
		return nil, fmt.Errorf("%w: file exceeds %d MB", ErrInvalidInput, m.maxBytes>>20)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidInput)
	}
	return data, nil
}

// SaveMomentMedia stores an image or a video attached to a moment. The kind is
// sniffed from the content, not taken from the client.
func (m *MediaService) SaveMomentMedia(ctx context.Context, r io.Reader) (SavedMedia, error) {
	data, err := m.readAll(r)
	if err != nil {
		return SavedMedia{}, err
	}
	mt := mimetype.Detect(data)
	switch {
	case strings.HasPrefix(mt.String(), "video/"):
		key, err := m.saveVideo(ctx, data, mt)
		if err != nil {
			return SavedMedia{}, err
		}
		return SavedMedia{VideoKey: &key}, nil
	case strings.HasPrefix(mt.String(), "image/"):
		img, thumb, err := m.SaveMomentImage(ctx, data)
		if err != nil {
			return SavedMedia{}, err
		}
		return SavedMedia{ImageKey: &img, ThumbKey: thumb}, nil
	default:
		return SavedMedia{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, mt.String())
	}
}

// SaveMomentImage stores the image scaled to the feed width plus a list thumbnail.
// A failed thumbnail is logged and reported as nil.
func (m *MediaService) SaveMomentImage(ctx context.Context, data []byte) (string, *string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", nil, fmt.Errorf("%w: cannot decode image: %v", ErrUnsupportedFile, err)
	}
	main := fitWidth(img, momentMaxWidth)

	id := uuid.NewString()
	key := fmt.Sprintf("%s/%s.jpg", momentsPrefix, id)
	if err := m.putJPEG(ctx, key, main, momentQuality); err != nil {
		return "", nil, err
	}

	thumbKey := fmt.Sprintf("%s/%s_thumb.jpg", momentsPrefix, id)
	if err := m.putJPEG(ctx, thumbKey, fitWidth(main, thumbMaxWidth), thumbQuality); err != nil {
		m.log.Warn("thumbnail generation failed", zap.String("key", key), zap.Error(err))
		return key, nil, nil
	}
	return key, &thumbKey, nil
}

// saveVideo stores the video untouched. No thumbnail is produced for videos.
func (m *MediaService) saveVideo(ctx context.Context, data []byte, mt *mimetype.MIME) (string, error) {
	ext := mt.Extension()
	if ext == "" {
		ext = ".mp4"
	}
	key := fmt.Sprintf("%s/%s%s", momentsPrefix, uuid.NewString(), ext)
	if err := m.store.Put(ctx, key, bytes.NewReader(data), mt.String()); err != nil {
		return "", fmt.Errorf("save video: %w", err)
	}
	return key, nil
}

// AvatarKey and CoverKey are the fixed per-user locations of profile images.
func AvatarKey(userID uint) string { return fmt.Sprintf("users/%d/avatar.jpg", userID) }
func CoverKey(userID uint) string  { return fmt.Sprintf("users/%d/cover.jpg", userID) }

func (m *MediaService) SaveAvatar(ctx context.Context, userID uint, filename string, r io.Reader) (string, error) {
	return m.saveProfileImage(ctx, AvatarKey(userID), filename, r, avatarMaxWidth, momentQuality)
}

func (m *MediaService) SaveCover(ctx context.Context, userID uint, filename string, r io.Reader) (string, error) {
	return m.saveProfileImage(ctx, CoverKey(userID), filename, r, m.coverMaxWidth, m.coverQuality)
}

func (m *MediaService) saveProfileImage(ctx context.Context, key, filename string, r io.Reader, maxWidth, quality int) (string, error) {
	if !profileImageExts[strings.ToLower(filepath.Ext(filename))] {
		return "", fmt.Errorf("%w: only JPG/PNG images are accepted", ErrUnsupportedFile)
	}
	data, err := m.readAll(r)
	if err != nil {
		return "", err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: cannot decode image: %v", ErrUnsupportedFile, err)
	}
	if err := m.putJPEG(ctx, key, fitWidth(img, maxWidth), quality); err != nil {
		return "", err
	}
	return key, nil
}

func (m *MediaService) putJPEG(ctx context.Context, key string, img image.Image, quality int) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := m.store.Put(ctx, key, &buf, "image/jpeg"); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Remove deletes media best-effort; failures are only logged.
func (m *MediaService) Remove(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if err := m.store.Delete(ctx, k); err != nil {
			m.log.Warn("media delete failed", zap.String("key", k), zap.Error(err))
		}
	}
}

// fitWidth scales img down to at most w pixels wide, keeping the aspect ratio.
func fitWidth(img image.Image, w int) image.Image {
	if w <= 0 || img.Bounds().Dx() <= w {
		return img
	}
	return imaging.Resize(img, w, 0, imaging.Lanczos)
}
