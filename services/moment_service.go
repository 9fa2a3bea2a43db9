package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sandor-zhong/baby-chengcheng/models"
	"github.com/sandor-zhong/baby-chengcheng/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultPerPage    = 10
	MaxPerPage        = 50
	shareDescLimit    = 100
	searchPromptEmpty = "Please enter a search keyword"
)

type MomentService struct {
	db      *gorm.DB
	media   *MediaService
	now     func() time.Time
	metrics *Metrics
	log     *zap.Logger
}

func NewMomentService(db *gorm.DB, media *MediaService, now func() time.Time, metrics *Metrics, log *zap.Logger) *MomentService {
	return &MomentService{db: db, media: media, now: now, metrics: metrics, log: log}
}

// MomentView is a moment as the journal pages consume it: store keys resolved to
// URLs and a day label relative to today.
type MomentView struct {
	ID         uint    `json:"id"`
	Content    string  `json:"content"`
	ImagePath  *string `json:"image_path"`
	ThumbPath  *string `json:"thumb_path"`
	VideoPath  *string `json:"video_path"`
	ImageURL   *string `json:"image_url"`
	ThumbURL   *string `json:"thumb_url"`
	VideoURL   *string `json:"video_url"`
	IsFavorite bool    `json:"is_favorite"`
	Timestamp  string  `json:"timestamp"`
	DateLabel  string  `json:"date_label"`
}

type MomentGroup struct {
	Label string       `json:"label"`
	Items []MomentView `json:"items"`
}

// MomentPage is one page of a listing or a search.
type MomentPage struct {
	Moments     []MomentView  `json:"moments"`
	Groups      []MomentGroup `json:"groups"`
	Total       int64         `json:"total"`
	HasNext     bool          `json:"has_next"`
	HasPrev     bool          `json:"has_prev"`
	CurrentPage int           `json:"current_page"`
	TotalPages  int           `json:"total_pages"`
	PerPage     int           `json:"per_page"`
	Query       string        `json:"query,omitempty"`
	Message     string        `json:"message,omitempty"`
}

// MomentDetail carries a moment with its newer (Prev) and older (Next) neighbours.
type MomentDetail struct {
	Moment MomentView  `json:"moment"`
	Prev   *MomentView `json:"prev"`
	Next   *MomentView `json:"next"`
}

type ShareInfo struct {
	ShareURL    string `json:"share_url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (s *MomentService) view(m *models.Moment, today time.Time) MomentView {
	ts := m.Timestamp.In(today.Location())
	return MomentView{
		ID:         m.ID,
		Content:    m.Content,
		ImagePath:  m.ImagePath,
		ThumbPath:  m.ThumbPath,
		VideoPath:  m.VideoPath,
		ImageURL:   s.url(m.ImagePath),
		ThumbURL:   s.url(m.ThumbPath),
		VideoURL:   s.url(m.VideoPath),
		IsFavorite: m.IsFavorite,
		Timestamp:  ts.Format(time.RFC3339),
		DateLabel:  utils.DateLabel(ts, today),
	}
}

func (s *MomentService) url(key *string) *string {
	if key == nil || *key == "" || s.media == nil {
		return nil
	}
	u := s.media.Store().URL(*key)
	return &u
}

// Create posts a moment. media may be nil; an attached image gets a thumbnail,
// a video is stored as-is.
func (s *MomentService) Create(ctx context.Context, userID uint, content string, media io.Reader) (*models.Moment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	m := &models.Moment{UserID: userID, Content: content, Timestamp: s.now()}
	if media != nil {
		saved, err := s.media.SaveMomentMedia(ctx, media)
		if err != nil {
			return nil, err
		}
		m.ImagePath, m.ThumbPath, m.VideoPath = saved.ImageKey, saved.ThumbKey, saved.VideoKey
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		s.media.Remove(ctx, m.MediaKeys()...)
		return nil, fmt.Errorf("create moment: %w", err)
	}
	s.metrics.moment("create")
	return m, nil
}

// find loads a moment of the user. Moments of other users are reported as missing.
func (s *MomentService) find(ctx context.Context, userID, id uint) (*models.Moment, error) {
	var m models.Moment
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MomentService) Get(ctx context.Context, userID, id uint) (*MomentDetail, error) {
	m, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	today := s.now()
	d := &MomentDetail{Moment: s.view(m, today)}

	var newer, older models.Moment
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND (posted_at > ? OR (posted_at = ? AND id > ?))", userID, m.Timestamp, m.Timestamp, m.ID).
		Order("posted_at ASC").Order("id ASC").First(&newer).Error
	if err == nil {
		v := s.view(&newer, today)
		d.Prev = &v
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND (posted_at < ? OR (posted_at = ? AND id < ?))", userID, m.Timestamp, m.Timestamp, m.ID).
		Order("posted_at DESC").Order("id DESC").First(&older).Error
	if err == nil {
		v := s.view(&older, today)
		d.Next = &v
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return d, nil
}

// Update replaces the content and, when media is given, the attachment. The new
// file is stored before the row changes; old files are removed afterwards.
func (s *MomentService) Update(ctx context.Context, userID, id uint, content string, media io.Reader) (*models.Moment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: content must not be empty", ErrInvalidInput)
	}
	m, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	var stale []string
	m.Content = content
	if media != nil {
		saved, err := s.media.SaveMomentMedia(ctx, media)
		if err != nil {
			return nil, err
		}
		stale = m.MediaKeys()
		m.ImagePath, m.ThumbPath, m.VideoPath = saved.ImageKey, saved.ThumbKey, saved.VideoKey
	}
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		if media != nil {
			s.media.Remove(ctx, m.MediaKeys()...)
		}
		return nil, fmt.Errorf("update moment %d: %w", id, err)
	}
	s.media.Remove(ctx, stale...)
	s.metrics.moment("update")
	return m, nil
}

func (s *MomentService) Delete(ctx context.Context, userID, id uint) error {
	m, err := s.find(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(m).Error; err != nil {
		return fmt.Errorf("delete moment %d: %w", id, err)
	}
	s.media.Remove(ctx, m.MediaKeys()...)
	s.metrics.moment("delete")
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *MomentService) ToggleFavorite(ctx context.Context, userID, id uint) (bool, error) {
	m, err := s.find(ctx, userID, id)
	if err != nil {
		return false, err
	}
	m.IsFavorite = !m.IsFavorite
	if err := s.db.WithContext(ctx).Model(m).Update("is_favorite", m.IsFavorite).Error; err != nil {
		return false, fmt.Errorf("favorite moment %d: %w", id, err)
	}
	s.metrics.moment("favorite")
	return m.IsFavorite, nil
}

// List pages through the user's moments, newest first.
func (s *MomentService) List(ctx context.Context, userID uint, page, perPage int, favoritesOnly bool) (*MomentPage, error) {
	q := s.db.WithContext(ctx).Model(&models.Moment{}).Where("user_id = ?", userID)
	if favoritesOnly {
		q = q.Where("is_favorite = ?", true)
	}
	return s.paginate(q, page, perPage)
}

// Search matches content case-insensitively. An empty query returns an empty
// page with a prompt message.
func (s *MomentService) Search(ctx context.Context, userID uint, query string, page, perPage int) (*MomentPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return &MomentPage{Moments: []MomentView{}, Groups: []MomentGroup{}, CurrentPage: 1, Message: searchPromptEmpty}, nil
	}
	q := s.db.WithContext(ctx).Model(&models.Moment{}).
		Where("user_id = ?", userID).
		Where(`LOWER(content) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(query))+"%")
	p, err := s.paginate(q, page, perPage)
	if err != nil {
		return nil, err
	}
	p.Query = query
	return p, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *MomentService) paginate(q *gorm.DB, page, perPage int) (*MomentPage, error) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	perPage = Clamp(perPage, 1, MaxPerPage)
	if page < 1 {
		page = 1
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count moments: %w", err)
	}
	var rows []models.Moment
	if err := q.Session(&gorm.Session{}).
		Order("posted_at DESC").Order("id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list moments: %w", err)
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))
	out := &MomentPage{
		Moments:     make([]MomentView, 0, len(rows)),
		Groups:      []MomentGroup{},
		Total:       total,
		CurrentPage: page,
		TotalPages:  pages,
		PerPage:     perPage,
		HasPrev:     page > 1,
		HasNext:     page < pages,
	}
	today := s.now()
	for i := range rows {
		v := s.view(&rows[i], today)
		out.Moments = append(out.Moments, v)
		if n := len(out.Groups); n == 0 || out.Groups[n-1].Label != v.DateLabel {
			out.Groups = append(out.Groups, MomentGroup{Label: v.DateLabel})
		}
		g := &out.Groups[len(out.Groups)-1]
		g.Items = append(g.Items, v)
	}
	return out, nil
}

// Share builds the link and preview text for a moment. baseURL is the public
// root of the site.
func (s *MomentService) Share(ctx context.Context, userID, id uint, baseURL string) (*ShareInfo, error) {
	m, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	desc := m.Content
	if r := []rune(desc); len(r) > shareDescLimit {
		desc = string(r[:shareDescLimit]) + "..."
	}
	return &ShareInfo{
		ShareURL:    strings.TrimRight(baseURL, "/") + "/moments/" + strconv.FormatUint(uint64(id), 10),
		Title:       "Baby moments - " + m.Timestamp.In(s.now().Location()).Format("2006-01-02 15:04"),
		Description: desc,
	}, nil
}

// Recent returns the user's n newest moments.
func (s *MomentService) Recent(ctx context.Context, userID uint, n int) ([]models.Moment, error) {
	var rows []models.Moment
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("posted_at DESC").Order("id DESC").Limit(n).Find(&rows).Error
	return rows, err
}
