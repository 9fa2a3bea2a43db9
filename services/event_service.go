package services

import (
	"context"
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
	HistoryLimit   = 200
	maxFeedML      = 1000
	displayTimeFmt = "2006-01-02 15:04:05"
)

// Notifier pushes change notifications to a user's open clients.
type Notifier interface {
	Publish(userID uint, kind string, payload any)
}

type EventService struct {
	db      *gorm.DB
	now     func() time.Time
	undo    *UndoLedger
	notify  Notifier
	metrics *Metrics
	log     *zap.Logger
}

func NewEventService(db *gorm.DB, now func() time.Time, undo *UndoLedger, notify Notifier, metrics *Metrics, log *zap.Logger) *EventService {
	return &EventService{db: db, now: now, undo: undo, notify: notify, metrics: metrics, log: log}
}

// ---------- Recording ----------

func (s *EventService) RecordFeed(ctx context.Context, userID uint, sessionID string, amountML int, note string) (*models.Event, error) {
	if amountML <= 0 || amountML > maxFeedML {
		return nil, fmt.Errorf("%w: amount must be between 1 and %d ml", ErrInvalidInput, maxFeedML)
	}
	amount := amountML
	e := &models.Event{
		UserID:    userID,
		Type:      models.EventFeed,
		AmountML:  &amount,
		Note:      strings.TrimSpace(note),
		Timestamp: s.now(),
	}
	return e, s.create(ctx, e, sessionID)
}

// RecordDiaper stores a diaper change. A known kind ("pee", "poop", "both") is
// written as a tag in front of the note.
func (s *EventService) RecordDiaper(ctx context.Context, userID uint, sessionID, kind, note string) (*models.Event, error) {
	note = strings.TrimSpace(note)
	if tag := utils.DiaperNotePrefix(kind); tag != "" {
		note = strings.TrimSpace(tag + " " + note)
	}
	e := &models.Event{
		UserID:    userID,
		Type:      models.EventDiaper,
		Note:      note,
		Timestamp: s.now(),
	}
	return e, s.create(ctx, e, sessionID)
}

func (s *EventService) create(ctx context.Context, e *models.Event, sessionID string) error {
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("create %s event: %w", e.Type, err)
	}
	if s.undo != nil {
		s.undo.Remember(sessionID, e.UserID, e.ID, e.Timestamp)
	}
	s.metrics.eventRecorded(e.Type)
	s.publish(e.UserID, "event.created", e)
	return nil
}

func (s *EventService) publish(userID uint, kind string, payload any) {
	if s.notify != nil {
		s.notify.Publish(userID, kind, payload)
	}
}

// ---------- History ----------

// History lists the newest events first. typ "feed" or "diaper" filters; anything
// else lists both.
func (s *EventService) History(ctx context.Context, userID uint, typ string, limit int) ([]models.Event, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if models.IsValidEventType(typ) {
		q = q.Where("type = ?", typ)
	}
	var events []models.Event
	if err := q.Order("logged_at DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *EventService) find(ctx context.Context, userID, id uint) (*models.Event, error) {
	var e models.Event
	if err := s.db.WithContext(ctx).First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if e.UserID != userID {
		return nil, ErrForbidden
	}
	return &e, nil
}

func (s *EventService) Delete(ctx context.Context, userID, id uint) error {
	e, err := s.find(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(e).Error; err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	if s.undo != nil {
		s.undo.Forget(id)
	}
	s.publish(userID, "event.deleted", map[string]any{"id": id, "type": e.Type})
	return nil
}

// Undo removes the last event recorded by this session, if still inside the window.
func (s *EventService) Undo(ctx context.Context, userID uint, sessionID string) (*models.Event, error) {
	if s.undo == nil {
		return nil, ErrNothingToUndo
	}
	id, err := s.undo.Take(sessionID, userID, s.now())
	if err != nil {
		return nil, err
	}
	e, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(e).Error; err != nil {
		return nil, fmt.Errorf("undo event %d: %w", id, err)
	}
	s.metrics.eventUndone()
	s.publish(userID, "event.deleted", map[string]any{"id": id, "type": e.Type})
	return e, nil
}

// Last returns the most recent event of the type, or nil when there is none.
func (s *EventService) Last(ctx context.Context, userID uint, typ string) (*models.Event, error) {
	var e models.Event
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, typ).
		Order("logged_at DESC").
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last %s: %w", typ, err)
	}
	return &e, nil
}

// RecentFeeds returns up to n feeds, newest first.
func (s *EventService) RecentFeeds(ctx context.Context, userID uint, n int) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, models.EventFeed).
		Order("logged_at DESC").
		Limit(n).
		Find(&events).Error
	return events, err
}

// ---------- Dashboard ----------

type TodayStats struct {
	FeedTotalML int64 `json:"today_feed_total_ml"`
	FeedCount   int64 `json:"today_feed_count"`
	DiaperCount int64 `json:"today_diaper_count"`
}

func (s *EventService) TodayStats(ctx context.Context, userID uint) (TodayStats, error) {
	start := utils.DayStart(s.now())
	var out TodayStats

	var feed struct {
		Total int64
		Count int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Event{}).
		Select("COALESCE(SUM(amount_ml), 0) AS total, COUNT(*) AS count").
		Where("user_id = ? AND type = ? AND logged_at >= ?", userID, models.EventFeed, start).
		Scan(&feed).Error; err != nil {
		return out, fmt.Errorf("feed totals: %w", err)
	}
	out.FeedTotalML, out.FeedCount = feed.Total, feed.Count

	if err := s.db.WithContext(ctx).Model(&models.Event{}).
		Where("user_id = ? AND type = ? AND logged_at >= ?", userID, models.EventDiaper, start).
		Count(&out.DiaperCount).Error; err != nil {
		return out, fmt.Errorf("diaper count: %w", err)
	}
	return out, nil
}

// Dashboard is the data behind the home screen. Nil fields mean "no event yet".
type Dashboard struct {
	LastFeedTime   *string `json:"last_feed_time"`
	LastDiaperTime *string `json:"last_diaper_time"`
	FeedElapsed    *string `json:"feed_elapsed"`
	DiaperElapsed  *string `json:"diaper_elapsed"`
	LastFeedTS     *string `json:"last_feed_ts"`
	LastDiaperTS   *string `json:"last_diaper_ts"`
	TodayStats
}

func (s *EventService) Dashboard(ctx context.Context, userID uint) (*Dashboard, error) {
	now := s.now()
	d := &Dashboard{}

	feed, err := s.Last(ctx, userID, models.EventFeed)
	if err != nil {
		return nil, err
	}
	diaper, err := s.Last(ctx, userID, models.EventDiaper)
	if err != nil {
		return nil, err
	}
	if feed != nil {
		d.LastFeedTime, d.LastFeedTS, d.FeedElapsed = describe(feed.Timestamp, now)
	}
	if diaper != nil {
		d.LastDiaperTime, d.LastDiaperTS, d.DiaperElapsed = describe(diaper.Timestamp, now)
	}

	if d.TodayStats, err = s.TodayStats(ctx, userID); err != nil {
		return nil, err
	}
	return d, nil
}

func describe(at, now time.Time) (display, iso, elapsed *string) {
	at = at.In(now.Location())
	a := at.Format(displayTimeFmt)
	b := at.Format(time.RFC3339)
	c := utils.FormatElapsed(now.Sub(at))
	return &a, &b, &c
}

// ---------- Chart series ----------

type FeedPoint struct {
	TS       string `json:"ts"`
	AmountML int    `json:"amount_ml"`
}

// FeedSeries returns the last limit feeds (1..200) in chronological order.
func (s *EventService) FeedSeries(ctx context.Context, userID uint, limit int) ([]FeedPoint, error) {
	limit = Clamp(limit, 1, 200)
	events, err := s.RecentFeeds(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("feed series: %w", err)
	}
	out := make([]FeedPoint, len(events))
	for i, e := range events {
		p := FeedPoint{TS: e.Timestamp.In(s.now().Location()).Format(time.RFC3339)}
		if e.AmountML != nil {
			p.AmountML = *e.AmountML
		}
		out[len(events)-1-i] = p
	}
	return out, nil
}

// seriesWindow loads the events of one type from the start of the day days-1 days ago.
func (s *EventService) seriesWindow(ctx context.Context, userID uint, typ string, days int) (time.Time, []utils.TimedNote, error) {
	now := s.now()
	start := utils.DayStart(now.AddDate(0, 0, -(days - 1)))

	var events []models.Event
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND logged_at >= ?", userID, typ, start).
		Order("logged_at ASC").
		Find(&events).Error; err != nil {
		return start, nil, fmt.Errorf("%s series: %w", typ, err)
	}
	notes := make([]utils.TimedNote, len(events))
	for i, e := range events {
		notes[i] = utils.TimedNote{At: e.Timestamp.In(now.Location()), Note: e.Note}
		if e.AmountML != nil {
			notes[i].AmountML = *e.AmountML
		}
	}
	return start, notes, nil
}

// DiaperSeries buckets the last days (1..60) of diaper changes by day and kind.
func (s *EventService) DiaperSeries(ctx context.Context, userID uint, days int) ([]utils.DiaperDay, error) {
	days = Clamp(days, 1, 60)
	start, notes, err := s.seriesWindow(ctx, userID, models.EventDiaper, days)
	if err != nil {
		return nil, err
	}
	return utils.BucketDiapers(notes, start, days), nil
}

// FeedDaily buckets the last days (1..60) of feeds into per-day counts and totals.
func (s *EventService) FeedDaily(ctx context.Context, userID uint, days int) ([]utils.FeedDay, error) {
	days = Clamp(days, 1, 60)
	start, notes, err := s.seriesWindow(ctx, userID, models.EventFeed, days)
	if err != nil {
		return nil, err
	}
	return utils.BucketFeeds(notes, start, days), nil
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
