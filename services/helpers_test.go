package services

import (
	"sync"
	"testing"
	"time"

	"github.com/sandor-zhong/baby-chengcheng/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testZone = time.FixedZone("UTC+8", 8*3600)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 10, 10, 0, 0, 0, testZone)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newTestDB opens a private in-memory database with the schema applied.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type published struct {
	userID uint
	kind   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []published
}

func (n *recordingNotifier) Publish(userID uint, kind string, _ any) {
	n.mu.Lock()
	n.msgs = append(n.msgs, published{userID, kind})
	n.mu.Unlock()
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	for i, m := range n.msgs {
		out[i] = m.kind
	}
	return out
}

var testLog = zap.NewNop()
