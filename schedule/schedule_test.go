package schedule

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opdss/tablib/dataset"
	"github.com/opdss/tablib/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Simple struct {
	ID    uint
	Title string
}

type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memStorage) PutStream(ctx context.Context, filename string, rs io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rs); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filename] = buf.Bytes()
	return nil
}

func (m *memStorage) Url(fileKey string) string {
	return "mem://" + fileKey
}

func (m *memStorage) get(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[name]
	return string(b), ok
}

func newBuilder(t *testing.T) Builder {
	t.Helper()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	require.NoError(t, db.AutoMigrate(&Simple{}))
	require.NoError(t, db.Create(&[]Simple{{Title: "foo"}, {Title: "bar"}}).Error)

	m, err := dataset.ParseModel(&Simple{})
	require.NoError(t, err)
	registry := dataset.NewRegistry()
	registry.Register("app.simple", m)
	return ModelBuilder(db, registry)
}

var clock = func() time.Time {
	return time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
}

func TestRun(t *testing.T) {
	fs := &memStorage{files: map[string][]byte{}}
	m := metrics.New()
	s := New(fs, newBuilder(t), WithClock(clock), WithMetrics(m))

	job := Job{Name: "nightly", Spec: "@daily", Model: "app.simple", Format: "csv", Filename: "reports/simple-%Y%m%d"}
	res, err := s.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "mem://reports/simple-20240304.csv", res.URL)
	assert.Equal(t, 2, res.Rows)

	content, ok := fs.get("reports/simple-20240304.csv")
	require.True(t, ok)
	assert.Equal(t, "id,title\r\n1,foo\r\n2,bar\r\n", content)

	last, ok := s.Last("nightly")
	require.True(t, ok)
	assert.NoError(t, last.Err)

	job.Filters = map[string]string{"title": "bar"}
	job.Filename = ""
	res, err = s.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "mem://nightly.csv", res.URL)
	content, _ = fs.get("nightly.csv")
	assert.Equal(t, "id,title\r\n2,bar\r\n", content)

	_, err = s.Run(context.Background(), Job{Name: "broken", Model: "app.missing", Format: "csv"})
	assert.True(t, ErrSchedule.Has(err))
	last, _ = s.Last("broken")
	assert.Error(t, last.Err)

	n, err := testutil.GatherAndCount(m.Registry(), "tablib_schedule_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRunLocked(t *testing.T) {
	lockers := MemoryLockers()
	fs := &memStorage{files: map[string][]byte{}}
	s := New(fs, newBuilder(t), WithLockers(lockers))

	held := lockers("nightly")
	require.NoError(t, held.Lock(time.Minute))
	_, err := s.Run(context.Background(), Job{Name: "nightly", Model: "app.simple", Format: "json"})
	assert.True(t, IsLocked(err))

	require.NoError(t, held.Unlock())
	res, err := s.Run(context.Background(), Job{Name: "nightly", Model: "app.simple", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, "mem://nightly.json", res.URL)
}

func TestAdd(t *testing.T) {
	s := New(&memStorage{files: map[string][]byte{}}, newBuilder(t))
	require.NoError(t, s.Add(Job{Name: "hourly", Spec: "@every 1h", Model: "app.simple", Format: "xls"}))
	assert.True(t, ErrSchedule.Has(s.Add(Job{Name: "hourly", Spec: "@every 1h", Model: "app.simple", Format: "xls"})))
	assert.True(t, ErrSchedule.Has(s.Add(Job{Name: "bad", Spec: "not a spec", Model: "app.simple", Format: "xls"})))
	assert.True(t, ErrSchedule.Has(s.Add(Job{Name: "pdf", Spec: "@daily", Model: "app.simple", Format: "pdf"})))
	assert.True(t, ErrSchedule.Has(s.Add(Job{Spec: "@daily", Format: "csv"})))
	assert.Equal(t, []string{"hourly"}, s.Jobs())

	s.Start(context.Background())
	next, ok := s.Next("hourly")
	require.True(t, ok)
	assert.False(t, next.IsZero())
	require.NoError(t, s.Stop(context.Background()))
}

func TestMemoryLockers(t *testing.T) {
	lockers := MemoryLockers()
	a, b := lockers("job"), lockers("job")
	require.NoError(t, a.Lock(time.Minute))
	assert.ErrorIs(t, b.Lock(time.Minute), ErrLocked)
	assert.ErrorIs(t, b.TryLock(30*time.Millisecond), ErrLocked)
	assert.ErrorIs(t, b.Unlock(), ErrNotLocked)
	require.NoError(t, a.Unlock())
	require.NoError(t, b.TryLock(time.Second))

	c := lockers("other")
	require.NoError(t, c.Lock(time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, lockers("other").Lock(time.Minute))
}
