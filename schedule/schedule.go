// Package schedule 定时把注册的模型导出到文件存储
package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/opdss/tablib/contracts/tablib"
	"github.com/opdss/tablib/dataset"
	"github.com/opdss/tablib/export"
	"github.com/opdss/tablib/format"
	"github.com/opdss/tablib/metrics"
	"github.com/robfig/cron/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var ErrSchedule = errs.Class("schedule")

// DefaultLockTTL 锁的过期时间，超过后其他实例可以再次执行
const DefaultLockTTL = 10 * time.Minute

// Job 定时导出任务
type Job struct {
	Name     string            `mapstructure:"name"`
	Spec     string            `mapstructure:"spec"` //标准 cron 表达式，支持 @every 1h
	Model    string            `mapstructure:"model"`
	Format   string            `mapstructure:"format"`
	Filename string            `mapstructure:"filename"` //strftime 格式，默认为任务名
	Encoding string            `mapstructure:"encoding"`
	Zip      bool              `mapstructure:"zip"`
	Filters  map[string]string `mapstructure:"filters"` //同导出接口的过滤参数
}

// Result 一次执行的结果
type Result struct {
	Job      string
	URL      string
	Rows     int
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Builder 按任务生成数据集
type Builder func(ctx context.Context, job Job) (*dataset.Table, error)

type Option func(s *Scheduler)

// WithLogger 设置日志
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithLockers 设置锁，默认进程内锁
func WithLockers(fn LockerFunc) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.lockers = fn
		}
	}
}

// WithLockTTL 设置锁的过期时间
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Scheduler) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithClock 文件名使用的时间
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// Scheduler 定时导出
type Scheduler struct {
	cron    *cron.Cron
	storage tablib.FileStorage
	build   Builder
	lockers LockerFunc
	lockTTL time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu   sync.Mutex
	ctx  context.Context
	jobs map[string]cron.EntryID
	last map[string]Result
}

func New(fs tablib.FileStorage, build Builder, opts ...Option) *Scheduler {
	s := &Scheduler{
		storage: fs,
		build:   build,
		lockers: MemoryLockers(),
		lockTTL: DefaultLockTTL,
		log:     zap.NewNop(),
		now:     time.Now,
		ctx:     context.Background(),
		jobs:    make(map[string]cron.EntryID),
		last:    make(map[string]Result),
	}
	for i := range opts {
		opts[i](s)
	}
	logger := cronLogger{s.log.Sugar()}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return s
}

// Add 添加任务，任务名不能重复
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return ErrSchedule.New("job name is required")
	}
	if _, ok := format.Lookup(job.Format); !ok {
		return ErrSchedule.New("%s: unsupported format %q", job.Name, job.Format)
	}
	if job.Filename == "" {
		job.Filename = job.Name
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.Name]; ok {
		return ErrSchedule.New("%s is already scheduled", job.Name)
	}
	id, err := s.cron.AddFunc(job.Spec, func() {
		_, _ = s.Run(s.context(), job)
	})
	if err != nil {
		return ErrSchedule.New("%s: invalid spec %q: %v", job.Name, job.Spec, err)
	}
	s.jobs[job.Name] = id
	return nil
}

// Jobs 已添加的任务名
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Next 任务下次执行时间，调度未启动时为零值
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Last 任务最近一次执行结果
func (s *Scheduler) Last(name string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.last[name]
	return r, ok
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Run 立即执行一次任务，其他实例持有锁时跳过并返回 ErrLocked
func (s *Scheduler) Run(ctx context.Context, job Job) (res Result, err error) {
	if job.Filename == "" {
		job.Filename = job.Name
	}
	res = Result{Job: job.Name, Started: time.Now()}
	lock := s.lockers(job.Name)
	if err = lock.Lock(s.lockTTL); err != nil {
		s.log.Info("skip locked job", zap.String("job", job.Name), zap.Error(err))
		return res, ErrLocked
	}
	defer func() {
		if uErr := lock.Unlock(); uErr != nil {
			s.log.Warn("unlock job", zap.String("job", job.Name), zap.Error(uErr))
		}
		res.Duration = time.Since(res.Started)
		res.Err = err
		s.metrics.RecordSchedule(job.Name, err)
		s.mu.Lock()
		s.last[job.Name] = res
		s.mu.Unlock()
		if err != nil {
			s.log.Error("scheduled export failed", zap.String("job", job.Name), zap.Error(err))
			return
		}
		s.log.Info("scheduled export",
			zap.String("job", job.Name),
			zap.String("url", res.URL),
			zap.Int("rows", res.Rows),
			zap.Duration("duration", res.Duration))
	}()

	tab, err := s.build(ctx, job)
	if err != nil {
		return res, ErrSchedule.Wrap(err)
	}
	res.Rows = tab.Len()
	opts := []export.Option{
		export.WithFilename(job.Filename),
		export.WithEncoding(job.Encoding),
		export.WithNow(s.now),
	}
	if job.Zip {
		opts = append(opts, export.WithZip())
	}
	e, err := export.New(tab, job.Format, opts...)
	if err != nil {
		return res, ErrSchedule.Wrap(err)
	}
	start := time.Now()
	res.URL, err = e.ExportToStorage(ctx, s.storage)
	s.metrics.RecordExport(job.Model, job.Format, res.Rows, 0, time.Since(start), err)
	if err != nil {
		return res, ErrSchedule.Wrap(err)
	}
	return res, nil
}

// Start 启动调度，ctx 作为任务的上下文
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop 停止调度并等待执行中的任务结束
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsLocked 是否因锁跳过
func IsLocked(err error) bool {
	return errors.Is(err, ErrLocked)
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
