package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTick 작업 실행 여부를 확인하는 기본 주기
const DefaultTick = 30 * time.Second

// Task 등록된 주기적 작업
type Task struct {
	Name      string
	Interval  time.Duration
	Handler   func(ctx context.Context) error
	LastRun   time.Time
	NextRun   time.Time
	RunCount  int64
	LastError error
}

// Scheduler in-process periodic task runner
type Scheduler struct {
	tasks  []*Task
	tick   time.Duration
	mu     sync.RWMutex
	logger zerolog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 스케줄러 생성. tick이 0 이하이면 DefaultTick 사용
func New(tick time.Duration, logger zerolog.Logger) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{
		tasks:  make([]*Task, 0),
		tick:   tick,
		logger: logger,
	}
}

// Register 주기적 작업 등록
func (s *Scheduler) Register(name string, interval time.Duration, handler func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &Task{
		Name:     name,
		Interval: interval,
		Handler:  handler,
		NextRun:  time.Now().Add(interval),
	})

	s.logger.Info().Str("task", name).Dur("interval", interval).Msg("scheduled task registered")
}

// Start 스케줄러 시작 (백그라운드 goroutine)
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.runDue(ctx, now)
			}
		}
	}()
	s.logger.Info().Msg("scheduler started")
}

// Stop 스케줄러 중지. 실행 중인 작업이 끝날 때까지 대기
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// runDue 실행 대상 작업 체크 및 실행
func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	s.mu.RLock()
	tasks := make([]*Task, len(s.tasks))
	copy(tasks, s.tasks)
	s.mu.RUnlock()

	for _, task := range tasks {
		if now.Before(task.NextRun) {
			continue
		}

		err := task.Handler(ctx)
		if err != nil {
			s.logger.Error().Err(err).Str("task", task.Name).Msg("scheduled task failed")
		}

		s.mu.Lock()
		task.LastError = err
		task.LastRun = now
		task.NextRun = now.Add(task.Interval)
		task.RunCount++
		s.mu.Unlock()
	}
}

// TaskInfo 작업 정보 (JSON 응답용)
type TaskInfo struct {
	Name      string    `json:"name"`
	Interval  string    `json:"interval"`
	LastRun   time.Time `json:"last_run"`
	NextRun   time.Time `json:"next_run"`
	RunCount  int64     `json:"run_count"`
	LastError *string   `json:"last_error,omitempty"`
}

// Tasks 등록된 작업 목록 조회 (모니터링용)
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := TaskInfo{
			Name:     t.Name,
			Interval: t.Interval.String(),
			LastRun:  t.LastRun,
			NextRun:  t.NextRun,
			RunCount: t.RunCount,
		}
		if t.LastError != nil {
			errMsg := t.LastError.Error()
			info.LastError = &errMsg
		}
		result = append(result, info)
	}
	return result
}
