package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler управляет запланированными задачами
type Scheduler struct {
	cron   *cron.Cron
	loc    *time.Location
	ctx    context.Context
	cancel context.CancelFunc
}

// New создает новый планировщик, расписания считаются в loc
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		loc:    loc,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob регистрирует задачу по cron-выражению (5 полей)
func (s *Scheduler) AddJob(spec, name string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		log.Printf("🕘 Triggered %s (%s %s)", name, spec, s.loc)
		if err := job(s.ctx); err != nil {
			log.Printf("❌ %s failed: %v", name, err)
		}
	})
	return err
}

// Start запускает планировщик
func (s *Scheduler) Start() {
	if len(s.cron.Entries()) == 0 {
		log.Println("⚠️ No jobs registered, scheduler will stay idle")
		return
	}
	s.cron.Start()
	log.Printf("📅 Scheduler started with %d job(s)", len(s.cron.Entries()))
}

// Stop останавливает планировщик
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

// IsRunning проверяет, есть ли зарегистрированные задачи
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}

// Next возвращает время ближайшего запуска
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}
