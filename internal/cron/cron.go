package cron

import (
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/logging"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/service"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the engine's housekeeping jobs
type Scheduler struct {
	cron    *cron.Cron
	tasks   service.TaskService
	idleTTL time.Duration
	clients func() int
}

// NewScheduler creates a scheduler. clients reports connected websocket
// clients for the stats job and may be nil.
func NewScheduler(tasks service.TaskService, idleTTL time.Duration, clients func() int) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		tasks:   tasks,
		idleTTL: idleTTL,
		clients: clients,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	log := logging.For("cron")

	// Every 5 minutes - drop idle workspace sessions
	if _, err := s.cron.AddFunc("*/5 * * * *", s.evictIdleSessions); err != nil {
		return err
	}

	// Every hour - session stats
	if _, err := s.cron.AddFunc("0 * * * *", s.logStats); err != nil {
		return err
	}

	s.cron.Start()
	log.WithField("idleTTL", s.idleTTL.String()).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logging.For("cron").Info("Scheduler stopped")
}

func (s *Scheduler) evictIdleSessions() {
	evicted := s.tasks.EvictIdle(s.idleTTL)
	if evicted == 0 {
		return
	}
	logging.For("cron").WithFields(map[string]interface{}{
		"evicted":   evicted,
		"remaining": s.tasks.LoadedWorkspaces(),
	}).Info("Evicted idle workspace sessions")
}

func (s *Scheduler) logStats() {
	fields := map[string]interface{}{
		"workspaces": s.tasks.LoadedWorkspaces(),
	}
	if s.clients != nil {
		fields["wsClients"] = s.clients()
	}
	logging.For("cron").WithFields(fields).Info("Session stats")
}
