package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/voxmind/voxmind-backend/internal/config"
	"github.com/voxmind/voxmind-backend/internal/repository"
)

const defaultAudioTTL = 24 * time.Hour

// AudioService keeps uploaded and synthesized audio until it expires and
// purges expired rows on a cron schedule.
type AudioService struct {
	repo     repository.AudioRepository
	ttl      time.Duration
	schedule string
	logger   logrus.FieldLogger

	cron *cron.Cron
	now  func() time.Time
}

func NewAudioService(repo repository.AudioRepository, cfg config.AudioConfig, logger logrus.FieldLogger) *AudioService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultAudioTTL
	}
	return &AudioService{
		repo:     repo,
		ttl:      ttl,
		schedule: cfg.PurgeSchedule,
		logger:   logger,
		now:      time.Now,
	}
}

// Store saves audio that expires after the configured TTL.
func (s *AudioService) Store(ctx context.Context, conversationID uuid.UUID, contentType string, data []byte) (*repository.AudioFile, error) {
	now := s.now()
	audio := &repository.AudioFile{
		ID:          uuid.New(),
		ContentType: contentType,
		Data:        data,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	if conversationID != uuid.Nil {
		audio.ConversationID = uuid.NullUUID{UUID: conversationID, Valid: true}
	}

	if err := s.repo.Save(ctx, audio); err != nil {
		return nil, err
	}
	return audio, nil
}

// Get returns unexpired audio or ErrAudioNotFound.
func (s *AudioService) Get(ctx context.Context, id uuid.UUID) (*repository.AudioFile, error) {
	audio, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio: %w", err)
	}
	if audio == nil {
		return nil, ErrAudioNotFound
	}
	return audio, nil
}

// Purge deletes every expired audio row.
func (s *AudioService) Purge(ctx context.Context) (int64, error) {
	purged, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.WithField("count", purged).Info("Purged expired audio")
	}
	return purged, nil
}

// Start schedules Purge. A blank schedule disables purging.
func (s *AudioService) Start() error {
	if s.schedule == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Purge(context.Background()); err != nil {
			s.logger.WithError(err).Error("Audio purge failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid audio.purge_schedule %q: %w", s.schedule, err)
	}

	s.cron = c
	c.Start()
	s.logger.WithField("schedule", s.schedule).Info("Audio purge scheduled")
	return nil
}

// Stop halts the schedule and waits for a running purge to finish.
func (s *AudioService) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
