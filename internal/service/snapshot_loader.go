package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/timetab-app/timetab-api/internal/models"
	"github.com/timetab-app/timetab-api/internal/scheduler"
	"github.com/timetab-app/timetab-api/pkg/config"
)

type snapshotLessonRepo interface {
	ListAll(ctx context.Context, institutionID string) ([]models.Lesson, error)
}

type snapshotTeacherRepo interface {
	ListAll(ctx context.Context, institutionID string) ([]models.Teacher, error)
	QualifiedTeachersByLesson(ctx context.Context, institutionID string) (map[string][]string, error)
}

type snapshotRoomRepo interface {
	ListAll(ctx context.Context, institutionID string) ([]models.Room, error)
}

type snapshotTimeSlotRepo interface {
	ListAll(ctx context.Context, institutionID string) ([]models.TimeSlot, error)
}

type snapshotClassGroupRepo interface {
	ListAll(ctx context.Context, institutionID string) ([]models.ClassGroup, error)
}

type snapshotStudyGroupRepo interface {
	ListAll(ctx context.Context, institutionID string) ([]models.StudyGroup, error)
	RosterSizes(ctx context.Context, institutionID string) (map[string]int, error)
}

type snapshotDemandRepo interface {
	ListAll(ctx context.Context, institutionID string) ([]models.LessonDemand, error)
}

type snapshotConstraintRepo interface {
	ListAll(ctx context.Context, institutionID string) ([]models.Constraint, error)
}

// SnapshotLoader assembles the institution-wide snapshot the generator runs
// on. Reads fan out in parallel; an optional Redis cache short-circuits
// repeated loads for the same institution within the TTL.
type SnapshotLoader struct {
	lessons     snapshotLessonRepo
	teachers    snapshotTeacherRepo
	rooms       snapshotRoomRepo
	timeSlots   snapshotTimeSlotRepo
	classGroups snapshotClassGroupRepo
	studyGroups snapshotStudyGroupRepo
	demands     snapshotDemandRepo
	constraints snapshotConstraintRepo

	cache  *redis.Client
	config config.SnapshotConfig
	logger *zap.Logger
}

// NewSnapshotLoader wires the loader. cache may be nil to disable caching.
func NewSnapshotLoader(
	lessons snapshotLessonRepo,
	teachers snapshotTeacherRepo,
	rooms snapshotRoomRepo,
	timeSlots snapshotTimeSlotRepo,
	classGroups snapshotClassGroupRepo,
	studyGroups snapshotStudyGroupRepo,
	demands snapshotDemandRepo,
	constraints snapshotConstraintRepo,
	cache *redis.Client,
	cfg config.SnapshotConfig,
	logger *zap.Logger,
) *SnapshotLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotLoader{
		lessons:     lessons,
		teachers:    teachers,
		rooms:       rooms,
		timeSlots:   timeSlots,
		classGroups: classGroups,
		studyGroups: studyGroups,
		demands:     demands,
		constraints: constraints,
		cache:       cache,
		config:      cfg,
		logger:      logger,
	}
}

func snapshotCacheKey(institutionID string) string {
	return "snapshot:" + institutionID
}

// Load builds (or fetches from cache) the snapshot for one institution.
func (l *SnapshotLoader) Load(ctx context.Context, institutionID string) (*scheduler.Snapshot, error) {
	if snap := l.fromCache(ctx, institutionID); snap != nil {
		return snap, nil
	}

	snap := &scheduler.Snapshot{InstitutionID: institutionID}
	var rawDemands []models.LessonDemand

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Lessons, err = l.lessons.ListAll(gctx, institutionID)
		return err
	})
	g.Go(func() (err error) {
		snap.Teachers, err = l.teachers.ListAll(gctx, institutionID)
		return err
	})
	g.Go(func() (err error) {
		snap.QualifiedTeachers, err = l.teachers.QualifiedTeachersByLesson(gctx, institutionID)
		return err
	})
	g.Go(func() (err error) {
		snap.Rooms, err = l.rooms.ListAll(gctx, institutionID)
		return err
	})
	g.Go(func() (err error) {
		snap.TimeSlots, err = l.timeSlots.ListAll(gctx, institutionID)
		return err
	})
	g.Go(func() (err error) {
		snap.ClassGroups, err = l.classGroups.ListAll(gctx, institutionID)
		return err
	})
	g.Go(func() (err error) {
		snap.StudyGroups, err = l.studyGroups.ListAll(gctx, institutionID)
		return err
	})
	g.Go(func() (err error) {
		snap.StudyGroupSizes, err = l.studyGroups.RosterSizes(gctx, institutionID)
		return err
	})
	g.Go(func() (err error) {
		rawDemands, err = l.demands.ListAll(gctx, institutionID)
		return err
	})
	g.Go(func() (err error) {
		snap.Constraints, err = l.constraints.ListAll(gctx, institutionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	for _, d := range rawDemands {
		group, err := d.Group()
		if err != nil {
			return nil, fmt.Errorf("%w: demand %s: %v", scheduler.ErrIncompleteReferenceData, d.ID, err)
		}
		snap.Demands = append(snap.Demands, scheduler.Demand{LessonID: d.LessonID, Group: group, Count: d.Count})
	}

	snap.Finalize()
	l.toCache(ctx, institutionID, snap)
	return snap, nil
}

// Invalidate drops the cached snapshot after any reference-data write.
func (l *SnapshotLoader) Invalidate(ctx context.Context, institutionID string) {
	if l.cache == nil || !l.config.CacheEnabled {
		return
	}
	if err := l.cache.Del(ctx, snapshotCacheKey(institutionID)).Err(); err != nil {
		l.logger.Warn("snapshot cache invalidation failed", zap.String("institution_id", institutionID), zap.Error(err))
	}
}

func (l *SnapshotLoader) fromCache(ctx context.Context, institutionID string) *scheduler.Snapshot {
	if l.cache == nil || !l.config.CacheEnabled {
		return nil
	}
	payload, err := l.cache.Get(ctx, snapshotCacheKey(institutionID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			l.logger.Warn("snapshot cache read failed", zap.Error(err))
		}
		return nil
	}
	var snap scheduler.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		l.logger.Warn("snapshot cache payload corrupt", zap.Error(err))
		return nil
	}
	snap.Finalize()
	return &snap
}

func (l *SnapshotLoader) toCache(ctx context.Context, institutionID string, snap *scheduler.Snapshot) {
	if l.cache == nil || !l.config.CacheEnabled {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		l.logger.Warn("snapshot cache encode failed", zap.Error(err))
		return
	}
	ttl := l.config.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if err := l.cache.Set(ctx, snapshotCacheKey(institutionID), payload, ttl).Err(); err != nil {
		l.logger.Warn("snapshot cache write failed", zap.Error(err))
	}
}
