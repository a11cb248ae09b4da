// Package workqueue is the badgerhold-backed per-platform job queue. One
// store holds three kinds of rows: queue entries (the ordered index a
// worker dequeues from), job records (the payload and status, addressable
// by job ID once dequeued), and rate-limit trackers (last-dequeue time per
// platform). Every public method is a short sequence of badgerhold calls,
// not one transaction; dequeue claims an entry with a find-then-delete
// pair, mirroring the compare-and-delete idiom the teacher uses for its
// own queue.
package workqueue

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/validation-engine/internal/model"
)

// queueEntry is the ordered index a worker scans to find its next job. It
// is deleted as soon as a worker wins the dequeue race; the job payload
// lives on separately in jobRecord so status updates after dequeue don't
// need to touch the index.
type queueEntry struct {
	ID       string         `badgerhold:"key"`
	JobID    string         `badgerhold:"index"`
	Platform model.Platform `badgerhold:"index"`
	Priority int
}

// jobRecord is the addressable, mutable job payload. ExpiresAt is
// recomputed from the job's status every time the record is written, so
// the maintenance sweep can reclaim stale RUNNING rows left behind by a
// worker that died mid-job.
type jobRecord struct {
	JobID     string `badgerhold:"key"`
	Platform  model.Platform
	Job       model.Job
	ExpiresAt time.Time `badgerhold:"index"`
}

type trackerRecord struct {
	Platform model.Platform `badgerhold:"key"`
	At       time.Time
}

// Store is the queue's badgerhold-backed storage layer. All methods are
// safe for concurrent use by multiple platform worker loops.
type Store struct {
	db *badgerhold.Store
}

func NewStore(db *badgerhold.Store) *Store {
	return &Store{db: db}
}

// EnqueueJob inserts both the ordered index row and the job payload. The
// entry ID is timestamp-prefixed so ties within a priority band resolve in
// insertion order — the same FIFO-via-sortable-key trick the teacher's
// queue manager uses for its message IDs.
func (s *Store) EnqueueJob(job model.Job) error {
	now := time.Now()
	jobID := job.JobID.String()
	entryID := fmt.Sprintf("%019d:%s", now.UnixNano(), jobID)

	entry := queueEntry{ID: entryID, JobID: jobID, Platform: job.Platform, Priority: job.Priority}
	if err := s.db.Insert(entryID, &entry); err != nil {
		return fmt.Errorf("workqueue: enqueue index: %w", err)
	}

	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	rec := jobRecord{JobID: jobID, Platform: job.Platform, Job: job, ExpiresAt: now.Add(job.Status.TTL())}
	if err := s.db.Upsert(jobID, &rec); err != nil {
		return fmt.Errorf("workqueue: enqueue payload: %w", err)
	}
	return nil
}

// DequeueJobByPlatform pops the highest-priority, oldest-enqueued job for
// a platform. Returns (nil, false, nil) when the queue is empty, and also
// when another worker's compare-and-delete wins the race on the same
// entry — the caller is expected to poll again rather than treat that as
// an error.
func (s *Store) DequeueJobByPlatform(platform model.Platform) (*model.Job, bool, error) {
	var entries []queueEntry
	if err := s.db.Find(&entries, badgerhold.Where("Platform").Eq(platform)); err != nil {
		return nil, false, fmt.Errorf("workqueue: find entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, false, nil
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].ID < entries[j].ID
	})
	winner := entries[0]

	if err := s.db.Delete(winner.ID, &queueEntry{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("workqueue: claim entry: %w", err)
	}

	var rec jobRecord
	if err := s.db.Get(winner.JobID, &rec); err != nil {
		return nil, false, fmt.Errorf("workqueue: load payload: %w", err)
	}

	rec.Job.Status = model.JobStatusRunning
	rec.ExpiresAt = time.Now().Add(model.JobStatusRunning.TTL())
	if err := s.db.Update(winner.JobID, &rec); err != nil {
		return nil, false, fmt.Errorf("workqueue: mark running: %w", err)
	}

	job := rec.Job
	return &job, true, nil
}

// UpdateJob rewrites a job's payload and status, refreshing its expiry for
// the new status. Called by a worker loop after a job finishes, and by
// anything else that needs to cancel or requeue a job.
func (s *Store) UpdateJob(job model.Job) error {
	rec := jobRecord{
		JobID:     job.JobID.String(),
		Platform:  job.Platform,
		Job:       job,
		ExpiresAt: time.Now().Add(job.Status.TTL()),
	}
	if err := s.db.Upsert(rec.JobID, &rec); err != nil {
		return fmt.Errorf("workqueue: update job: %w", err)
	}
	return nil
}

// ClearQueue drains every queue entry and job payload for a platform. Used
// when an operator needs to cancel all outstanding work for one platform
// without touching the others.
func (s *Store) ClearQueue(platform model.Platform) error {
	if err := s.db.DeleteMatching(&queueEntry{}, badgerhold.Where("Platform").Eq(platform)); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("workqueue: clear entries: %w", err)
	}
	if err := s.db.DeleteMatching(&jobRecord{}, badgerhold.Where("Platform").Eq(platform)); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("workqueue: clear payloads: %w", err)
	}
	return nil
}

// GetRateLimitTracker returns the last time a worker dequeued a job for a
// platform, so the worker loop can pace itself against the platform's
// configured wait time.
func (s *Store) GetRateLimitTracker(platform model.Platform) (time.Time, bool) {
	var rec trackerRecord
	if err := s.db.Get(string(platform), &rec); err != nil {
		return time.Time{}, false
	}
	return rec.At, true
}

func (s *Store) SetRateLimitTracker(platform model.Platform, at time.Time) error {
	rec := trackerRecord{Platform: platform, At: at}
	if err := s.db.Upsert(string(platform), &rec); err != nil {
		return fmt.Errorf("workqueue: set rate limit tracker: %w", err)
	}
	return nil
}

// SweepExpired deletes job payloads whose ExpiresAt has passed — RUNNING
// rows left behind by a worker that crashed mid-job, or PENDING rows whose
// queue entry was cleared without a matching payload cleanup. Queue
// entries have no independent TTL: a job without a payload is simply
// orphaned and skipped by DequeueJobByPlatform's Get failing, so sweeping
// payloads first is sufficient.
func (s *Store) SweepExpired(now time.Time) (int, error) {
	var stale []jobRecord
	if err := s.db.Find(&stale, badgerhold.Where("ExpiresAt").Lt(now)); err != nil {
		return 0, fmt.Errorf("workqueue: find expired: %w", err)
	}
	for _, rec := range stale {
		if err := s.db.Delete(rec.JobID, &jobRecord{}); err != nil && !errors.Is(err, badgerhold.ErrNotFound) {
			return 0, fmt.Errorf("workqueue: delete expired %s: %w", rec.JobID, err)
		}
	}
	return len(stale), nil
}
