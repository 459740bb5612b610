package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisc "github.com/decidepage/core/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
)

// Status represents the lifecycle state of a generation run.
type Status string

const (
	RunRunning   Status = "running"
	RunCompleted Status = "completed"
	RunFailed    Status = "failed"
	RunCancelled Status = "cancelled"
)

// Kind identifies what a run produces.
type Kind string

const (
	KindGenerate Kind = "generate"
	KindRender   Kind = "render"
)

// Run is the progress record for one streaming page generation, kept in
// Redis so operators can inspect in-flight and recent work.
type Run struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	OwnerType string    `json:"owner_type"`
	OwnerID   string    `json:"owner_id"`
	Stage     string    `json:"stage"`
	Percent   int       `json:"percent"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	keyPrefix = "dp:run:"
	keyIndex  = "dp:runs:index"  // sorted set: score=created_at ms, member=run_id
	keyActive = "dp:runs:active" // hash: owner_type:owner_id -> run_id
	runTTL    = 24 * time.Hour
)

// Registry tracks generation runs in Redis.
type Registry struct {
	rc *redisc.Client
}

func NewRegistry(rc *redisc.Client) *Registry {
	return &Registry{rc: rc}
}

func (r *Registry) runKey(id string) string { return keyPrefix + id }

func ownerKey(ownerType, ownerID string) string {
	return ownerType + ":" + ownerID
}

// Begin records a new running run for the owner. Only one run per owner may
// be active at a time; a second Begin for the same owner fails.
func (r *Registry) Begin(ctx context.Context, kind Kind, ownerType, ownerID string) (*Run, error) {
	ok, err := r.rc.Raw().HSetNX(ctx, keyActive, ownerKey(ownerType, ownerID), "").Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("a run is already active for %s/%s", ownerType, ownerID)
	}

	run := &Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		OwnerType: ownerType,
		OwnerID:   ownerID,
		Status:    RunRunning,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	data, err := json.Marshal(run)
	if err != nil {
		return nil, err
	}

	pipe := r.rc.Raw().TxPipeline()
	pipe.Set(ctx, r.runKey(run.ID), data, runTTL)
	pipe.ZAdd(ctx, keyIndex, redis.Z{
		Score:  float64(run.CreatedAt.UnixMilli()),
		Member: run.ID,
	})
	pipe.HSet(ctx, keyActive, ownerKey(ownerType, ownerID), run.ID)
	pipe.Expire(ctx, keyActive, runTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return run, nil
}

// GetByID retrieves a run by its ID. Returns (nil, nil) when absent.
func (r *Registry) GetByID(ctx context.Context, id string) (*Run, error) {
	data, err := r.rc.Raw().Get(ctx, r.runKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var run Run
	return &run, json.Unmarshal(data, &run)
}

// Progress updates the stage and percent of a running run.
func (r *Registry) Progress(ctx context.Context, id, stage string, percent int) error {
	run, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run not found")
	}

	run.Stage = stage
	run.Percent = percent
	run.UpdatedAt = time.Now()
	return r.save(ctx, run)
}

// Finish moves a run to a terminal status and releases the owner's active slot.
func (r *Registry) Finish(ctx context.Context, id string, status Status, errMsg string) error {
	run, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run not found")
	}

	run.Status = status
	run.Error = errMsg
	run.UpdatedAt = time.Now()
	if status == RunCompleted {
		run.Percent = 100
	}

	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	pipe := r.rc.Raw().TxPipeline()
	pipe.Set(ctx, r.runKey(id), data, runTTL)
	pipe.HDel(ctx, keyActive, ownerKey(run.OwnerType, run.OwnerID))
	_, err = pipe.Exec(ctx)
	return err
}

// List returns runs ordered by creation time descending, with optional status filter.
func (r *Registry) List(ctx context.Context, page, size int, status *Status) ([]*Run, int64, error) {
	ids, err := r.rc.Raw().ZRevRange(ctx, keyIndex, 0, -1).Result()
	if err != nil {
		return nil, 0, err
	}

	var out []*Run
	for _, id := range ids {
		run, err := r.GetByID(ctx, id)
		if err != nil || run == nil {
			continue
		}
		if status != nil && run.Status != *status {
			continue
		}
		out = append(out, run)
	}

	total := int64(len(out))
	start := (page - 1) * size
	end := start + size
	if start >= len(out) {
		return []*Run{}, total, nil
	}
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

// PruneFinished removes terminal runs created before the given cutoff (ms).
// A cutoff of 0 removes all terminal runs.
func (r *Registry) PruneFinished(ctx context.Context, beforeMS int64) error {
	ids, _ := r.rc.Raw().ZRange(ctx, keyIndex, 0, -1).Result()
	pipe := r.rc.Raw().TxPipeline()
	for _, id := range ids {
		run, err := r.GetByID(ctx, id)
		if err != nil || run == nil {
			continue
		}
		if run.Status == RunRunning {
			continue
		}
		if beforeMS > 0 && run.CreatedAt.UnixMilli() >= beforeMS {
			continue
		}
		pipe.Del(ctx, r.runKey(id))
		pipe.ZRem(ctx, keyIndex, id)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Registry) save(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return r.rc.Raw().Set(ctx, r.runKey(run.ID), data, runTTL).Err()
}
