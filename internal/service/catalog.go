package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Cator197/checkauto-saas/internal/cache"
	"github.com/Cator197/checkauto-saas/internal/client"
	"github.com/Cator197/checkauto-saas/internal/model"
)

const (
	stageCatalogKey    = "stages:catalog"
	stageHintKeyPrefix = "stages:hint:"
)

// StageCatalog serves the ordered stage list from cache, fetching from
// the backend on a miss. It also keeps per-OS current-stage hints so the
// engine can resolve an advance request without a round trip.
type StageCatalog struct {
	cache  cache.Cache
	client *client.APIClient
	ttl    time.Duration
}

// NewStageCatalog creates a stage catalog backed by the given cache.
func NewStageCatalog(c cache.Cache, api *client.APIClient, ttl time.Duration) *StageCatalog {
	if ttl == 0 {
		ttl = 12 * time.Hour
	}
	return &StageCatalog{cache: c, client: api, ttl: ttl}
}

// Stages returns the ordered stage catalog.
func (s *StageCatalog) Stages(ctx context.Context) ([]model.Stage, error) {
	data, err := s.cache.GetOrSet(ctx, stageCatalogKey, s.ttl, func() ([]byte, error) {
		stages, err := s.client.FetchStages(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch stage catalog: %w", err)
		}
		return json.Marshal(stages)
	})
	if err != nil {
		return nil, err
	}

	var stages []model.Stage
	if err := json.Unmarshal(data, &stages); err != nil {
		return nil, fmt.Errorf("failed to decode cached stage catalog: %w", err)
	}
	return stages, nil
}

// NextStage returns the stage that follows the given stage id in catalog
// order, or nil when the id names the final stage or is unknown.
func (s *StageCatalog) NextStage(ctx context.Context, stageID int64) (*model.Stage, error) {
	stages, err := s.Stages(ctx)
	if err != nil {
		return nil, err
	}

	for i, st := range stages {
		if st.ID == stageID {
			if i+1 < len(stages) {
				next := stages[i+1]
				return &next, nil
			}
			return nil, nil
		}
	}
	return nil, nil
}

// IsFinalStage reports whether the given stage id is the last stage in
// catalog order.
func (s *StageCatalog) IsFinalStage(ctx context.Context, stageID int64) (bool, error) {
	stages, err := s.Stages(ctx)
	if err != nil {
		return false, err
	}
	if len(stages) == 0 {
		return false, nil
	}
	return stages[len(stages)-1].ID == stageID, nil
}

// RememberStage stores the last known current stage for a work order.
func (s *StageCatalog) RememberStage(ctx context.Context, osID string, stageID int64) {
	// Best effort. A lost hint just means one extra fetch later.
	_ = s.cache.Set(ctx, stageHintKeyPrefix+osID, []byte(strconv.FormatInt(stageID, 10)), s.ttl)
}

// StageHint returns the last remembered current stage for a work order,
// or false when no hint is cached.
func (s *StageCatalog) StageHint(ctx context.Context, osID string) (int64, bool) {
	data, err := s.cache.Get(ctx, stageHintKeyPrefix+osID)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ForgetStage drops the cached stage hint for a work order.
func (s *StageCatalog) ForgetStage(ctx context.Context, osID string) {
	_ = s.cache.Delete(ctx, stageHintKeyPrefix+osID)
}
