package service

import (
	"context"
	"errors"
	"fmt"

	"aquafarm"
	"aquafarm/internal/repository"
)

// ErrThresholdNotFound means no automation is configured for the (species,
// growth stage, sensor type) triple. Callers treat it as a skip, not a fault.
var ErrThresholdNotFound = errors.New("threshold not configured")

// ErrMisconfiguredThreshold flags a band with min >= max. Primary validation
// belongs to the administrative layer; this is a defensive evaluation-time
// reject.
var ErrMisconfiguredThreshold = errors.New("threshold misconfigured: min >= max")

type ThresholdService struct {
	thresholdRepo repository.ThresholdRepo
}

func NewThresholdService(thresholdRepo repository.ThresholdRepo) *ThresholdService {
	return &ThresholdService{thresholdRepo: thresholdRepo}
}

// Lookup resolves the applicable band. Pure read, no side effects.
func (s *ThresholdService) Lookup(ctx context.Context, speciesID, growthStageID, sensorTypeID int) (aquafarm.SpeciesThreshold, error) {
	t, err := s.thresholdRepo.Lookup(ctx, speciesID, growthStageID, sensorTypeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return aquafarm.SpeciesThreshold{}, ErrThresholdNotFound
		}
		return aquafarm.SpeciesThreshold{}, fmt.Errorf("lookup threshold (%d,%d,%d): %w", speciesID, growthStageID, sensorTypeID, err)
	}
	if t.Min >= t.Max {
		return aquafarm.SpeciesThreshold{}, ErrMisconfiguredThreshold
	}
	return t, nil
}
