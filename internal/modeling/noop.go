package modeling

import (
	"context"
	"time"
)

// noopPersister and noopCache stand in when no external store/cache is
// configured (memory-only mode).

type noopPersister struct{}

func (noopPersister) CreateJob(context.Context, string, []string, string, int, time.Time) error {
	return nil
}
func (noopPersister) UpdateStatus(context.Context, string, string, string) error { return nil }
func (noopPersister) SaveResult(context.Context, string, any) error              { return nil }
func (noopPersister) DeleteJob(context.Context, string) (bool, error)            { return false, nil }

type noopCache struct{}

func (noopCache) SaveJob(context.Context, string, any) error          { return nil }
func (noopCache) LoadJob(context.Context, string, any) (bool, error)  { return false, nil }
func (noopCache) DeleteJob(context.Context, string) error             { return nil }
