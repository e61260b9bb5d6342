// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ads

import (
	"context"
	"sync"
)

// Preload loads every placement concurrently and returns the outcome per
// unit ID. Later duplicates of an ID supersede earlier ones.
func (c *Controller) Preload(ctx context.Context, placements []Placement) map[string]bool {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]bool, len(placements))
	)

	for _, p := range placements {
		wg.Add(1)
		go func(p Placement) {
			defer wg.Done()
			loaded := c.Load(ctx, p.ID, p.Type)

			mu.Lock()
			results[p.ID] = results[p.ID] || loaded
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return results
}
