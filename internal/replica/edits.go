package replica

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitlive/internal/assign"
	"github.com/mmynk/splitlive/internal/common"
	"github.com/mmynk/splitlive/internal/models"
	"github.com/mmynk/splitlive/pkg/api"
)

// Claim toggles the replica's own share in scope.
func (r *Replica) Claim(scope models.Scope, quantity float64, assigned bool) error {
	return r.ClaimFor(r.participantID, scope, quantity, assigned)
}

// ClaimFor toggles participantID's share in scope. Claiming for someone
// else needs the owner token.
func (r *Replica) ClaimFor(participantID string, scope models.Scope, quantity float64, assigned bool) error {
	return r.mutate(mutation{
		name:     "assign " + scope.Key(),
		editable: true,
		apply: func(s *models.Session) error {
			if err := assign.Assign(s, scope, participantID, quantity, assigned); err != nil {
				return err
			}
			return assign.CheckCapacity(s, scope.ItemID)
		},
		send: func(ctx context.Context) error {
			_, err := r.backend.Assign(ctx, request(r, &api.AssignRequest{
				SessionID:     r.sessionID,
				ItemID:        scope.Key(),
				ParticipantID: participantID,
				Quantity:      quantity,
				IsAssigned:    assigned,
				UpdatedBy:     r.participantID,
			}))
			return err
		},
	})
}

// ClaimAll assigns everyone to a grupal scope, or clears it.
func (r *Replica) ClaimAll(scope models.Scope, assigned bool) error {
	return r.mutate(mutation{
		name:     "assign all " + scope.Key(),
		editable: true,
		apply: func(s *models.Session) error {
			return assign.AssignAll(s, scope, assigned)
		},
		send: func(ctx context.Context) error {
			_, err := r.backend.AssignAll(ctx, request(r, &api.AssignAllRequest{
				SessionID:  r.sessionID,
				ItemID:     scope.Key(),
				IsAssigned: assigned,
				UpdatedBy:  r.participantID,
			}))
			return err
		},
	})
}

// SwitchMode moves an item to another split mode. The server applies the
// save, clear and restore steps in one call; locally the same rules run so
// the view matches what the next poll will bring.
func (r *Replica) SwitchMode(itemID string, mode models.SplitMode) error {
	return r.mutate(mutation{
		name:     "mode " + itemID,
		editable: true,
		apply: func(s *models.Session) error {
			if err := assign.SwitchMode(s, itemID, mode); err != nil {
				return err
			}
			return assign.CheckCapacity(s, itemID)
		},
		send: func(ctx context.Context) error {
			_, err := r.backend.SetItemMode(ctx, request(r, &api.SetItemModeRequest{
				SessionID: r.sessionID,
				ItemID:    itemID,
				Mode:      string(mode),
				UpdatedBy: r.participantID,
			}))
			return err
		},
	})
}

// SetUnitClaimants makes participantIDs the exact member set of one unit of
// a "por unidad" item. On the server this is two batches of assign calls:
// every removal first, then every addition. The additions wait for the
// removals, and the lock window restarts after each batch.
func (r *Replica) SetUnitClaimants(itemID string, unit int, participantIDs []string) error {
	scope := models.UnitScope(itemID, unit)
	// The batches are planned against the view the edit was made on;
	// replays only reapply the resulting member set.
	var removed, added []string
	planned := false

	return r.mutate(mutation{
		name:     "claimants " + scope.Key(),
		editable: true,
		apply: func(s *models.Session) error {
			item := s.Item(itemID)
			if item == nil {
				return common.NotFoundf("item %s", itemID)
			}
			if item.SplitMode() != models.SplitUnit {
				return common.Invalidf("item %s is not split per unit", itemID)
			}
			toRemove, toAdd := diffMembers(assign.Members(s.Assignments, scope), participantIDs)
			if !planned {
				removed, added, planned = toRemove, toAdd, true
			}

			for _, id := range toRemove {
				if err := assign.Assign(s, scope, id, 0, false); err != nil {
					return err
				}
			}
			for _, id := range toAdd {
				if err := assign.Assign(s, scope, id, 1, true); err != nil {
					return err
				}
			}
			return nil
		},
		send: func(ctx context.Context) error {
			if err := r.assignBatch(ctx, scope, removed, false); err != nil {
				return err
			}
			r.touchLock()
			if err := r.assignBatch(ctx, scope, added, true); err != nil {
				return err
			}
			r.touchLock()
			return nil
		},
	})
}

// diffMembers returns who leaves current and who joins it to become want,
// in order.
func diffMembers(current, want []string) (removed, added []string) {
	wanted := make(map[string]bool, len(want))
	for _, id := range want {
		wanted[id] = true
	}
	have := make(map[string]bool, len(current))
	for _, id := range current {
		have[id] = true
		if !wanted[id] {
			removed = append(removed, id)
		}
	}
	for _, id := range want {
		if !have[id] {
			added = append(added, id)
			have[id] = true
		}
	}
	return removed, added
}

// assignBatch sends one assign call per participant concurrently and waits
// for all of them.
func (r *Replica) assignBatch(ctx context.Context, scope models.Scope, participantIDs []string, assigned bool) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range participantIDs {
		g.Go(func() error {
			_, err := r.backend.Assign(gctx, request(r, &api.AssignRequest{
				SessionID:     r.sessionID,
				ItemID:        scope.Key(),
				ParticipantID: id,
				Quantity:      1,
				IsAssigned:    assigned,
				UpdatedBy:     r.participantID,
			}))
			return err
		})
	}
	return g.Wait()
}

// Rename changes the replica participant's display name. Allowed while
// finalized.
func (r *Replica) Rename(name string) error {
	pid := r.participantID
	return r.mutate(mutation{
		name: "rename",
		apply: func(s *models.Session) error {
			p := s.Participant(pid)
			if p == nil {
				return common.NotFoundf("participant %s", pid)
			}
			v := common.NewValidator().Required("name", name)
			if err := v.Err(); err != nil {
				return err
			}
			p.Name = name
			return nil
		},
		send: func(ctx context.Context) error {
			_, err := r.backend.UpdateParticipant(ctx, request(r, &api.UpdateParticipantRequest{
				SessionID:     r.sessionID,
				ParticipantID: pid,
				Name:          &name,
				UpdatedBy:     pid,
			}))
			return err
		},
	})
}
