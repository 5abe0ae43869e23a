package collab

import (
	"context"
	"strings"

	"collabhub/internal/domain"
	collabsdk "collabhub/sdk/go"
)

const keyHubs = "hubs"

func (s *Store) LoadHubs(ctx context.Context) ([]domain.Hub, error) {
	return load(ctx, s, SlotHubs, keyHubs, s.api.ListHubs, func(st *State, hubs []domain.Hub) {
		st.Hubs = hubs
	})
}

// LoadHub fetches one hub and makes it the current selection.
func (s *Store) LoadHub(ctx context.Context, id string) (domain.Hub, error) {
	if id == "" {
		return domain.Hub{}, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return load(ctx, s, SlotHubs, cacheKey("hub", id), func(ctx context.Context) (domain.Hub, error) {
		return s.api.GetHub(ctx, id)
	}, func(st *State, h domain.Hub) {
		st.Hubs = replace(st.Hubs, h, hubKey)
		st.CurrentHub = &h
	})
}

func (s *Store) CreateHub(ctx context.Context, in collabsdk.CreateHubInput) (domain.Hub, error) {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Hub{}, s.fail(SlotValidation, validationf("hub name is required"))
	}
	return mutate(ctx, s, SlotHubs, func(ctx context.Context) (domain.Hub, error) {
		return s.api.CreateHub(ctx, in)
	}, func(st *State, h domain.Hub) {
		st.Hubs = upsert(st.Hubs, h, hubKey)
		st.CurrentHub = &h
	}, keyHubs)
}

func (s *Store) UpdateHub(ctx context.Context, id string, in collabsdk.UpdateHubInput) (domain.Hub, error) {
	if id == "" {
		return domain.Hub{}, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return mutate(ctx, s, SlotHubs, func(ctx context.Context) (domain.Hub, error) {
		return s.api.UpdateHub(ctx, id, in)
	}, func(st *State, h domain.Hub) {
		st.Hubs = replace(st.Hubs, h, hubKey)
		if st.CurrentHub != nil && st.CurrentHub.ID == h.ID {
			st.CurrentHub = &h
		}
	}, keyHubs, cacheKey("hub", id))
}

func (s *Store) DeleteHub(ctx context.Context, id string) error {
	if id == "" {
		return s.fail(SlotValidation, validationf("hub id is required"))
	}
	_, err := mutate(ctx, s, SlotHubs, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.DeleteHub(ctx, id)
	}, func(st *State, _ struct{}) {
		st.Hubs = without(st.Hubs, id, hubKey)
		if st.CurrentHub != nil && st.CurrentHub.ID == id {
			st.CurrentHub = nil
		}
	}, keyHubs, cacheKey("hub", id))
	return err
}

// JoinHub adds the caller to a hub. The member count changes server side,
// so cached hub reads are dropped.
func (s *Store) JoinHub(ctx context.Context, id string) (domain.TeamMember, error) {
	if id == "" {
		return domain.TeamMember{}, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return mutate(ctx, s, SlotHubs, func(ctx context.Context) (domain.TeamMember, error) {
		return s.api.JoinHub(ctx, id)
	}, func(st *State, m domain.TeamMember) {
		if st.CurrentHub != nil && st.CurrentHub.ID == id {
			st.TeamMembers = upsert(st.TeamMembers, m, memberKey)
		}
	}, keyHubs, cacheKey("hub", id), cacheKey("members", id))
}

func (s *Store) LeaveHub(ctx context.Context, id string) error {
	if id == "" {
		return s.fail(SlotValidation, validationf("hub id is required"))
	}
	_, err := mutate(ctx, s, SlotHubs, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.LeaveHub(ctx, id)
	}, func(st *State, _ struct{}) {
		if s.opts.ActorID == "" {
			return
		}
		kept := st.TeamMembers[:0:0]
		for _, m := range st.TeamMembers {
			if m.HubID == id && m.ActorID == s.opts.ActorID {
				continue
			}
			kept = append(kept, m)
		}
		st.TeamMembers = kept
	}, keyHubs, cacheKey("hub", id), cacheKey("members", id))
	return err
}

func (s *Store) LoadTeamMembers(ctx context.Context, hubID string) ([]domain.TeamMember, error) {
	if hubID == "" {
		return nil, s.fail(SlotValidation, validationf("hub id is required"))
	}
	return load(ctx, s, SlotMembers, cacheKey("members", hubID), func(ctx context.Context) ([]domain.TeamMember, error) {
		return s.api.ListMembers(ctx, hubID)
	}, func(st *State, members []domain.TeamMember) {
		st.TeamMembers = members
	})
}

func (s *Store) AddTeamMember(ctx context.Context, hubID string, in collabsdk.AddMemberInput) (domain.TeamMember, error) {
	if hubID == "" || in.ActorID == "" {
		return domain.TeamMember{}, s.fail(SlotValidation, validationf("hub id and actor id are required"))
	}
	return mutate(ctx, s, SlotMembers, func(ctx context.Context) (domain.TeamMember, error) {
		return s.api.AddMember(ctx, hubID, in)
	}, func(st *State, m domain.TeamMember) {
		st.TeamMembers = upsert(st.TeamMembers, m, memberKey)
	}, cacheKey("members", hubID), keyHubs, cacheKey("hub", hubID))
}

func (s *Store) UpdateTeamMember(ctx context.Context, id string, in collabsdk.UpdateMemberInput) (domain.TeamMember, error) {
	if id == "" {
		return domain.TeamMember{}, s.fail(SlotValidation, validationf("member id is required"))
	}
	return mutate(ctx, s, SlotMembers, func(ctx context.Context) (domain.TeamMember, error) {
		return s.api.UpdateMember(ctx, id, in)
	}, func(st *State, m domain.TeamMember) {
		st.TeamMembers = replace(st.TeamMembers, m, memberKey)
	}, s.memberKeys(id)...)
}

func (s *Store) RemoveTeamMember(ctx context.Context, hubID, id string) error {
	if id == "" {
		return s.fail(SlotValidation, validationf("member id is required"))
	}
	_, err := mutate(ctx, s, SlotMembers, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.api.RemoveMember(ctx, id)
	}, func(st *State, _ struct{}) {
		st.TeamMembers = without(st.TeamMembers, id, memberKey)
	}, cacheKey("members", hubID), keyHubs, cacheKey("hub", hubID))
	return err
}

func (s *Store) AssignRole(ctx context.Context, id, role string) (domain.TeamMember, error) {
	if id == "" || role == "" {
		return domain.TeamMember{}, s.fail(SlotValidation, validationf("member id and role are required"))
	}
	return mutate(ctx, s, SlotMembers, func(ctx context.Context) (domain.TeamMember, error) {
		return s.api.AssignRole(ctx, id, role)
	}, func(st *State, m domain.TeamMember) {
		st.TeamMembers = replace(st.TeamMembers, m, memberKey)
	}, s.memberKeys(id)...)
}

// memberKeys returns the member list cache key of the hub holding member id.
func (s *Store) memberKeys(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.state.TeamMembers {
		if m.ID == id {
			return []string{cacheKey("members", m.HubID)}
		}
	}
	return nil
}
