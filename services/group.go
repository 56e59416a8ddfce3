package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wabridge/whatsapp-mcp/models"
)

func validateGroupID(groupID string) error {
	if !strings.HasSuffix(groupID, groupSuffix) {
		return fmt.Errorf("%w: group id must end with %s", ErrInvalidIdentifier, groupSuffix)
	}
	return nil
}

func validateParticipantID(participantID string) error {
	if !strings.HasSuffix(participantID, userSuffix) {
		return fmt.Errorf("%w: participant id must end with %s", ErrInvalidIdentifier, userSuffix)
	}
	return nil
}

// CreateGroup creates a group with the given participant phone numbers.
func (s *Service) CreateGroup(ctx context.Context, sessionID, name string, participants []string) (models.Group, error) {
	client, err := s.resolve(sessionID)
	if err != nil {
		return models.Group{}, err
	}

	if name == "" {
		return models.Group{}, fmt.Errorf("group_name is required")
	}
	if len(participants) < 1 {
		return models.Group{}, fmt.Errorf("need at least one participant to create a group")
	}

	group, err := client.CreateGroup(ctx, name, participants)
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to create group: %w", err)
	}

	if group.ID == "" {
		group.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12] + groupSuffix
	}
	if group.Name == "" {
		group.Name = name
	}
	if group.Owner == "" {
		group.Owner = "me"
	}
	if group.CreationTime.IsZero() {
		group.CreationTime = time.Now().UTC()
	}

	if s.store != nil {
		if err := s.store.StoreChat(ctx, models.Chat{
			ID:               group.ID,
			Name:             group.Name,
			IsGroup:          true,
			ParticipantCount: len(group.Participants),
		}); err != nil {
			log.Printf("failed to cache group chat %s: %v", group.ID, err)
		}
	}

	log.Printf("group %s created with %d participants", group.ID, len(group.Participants))
	return group, nil
}

// GetGroupParticipants returns the members of a group in gateway order,
// admin flags preserved.
func (s *Service) GetGroupParticipants(ctx context.Context, sessionID, groupID string) ([]models.Participant, error) {
	client, err := s.resolve(sessionID)
	if err != nil {
		return nil, err
	}

	if err := validateGroupID(groupID); err != nil {
		return nil, err
	}

	participants, err := client.GetGroupParticipants(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get group participants: %w", err)
	}
	return participants, nil
}

// AddParticipant adds a contact to a group.
func (s *Service) AddParticipant(ctx context.Context, sessionID, groupID, participantID string) (bool, error) {
	client, err := s.resolve(sessionID)
	if err != nil {
		return false, err
	}

	if err := validateGroupID(groupID); err != nil {
		return false, err
	}
	if err := validateParticipantID(participantID); err != nil {
		return false, err
	}

	if err := client.AddParticipant(ctx, groupID, participantID); err != nil {
		return false, fmt.Errorf("failed to add participant: %w", err)
	}
	return true, nil
}

// RemoveParticipant removes a contact from a group.
func (s *Service) RemoveParticipant(ctx context.Context, sessionID, groupID, participantID string) (bool, error) {
	client, err := s.resolve(sessionID)
	if err != nil {
		return false, err
	}

	if err := validateGroupID(groupID); err != nil {
		return false, err
	}
	if err := validateParticipantID(participantID); err != nil {
		return false, err
	}

	if err := client.RemoveParticipant(ctx, groupID, participantID); err != nil {
		return false, fmt.Errorf("failed to remove participant: %w", err)
	}
	return true, nil
}

// UpdateGroupSettings updates the group name and/or description; at
// least one must be provided.
func (s *Service) UpdateGroupSettings(ctx context.Context, sessionID, groupID string, name, description *string) (bool, error) {
	client, err := s.resolve(sessionID)
	if err != nil {
		return false, err
	}

	if err := validateGroupID(groupID); err != nil {
		return false, err
	}
	if name == nil && description == nil {
		return false, fmt.Errorf("must provide at least one setting to update")
	}

	if name != nil {
		if err := client.SetGroupName(ctx, groupID, *name); err != nil {
			return false, fmt.Errorf("failed to update group name: %w", err)
		}
	}
	if description != nil {
		if err := client.SetGroupDescription(ctx, groupID, *description); err != nil {
			return false, fmt.Errorf("failed to update group description: %w", err)
		}
	}
	return true, nil
}
