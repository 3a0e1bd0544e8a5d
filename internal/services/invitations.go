package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/taskboard-dev/taskboard/internal/access"
	"github.com/taskboard-dev/taskboard/internal/apperr"
	"github.com/taskboard-dev/taskboard/internal/logger"
	"github.com/taskboard-dev/taskboard/internal/models"
	"github.com/taskboard-dev/taskboard/internal/notify"
	"github.com/taskboard-dev/taskboard/internal/realtime"
	"github.com/taskboard-dev/taskboard/internal/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Invitations struct {
	db       *gorm.DB
	gate     *access.Gate
	emitter  realtime.Emitter
	recorder *notify.Recorder
	log      *logger.Logger
}

func NewInvitations(db *gorm.DB, gate *access.Gate, emitter realtime.Emitter, recorder *notify.Recorder, log *logger.Logger) *Invitations {
	return &Invitations{
		db:       db,
		gate:     gate,
		emitter:  emitter,
		recorder: recorder,
		log:      log.Named("invitations"),
	}
}

func (s *Invitations) Create(ctx context.Context, actor Actor, projectID uint, email string) (*models.Invitation, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation("Email is required")
	}

	project, err := s.gate.RequireOwner(ctx, actor.ID, projectID)
	if err != nil {
		return nil, err
	}

	if email == normalizeEmail(actor.Email) {
		return nil, apperr.Validation("You cannot invite yourself")
	}

	var invitee models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&invitee).Error; err != nil {
		return nil, translate(err, "No user with that email exists")
	}

	member, err := s.gate.IsMember(ctx, invitee.ID, projectID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, apperr.Conflict("User is already a member of this project")
	}

	invitation := models.Invitation{
		ProjectID:    projectID,
		InviterID:    actor.ID,
		InviteeEmail: email,
		Status:       models.InvitationPending,
	}

	if err := s.db.WithContext(ctx).Create(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("User has already been invited")
		}
		return nil, err
	}

	invitation.Project = project
	invitation.Inviter = &models.User{BaseModel: models.BaseModel{ID: actor.ID}, Username: actor.Username, Email: actor.Email}

	s.recorder.Record(ctx, notify.Entry{
		RecipientID: invitee.ID,
		SenderID:    uintPtr(actor.ID),
		Type:        models.NotificationInvitation,
		Content:     fmt.Sprintf("%s invited you to join \"%s\"", actor.Username, project.Name),
		ProjectID:   uintPtr(project.ID),
	})
	s.emitter.Emit(realtime.UserChannel(invitee.ID), types.EventNewInvitation, invitation)

	s.log.Info("invitation created", "invitation_id", invitation.ID, "project_id", projectID)
	return &invitation, nil
}

// ListPending returns the invitations addressed to actor that still await
// an answer.
func (s *Invitations) ListPending(ctx context.Context, actor Actor) ([]models.Invitation, error) {
	invitations := []models.Invitation{}

	err := s.db.WithContext(ctx).
		Preload("Project").
		Preload("Inviter").
		Where("invitee_email = ? AND status = ?", normalizeEmail(actor.Email), models.InvitationPending).
		Order("created_at DESC").
		Find(&invitations).Error

	return invitations, err
}

func (s *Invitations) Accept(ctx context.Context, actor Actor, invitationID uint) (*models.Invitation, error) {
	return s.respond(ctx, actor, invitationID, models.InvitationAccepted)
}

func (s *Invitations) Decline(ctx context.Context, actor Actor, invitationID uint) (*models.Invitation, error) {
	return s.respond(ctx, actor, invitationID, models.InvitationDeclined)
}

// respond flips a pending invitation inside one transaction. The row is
// re-read with the pending filter and the update is guarded by the same
// filter, so of two concurrent answers exactly one wins and the other sees
// NotFound.
func (s *Invitations) respond(ctx context.Context, actor Actor, invitationID uint, status models.InvitationStatus) (*models.Invitation, error) {
	var invitation models.Invitation

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND status = ?", invitationID, models.InvitationPending).First(&invitation).Error
		if err != nil {
			return translate(err, "Invitation not found or already answered")
		}

		if !strings.EqualFold(invitation.InviteeEmail, actor.Email) {
			return apperr.Forbidden("This invitation is not addressed to you")
		}

		result := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitationID, models.InvitationPending).
			Update("status", status)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.NotFound("Invitation not found or already answered")
		}

		if status == models.InvitationAccepted {
			membership := models.ProjectMembership{
				ProjectID: invitation.ProjectID,
				UserID:    actor.ID,
				Role:      models.RoleMember,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&membership).Error; err != nil {
				return err
			}
		}

		invitation.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyInviter(ctx, actor, invitation)
	s.log.Info("invitation answered", "invitation_id", invitation.ID, "status", status)

	return &invitation, nil
}

func (s *Invitations) notifyInviter(ctx context.Context, actor Actor, invitation models.Invitation) {
	project, err := s.gate.Project(ctx, invitation.ProjectID)
	if err != nil {
		s.log.Warn("cannot load project for inviter notification", "project_id", invitation.ProjectID, "error", err)
		return
	}
	invitation.Project = project

	kind, verb := models.NotificationInvitationAccepted, "accepted"
	if invitation.Status == models.InvitationDeclined {
		kind, verb = models.NotificationInvitationDeclined, "declined"
	}

	s.recorder.Record(ctx, notify.Entry{
		RecipientID: invitation.InviterID,
		SenderID:    uintPtr(actor.ID),
		Type:        kind,
		Content:     fmt.Sprintf("%s %s your invitation to \"%s\"", actor.Username, verb, project.Name),
		ProjectID:   uintPtr(project.ID),
	})
}
