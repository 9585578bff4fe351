package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

const ChannelSMS = "sms"

// NotifyResult reports what happened to one notification. A zero Sent always
// comes with a Reason.
type NotifyResult struct {
	Sent          int         `json:"sent"`
	Reason        string      `json:"reason,omitempty"`
	Channel       string      `json:"channel"`
	MessageID     string      `json:"message_id,omitempty"`
	RecipientRole models.Role `json:"recipient_role"`
	EmailSent     bool        `json:"email_sent,omitempty"`
}

// NotificationService tells the other party about a turn transition. It is
// always called after the transition committed and never returns an error.
type NotificationService interface {
	Notify(ctx context.Context, turnID uuid.UUID, kind models.NotificationKind) *NotifyResult
}

type notificationService struct {
	cfg        *config.Config
	turns      repositories.TurnRepository
	properties repositories.PropertyRepository
	cleaners   repositories.CleanerRepository
	managers   repositories.ManagerRepository
	attempts   repositories.NotificationAttemptRepository
	sms        SMSGateway
	email      EmailSender
	catalog    *messageCatalog
	now        func() time.Time
}

func NewNotificationService(
	cfg *config.Config,
	turns repositories.TurnRepository,
	properties repositories.PropertyRepository,
	cleaners repositories.CleanerRepository,
	managers repositories.ManagerRepository,
	attempts repositories.NotificationAttemptRepository,
	sms SMSGateway,
	email EmailSender,
) (NotificationService, error) {
	catalog, err := loadMessageCatalog()
	if err != nil {
		return nil, err
	}
	return &notificationService{
		cfg:        cfg,
		turns:      turns,
		properties: properties,
		cleaners:   cleaners,
		managers:   managers,
		attempts:   attempts,
		sms:        sms,
		email:      email,
		catalog:    catalog,
		now:        time.Now,
	}, nil
}

// recipient is the resolved addressee of a notification.
type recipient struct {
	id      uuid.UUID
	name    string
	email   string
	contact models.SMSContact
}

func (s *notificationService) Notify(ctx context.Context, turnID uuid.UUID, kind models.NotificationKind) *NotifyResult {
	res := &NotifyResult{Channel: ChannelSMS, RecipientRole: kind.RecipientRole()}
	var recipientID *uuid.UUID
	defer func() {
		s.record(ctx, turnID, kind, recipientID, res)
	}()

	turn, err := s.turns.GetByID(ctx, turnID)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Notify %s: failed to load turn %s", kind, turnID)
		res.Reason = models.ReasonLookupFailed
		return res
	}
	if turn == nil {
		res.Reason = models.ReasonNoRecipient
		return res
	}
	prop, err := s.properties.GetByID(ctx, turn.PropertyID)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Notify %s: failed to load property %s", kind, turn.PropertyID)
		res.Reason = models.ReasonLookupFailed
		return res
	}
	cleaner, err := s.cleaners.GetByID(ctx, turn.CleanerID)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Notify %s: failed to load cleaner %s", kind, turn.CleanerID)
		res.Reason = models.ReasonLookupFailed
		return res
	}

	var to *recipient
	if res.RecipientRole == models.RoleManager {
		to, err = s.resolveManager(ctx, turn, prop)
	} else if cleaner != nil {
		to = &recipient{id: cleaner.ID, name: cleaner.DisplayName, contact: cleaner.SMSContact}
	}
	if err != nil {
		utils.Logger.WithError(err).Warnf("Notify %s: manager lookup failed for turn %s", kind, turnID)
		res.Reason = models.ReasonLookupFailed
		return res
	}
	if to == nil {
		res.Reason = models.ReasonNoRecipient
		return res
	}
	recipientID = &to.id

	msg, err := s.catalog.renderNotification(kind, s.cfg.AppUrl, s.vars(kind, turn, prop, cleaner))
	if err != nil {
		utils.Logger.WithError(err).Errorf("Notify %s: failed to render message", kind)
		res.Reason = models.ReasonSendFailed
		return res
	}

	if res.RecipientRole == models.RoleManager {
		res.EmailSent = s.sendEmailCopy(ctx, to, msg)
	}

	if reason := to.contact.SMSBlockReason(); reason != "" {
		res.Reason = reason
		return res
	}
	if s.sms == nil {
		res.Reason = models.ReasonSMSNotConfigured
		return res
	}

	id, err := s.sms.SendSMS(ctx, *to.contact.Phone, msg.SMS)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Notify %s: SMS to %s failed", kind, utils.MaskPhone(*to.contact.Phone))
		res.Reason = models.ReasonSendFailed
		return res
	}
	res.Sent = 1
	res.MessageID = id
	return res
}

// resolveManager walks turn manager, then property manager, then the most
// recently phone-verified manager of the property's org.
func (s *notificationService) resolveManager(ctx context.Context, turn *models.Turn, prop *models.Property) (*recipient, error) {
	candidates := []*uuid.UUID{turn.ManagerID}
	if prop != nil {
		candidates = append(candidates, prop.ManagerID)
	}
	for _, id := range candidates {
		if id == nil {
			continue
		}
		m, err := s.managers.GetByID(ctx, *id)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return managerRecipient(m), nil
		}
	}
	if prop == nil {
		return nil, nil
	}
	m, err := s.managers.GetMostRecentlyVerifiedInOrg(ctx, prop.OrgID)
	if err != nil || m == nil {
		return nil, err
	}
	return managerRecipient(m), nil
}

func managerRecipient(m *models.Manager) *recipient {
	return &recipient{id: m.ID, name: m.DisplayName, email: m.Email, contact: m.SMSContact}
}

func (s *notificationService) vars(kind models.NotificationKind, turn *models.Turn, prop *models.Property, cleaner *models.Cleaner) messageVars {
	v := messageVars{
		OrgName: s.cfg.OrganizationName,
		TurnID:  turn.ID.String(),
	}
	loc := time.UTC
	if prop != nil {
		v.PropertyName = prop.Name
		loc = utils.LocationAt(prop.Latitude, prop.Longitude)
	}
	if cleaner != nil {
		v.CleanerName = cleaner.DisplayName
	}
	if v.CleanerName == "" {
		v.CleanerName = "Your cleaner"
	}

	at := s.now()
	var stamp *time.Time
	switch kind {
	case models.NotifySubmitted:
		stamp = turn.SubmittedAt
	case models.NotifyFix:
		stamp = turn.LastFixSubmittedAt
		v.Note = utils.Val(turn.CleanerNote.Sent)
	case models.NotifyNeedsFix:
		stamp = turn.NeedsFixAt
		v.Note = utils.Val(turn.ManagerNote.Sent)
	case models.NotifyApproved:
		stamp = turn.ApprovedAt
	}
	if stamp != nil {
		at = *stamp
	}
	v.When = at.In(loc).Format(s.catalog.timeFormat)
	return v
}

func (s *notificationService) sendEmailCopy(ctx context.Context, to *recipient, msg *renderedMessage) bool {
	if !s.cfg.LDFlag_EmailManagerCopies || s.email == nil || to.email == "" {
		return false
	}
	if err := s.email.SendEmail(ctx, to.email, to.name, msg.Subject, msg.Email); err != nil {
		utils.Logger.WithError(err).Warnf("Failed to email manager %s", to.id)
		return false
	}
	return true
}

func (s *notificationService) record(ctx context.Context, turnID uuid.UUID, kind models.NotificationKind, recipientID *uuid.UUID, res *NotifyResult) {
	attempt := &models.NotificationAttempt{
		TurnID:        turnID,
		Kind:          kind,
		RecipientRole: res.RecipientRole,
		RecipientID:   recipientID,
		Sent:          res.Sent == 1,
	}
	if res.Reason != "" {
		attempt.Reason = utils.Ptr(res.Reason)
	}
	if res.MessageID != "" {
		attempt.ProviderID = utils.Ptr(res.MessageID)
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		utils.Logger.WithError(err).Warnf("Failed to record %s notification attempt for turn %s", kind, turnID)
	}
}
