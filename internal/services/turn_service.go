package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/config"
	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

type StartTurnRequest struct {
	PropertyID uuid.UUID
	CleanerID  *uuid.UUID
	Phone      string
	Latitude   *float64
	Longitude  *float64
}

// PhotoInput is a photo already uploaded under turns/{turnID}/.
type PhotoInput struct {
	ShotID      *uuid.UUID
	AreaKey     string
	StoragePath string
}

type TurnActionResult struct {
	Turn         *models.Turn
	FlaggedCount int
	Notify       *NotifyResult
	Payout       *PayoutResult
}

type TurnDetail struct {
	Turn   *models.Turn        `json:"turn"`
	Photos []*models.TurnPhoto `json:"photos"`
}

// TurnService drives a turn through its review lifecycle. Each transition
// commits before the notification for it is attempted.
type TurnService interface {
	Start(ctx context.Context, actor models.Actor, req StartTurnRequest) (*models.Turn, error)
	Get(ctx context.Context, actor models.Actor, turnID uuid.UUID) (*TurnDetail, error)
	Submit(ctx context.Context, actor models.Actor, turnID uuid.UUID, photos []PhotoInput) (*TurnActionResult, error)
	FlagNeedsFix(ctx context.Context, actor models.Actor, turnID uuid.UUID, note string, photoNotes []models.PhotoNote) (*TurnActionResult, error)
	SubmitFix(ctx context.Context, actor models.Actor, turnID uuid.UUID, photos []PhotoInput, cleanerNote string) (*TurnActionResult, error)
	Approve(ctx context.Context, actor models.Actor, turnID uuid.UUID, payoutCents *int64) (*TurnActionResult, error)
}

type turnService struct {
	cfg           *config.Config
	turns         repositories.TurnRepository
	properties    repositories.PropertyRepository
	assignments   repositories.AssignmentRepository
	cleaners      repositories.CleanerRepository
	guard         GuardService
	notifications NotificationService
	payouts       PayoutService
	translator    Translator
	now           func() time.Time
}

func NewTurnService(
	cfg *config.Config,
	turns repositories.TurnRepository,
	properties repositories.PropertyRepository,
	assignments repositories.AssignmentRepository,
	cleaners repositories.CleanerRepository,
	guard GuardService,
	notifications NotificationService,
	payouts PayoutService,
	translator Translator,
) TurnService {
	return &turnService{
		cfg:           cfg,
		turns:         turns,
		properties:    properties,
		assignments:   assignments,
		cleaners:      cleaners,
		guard:         guard,
		notifications: notifications,
		payouts:       payouts,
		translator:    translator,
		now:           time.Now,
	}
}

// Start requires an existing assignment; it never creates one.
func (s *turnService) Start(ctx context.Context, actor models.Actor, req StartTurnRequest) (*models.Turn, error) {
	cleanerID, err := s.startingCleaner(ctx, actor, req)
	if err != nil {
		return nil, err
	}

	prop, err := s.properties.GetByID(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, utils.ErrNotAssigned
	}
	if actor.IsManager() {
		d, err := s.guard.AuthorizeProperty(ctx, actor, prop.ID)
		if err != nil {
			return nil, err
		}
		if !d.Allowed {
			return nil, utils.ErrForbidden
		}
	}

	assigned, err := s.assignments.Exists(ctx, prop.ID, cleanerID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, utils.ErrNotAssigned
	}

	if actor.IsCleaner() && s.cfg.LDFlag_EnforceGeofence {
		if err := s.checkGeofence(prop, req.Latitude, req.Longitude); err != nil {
			return nil, err
		}
	}

	now := s.now()
	turn := &models.Turn{
		PropertyID: prop.ID,
		CleanerID:  cleanerID,
		ManagerID:  prop.ManagerID,
		Status:     models.TurnStatusInProgress,
		PhotoShape: models.PhotoShapeV2,
		StartedAt:  now,
	}
	ev := &models.TurnEvent{
		Action:    models.TurnActionStarted,
		ActorRole: actor.Role,
		ActorID:   actor.SubjectID,
	}
	if err := s.turns.Create(ctx, turn, ev); err != nil {
		return nil, err
	}
	utils.Logger.Infof("Turn %s started for cleaner %s at property %s", turn.ID, cleanerID, prop.ID)
	return turn, nil
}

// startingCleaner works out whose turn is being started. Cleaners can only
// start their own; managers name the cleaner by id or phone.
func (s *turnService) startingCleaner(ctx context.Context, actor models.Actor, req StartTurnRequest) (uuid.UUID, error) {
	var target *models.Cleaner
	var err error
	switch {
	case req.CleanerID != nil:
		target, err = s.cleaners.GetByID(ctx, *req.CleanerID)
	case strings.TrimSpace(req.Phone) != "":
		phone, pErr := utils.NormalizePhone(req.Phone)
		if pErr != nil {
			return uuid.Nil, pErr
		}
		target, err = s.cleaners.GetByPhone(ctx, phone)
	case actor.IsCleaner():
		return actor.SubjectID, nil
	default:
		return uuid.Nil, fmt.Errorf("%w: cleaner id or phone is required", utils.ErrInvalidPayload)
	}
	if err != nil {
		return uuid.Nil, err
	}

	if actor.IsCleaner() {
		if target == nil || target.ID != actor.SubjectID {
			return uuid.Nil, utils.ErrForbidden
		}
		return target.ID, nil
	}
	if target == nil {
		return uuid.Nil, utils.ErrSubjectNotFound
	}
	return target.ID, nil
}

func (s *turnService) checkGeofence(prop *models.Property, lat, lng *float64) error {
	if prop.Latitude == 0 && prop.Longitude == 0 {
		return nil
	}
	if lat == nil || lng == nil {
		return fmt.Errorf("%w: location is required", utils.ErrLocationOutOfBounds)
	}
	dist := utils.DistanceMeters(*lat, *lng, prop.Latitude, prop.Longitude)
	if dist > s.cfg.GeofenceRadiusMeters {
		return fmt.Errorf("%w: %.0fm from property", utils.ErrLocationOutOfBounds, dist)
	}
	return nil
}

func (s *turnService) Get(ctx context.Context, actor models.Actor, turnID uuid.UUID) (*TurnDetail, error) {
	turn, err := s.authorizedTurn(ctx, actor, turnID, "")
	if err != nil {
		return nil, err
	}
	photos, err := s.turns.ListPhotos(ctx, turn)
	if err != nil {
		return nil, err
	}
	return &TurnDetail{Turn: turn, Photos: photos}, nil
}

func (s *turnService) Submit(ctx context.Context, actor models.Actor, turnID uuid.UUID, photos []PhotoInput) (*TurnActionResult, error) {
	if len(photos) == 0 {
		return nil, utils.ErrNoPhotosProvided
	}
	turn, err := s.authorizedTurn(ctx, actor, turnID, models.RoleCleaner)
	if err != nil {
		return nil, err
	}
	rows, err := photoRows(turn.ID, photos, false)
	if err != nil {
		return nil, err
	}

	out, err := s.turns.Transition(ctx, repositories.TurnTransition{
		TurnID:    turn.ID,
		From:      models.TurnStatusInProgress,
		To:        models.TurnStatusSubmitted,
		At:        s.now(),
		NewPhotos: rows,
		Event:     s.event(actor, models.TurnActionSubmitted, map[string]any{"photo_count": len(rows)}),
	})
	if err != nil {
		return nil, err
	}

	res := &TurnActionResult{Turn: out.Turn}
	res.Notify = s.notifications.Notify(ctx, turn.ID, models.NotifySubmitted)
	return res, nil
}

func (s *turnService) FlagNeedsFix(
	ctx context.Context,
	actor models.Actor,
	turnID uuid.UUID,
	note string,
	photoNotes []models.PhotoNote,
) (*TurnActionResult, error) {
	turn, err := s.authorizedTurn(ctx, actor, turnID, models.RoleManager)
	if err != nil {
		return nil, err
	}

	var managerNote *models.NoteVariants
	if strings.TrimSpace(note) != "" {
		lang := ""
		if c, cErr := s.cleaners.GetByID(ctx, turn.CleanerID); cErr == nil && c != nil {
			lang = c.PreferredLanguage
		}
		managerNote = s.noteVariants(ctx, strings.TrimSpace(note), lang)
	}

	out, err := s.turns.Transition(ctx, repositories.TurnTransition{
		TurnID:      turn.ID,
		From:        models.TurnStatusSubmitted,
		To:          models.TurnStatusNeedsFix,
		At:          s.now(),
		PhotoNotes:  photoNotes,
		ManagerNote: managerNote,
		Event:       s.event(actor, models.TurnActionNeedsFix, map[string]any{"note": note, "photo_notes": len(photoNotes)}),
	})
	if err != nil {
		return nil, err
	}

	res := &TurnActionResult{Turn: out.Turn, FlaggedCount: out.FlaggedCount}
	res.Notify = s.notifications.Notify(ctx, turn.ID, models.NotifyNeedsFix)
	return res, nil
}

// SubmitFix appends the fix photos and moves the turn straight back to
// submitted.
func (s *turnService) SubmitFix(
	ctx context.Context,
	actor models.Actor,
	turnID uuid.UUID,
	photos []PhotoInput,
	cleanerNote string,
) (*TurnActionResult, error) {
	if len(photos) == 0 {
		return nil, utils.ErrNoPhotosProvided
	}
	turn, err := s.authorizedTurn(ctx, actor, turnID, models.RoleCleaner)
	if err != nil {
		return nil, err
	}
	rows, err := photoRows(turn.ID, photos, true)
	if err != nil {
		return nil, err
	}

	var note *models.NoteVariants
	if trimmed := strings.TrimSpace(cleanerNote); trimmed != "" {
		note = &models.NoteVariants{Original: &trimmed, Sent: &trimmed}
	}

	out, err := s.turns.Transition(ctx, repositories.TurnTransition{
		TurnID:      turn.ID,
		From:        models.TurnStatusNeedsFix,
		To:          models.TurnStatusSubmitted,
		At:          s.now(),
		NewPhotos:   rows,
		CleanerNote: note,
		Event:       s.event(actor, models.TurnActionFixSubmitted, map[string]any{"photo_count": len(rows)}),
	})
	if err != nil {
		return nil, err
	}

	res := &TurnActionResult{Turn: out.Turn}
	res.Notify = s.notifications.Notify(ctx, turn.ID, models.NotifyFix)
	return res, nil
}

func (s *turnService) Approve(ctx context.Context, actor models.Actor, turnID uuid.UUID, payoutCents *int64) (*TurnActionResult, error) {
	turn, err := s.authorizedTurn(ctx, actor, turnID, models.RoleManager)
	if err != nil {
		return nil, err
	}

	details := map[string]any{}
	if payoutCents != nil {
		details["payout_cents"] = *payoutCents
	}
	out, err := s.turns.Transition(ctx, repositories.TurnTransition{
		TurnID:     turn.ID,
		From:       models.TurnStatusSubmitted,
		To:         models.TurnStatusApproved,
		At:         s.now(),
		ApprovedBy: &actor.SubjectID,
		Event:      s.event(actor, models.TurnActionApproved, details),
	})
	if err != nil {
		return nil, err
	}

	res := &TurnActionResult{Turn: out.Turn}
	res.Payout = s.payouts.PayTurn(ctx, out.Turn, payoutCents)
	res.Notify = s.notifications.Notify(ctx, turn.ID, models.NotifyApproved)
	return res, nil
}

// authorizedTurn loads the turn and applies the guard. A missing turn and a
// foreign turn both come back as ErrForbidden. An empty role accepts either.
func (s *turnService) authorizedTurn(ctx context.Context, actor models.Actor, turnID uuid.UUID, role models.Role) (*models.Turn, error) {
	if role != "" && actor.Role != role {
		return nil, utils.ErrForbidden
	}
	turn, err := s.turns.GetByID(ctx, turnID)
	if err != nil {
		return nil, err
	}
	d, err := s.guard.CheckTurn(ctx, actor, turn)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, utils.ErrForbidden
	}
	return turn, nil
}

func (s *turnService) noteVariants(ctx context.Context, note, lang string) *models.NoteVariants {
	v := &models.NoteVariants{Original: utils.Ptr(note), Sent: utils.Ptr(note)}
	if !s.cfg.LDFlag_TranslateNotes || s.translator == nil || lang == "" || strings.HasPrefix(lang, "en") {
		return v
	}
	translated, err := s.translator.Translate(ctx, note, lang)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Note translation to %s failed; sending original", lang)
		return v
	}
	v.Translated = utils.Ptr(translated)
	v.Sent = utils.Ptr(translated)
	return v
}

func (s *turnService) event(actor models.Actor, action models.TurnAction, details map[string]any) *models.TurnEvent {
	ev := &models.TurnEvent{Action: action, ActorRole: actor.Role, ActorID: actor.SubjectID}
	if len(details) > 0 {
		if raw, err := json.Marshal(details); err == nil {
			msg := json.RawMessage(raw)
			ev.Details = &msg
		}
	}
	return ev
}

// photoRows checks every path lives under the turn's own prefix.
func photoRows(turnID uuid.UUID, photos []PhotoInput, isFix bool) ([]*models.TurnPhoto, error) {
	prefix := turnPathPrefix + "/" + turnID.String() + "/"
	rows := make([]*models.TurnPhoto, 0, len(photos))
	for _, p := range photos {
		if _, ok := splitObjectPath(p.StoragePath); !ok || !strings.HasPrefix(p.StoragePath, prefix) {
			return nil, fmt.Errorf("%w: photo path %q is outside %s", utils.ErrInvalidPayload, p.StoragePath, prefix)
		}
		rows = append(rows, &models.TurnPhoto{
			TurnID:      turnID,
			ShotID:      p.ShotID,
			AreaKey:     p.AreaKey,
			StoragePath: p.StoragePath,
			IsFix:       isFix,
		})
	}
	return rows, nil
}
