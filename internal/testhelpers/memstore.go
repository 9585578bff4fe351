package testhelpers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
	"github.com/dmeadows001/turn-qa-sub000/internal/repositories"
	"github.com/dmeadows001/turn-qa-sub000/internal/utils"
)

// MemStore is an in-memory stand-in for the Postgres schema. It implements
// every repository interface with the same conditional-update semantics, so
// service tests exercise the real state machine without a database.
type MemStore struct {
	mu  sync.Mutex
	Now func() time.Time

	// Injected failures for the phone verification and opt-out writes.
	FailPhoneVerify error
	FailOptOut      error

	cleaners    map[uuid.UUID]*models.Cleaner
	managers    map[uuid.UUID]*models.Manager
	properties  map[uuid.UUID]*models.Property
	shots       map[uuid.UUID]*models.TemplateShot
	assignments []*models.PropertyCleanerAssignment
	turns       map[uuid.UUID]*models.Turn
	photos      map[uuid.UUID][]*models.TurnPhoto
	events      []*models.TurnEvent
	challenges  []*models.OTPChallenge
	rateLimits  map[string]*rateLimitRow
	attempts    []*models.NotificationAttempt
}

type rateLimitRow struct {
	count     int
	expiresAt time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		Now:        time.Now,
		cleaners:   map[uuid.UUID]*models.Cleaner{},
		managers:   map[uuid.UUID]*models.Manager{},
		properties: map[uuid.UUID]*models.Property{},
		shots:      map[uuid.UUID]*models.TemplateShot{},
		turns:      map[uuid.UUID]*models.Turn{},
		photos:     map[uuid.UUID][]*models.TurnPhoto{},
		rateLimits: map[string]*rateLimitRow{},
	}
}

func (s *MemStore) Cleaners() repositories.CleanerRepository { return &memCleaners{s} }
func (s *MemStore) Managers() repositories.ManagerRepository { return &memManagers{s} }
func (s *MemStore) Properties() repositories.PropertyRepository {
	return &memProperties{s}
}
func (s *MemStore) Assignments() repositories.AssignmentRepository {
	return &memAssignments{s}
}
func (s *MemStore) Turns() repositories.TurnRepository { return &memTurns{s} }
func (s *MemStore) Challenges() repositories.OTPChallengeRepository {
	return &memChallenges{s}
}
func (s *MemStore) RateLimits() repositories.RateLimitRepository { return &memRateLimits{s} }
func (s *MemStore) NotificationAttempts() repositories.NotificationAttemptRepository {
	return &memAttempts{s}
}

//----------------------------------------------------------------------
// Seeding and inspection
//----------------------------------------------------------------------

func (s *MemStore) AddCleaner(c *models.Cleaner) *models.Cleaner {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.PreferredLanguage == "" {
		c.PreferredLanguage = "en"
	}
	cp := *c
	s.cleaners[c.ID] = &cp
	return c
}

func (s *MemStore) AddManager(m *models.Manager) *models.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	cp := *m
	s.managers[m.ID] = &cp
	return m
}

func (s *MemStore) AddProperty(p *models.Property) *models.Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	s.properties[p.ID] = &cp
	return p
}

func (s *MemStore) AddShot(sh *models.TemplateShot) *models.TemplateShot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh.ID == uuid.Nil {
		sh.ID = uuid.New()
	}
	cp := *sh
	s.shots[sh.ID] = &cp
	return sh
}

// AddTurn inserts a turn directly, bypassing Start, e.g. to seed a legacy shape.
func (s *MemStore) AddTurn(t *models.Turn) *models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.PhotoShape == "" {
		t.PhotoShape = models.PhotoShapeV2
	}
	if t.RowVersion == 0 {
		t.RowVersion = 1
	}
	cp := *t
	s.turns[t.ID] = &cp
	return t
}

func (s *MemStore) AddPhoto(p *models.TurnPhoto) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.photos[p.TurnID] = append(s.photos[p.TurnID], &cp)
}

func (s *MemStore) Cleaner(id uuid.UUID) *models.Cleaner {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cleaners[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

func (s *MemStore) Manager(id uuid.UUID) *models.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.managers[id]; ok {
		cp := *m
		return &cp
	}
	return nil
}

func (s *MemStore) CleanerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cleaners)
}

func (s *MemStore) AssignmentCount(propertyID, cleanerID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.assignments {
		if a.PropertyID == propertyID && a.CleanerID == cleanerID {
			n++
		}
	}
	return n
}

func (s *MemStore) Events(turnID uuid.UUID) []*models.TurnEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TurnEvent
	for _, e := range s.events {
		if e.TurnID == turnID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

func (s *MemStore) AllChallenges() []*models.OTPChallenge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.OTPChallenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		cp := *c
		out = append(out, &cp)
	}
	return out
}

func (s *MemStore) Attempts() []*models.NotificationAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.NotificationAttempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		cp := *a
		out = append(out, &cp)
	}
	return out
}

//----------------------------------------------------------------------
// Phone contacts (shared by cleaners and managers)
//----------------------------------------------------------------------

func (s *MemStore) contactsLocked(managers bool) map[uuid.UUID]*models.SMSContact {
	out := map[uuid.UUID]*models.SMSContact{}
	if managers {
		for id, m := range s.managers {
			out[id] = &m.SMSContact
		}
	} else {
		for id, c := range s.cleaners {
			out[id] = &c.SMSContact
		}
	}
	return out
}

func (s *MemStore) checkPhoneClaimLocked(managers bool, id uuid.UUID, phone string) error {
	rows := s.contactsLocked(managers)
	for other, c := range rows {
		if other != id && utils.Val(c.Phone) == phone {
			return utils.ErrPhoneExists
		}
	}
	c, ok := rows[id]
	if !ok {
		return utils.ErrNotFound
	}
	if c.Phone != nil && *c.Phone != phone {
		return utils.ErrPhoneClaimed
	}
	return nil
}

func (s *MemStore) checkPhoneClaim(managers bool, id uuid.UUID, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkPhoneClaimLocked(managers, id, phone)
}

func (s *MemStore) markPhoneVerified(managers bool, id uuid.UUID, phone string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPhoneVerify != nil {
		return s.FailPhoneVerify
	}
	if err := s.checkPhoneClaimLocked(managers, id, phone); err != nil {
		return err
	}
	c := s.contactsLocked(managers)[id]
	c.Phone = utils.Ptr(phone)
	c.PhoneVerifiedAt = utils.Ptr(at)
	c.SMSConsent = true
	if c.SMSConsentAt == nil {
		c.SMSConsentAt = utils.Ptr(at)
	}
	return nil
}

func (s *MemStore) isOptedOut(managers bool, phone string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contactsLocked(managers) {
		if utils.Val(c.Phone) == phone && c.SMSOptOutAt != nil {
			return true
		}
	}
	return false
}

func (s *MemStore) setOptOut(managers bool, phone string, at time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.contactsLocked(managers) {
		if utils.Val(c.Phone) != phone {
			continue
		}
		if c.SMSOptOutAt == nil {
			c.SMSOptOutAt = utils.Ptr(at)
		}
		n++
	}
	return n
}

func (s *MemStore) clearOptOut(managers bool, phone string, at time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.contactsLocked(managers) {
		if utils.Val(c.Phone) != phone {
			continue
		}
		c.SMSOptOutAt = nil
		c.SMSConsent = true
		c.SMSConsentAt = utils.Ptr(at)
		n++
	}
	return n
}

type memContacts struct {
	s        *MemStore
	managers bool
}

func (m memContacts) CheckPhoneClaim(_ context.Context, id uuid.UUID, phone string) error {
	return m.s.checkPhoneClaim(m.managers, id, phone)
}

func (m memContacts) MarkPhoneVerified(_ context.Context, id uuid.UUID, phone string, at time.Time) error {
	return m.s.markPhoneVerified(m.managers, id, phone, at)
}

func (m memContacts) IsOptedOut(_ context.Context, phone string) (bool, error) {
	return m.s.isOptedOut(m.managers, phone), nil
}

func (m memContacts) SetOptOut(_ context.Context, phone string, at time.Time) (int64, error) {
	if m.s.FailOptOut != nil {
		return 0, m.s.FailOptOut
	}
	return m.s.setOptOut(m.managers, phone, at), nil
}

func (m memContacts) ClearOptOut(_ context.Context, phone string, at time.Time) (int64, error) {
	if m.s.FailOptOut != nil {
		return 0, m.s.FailOptOut
	}
	return m.s.clearOptOut(m.managers, phone, at), nil
}

//----------------------------------------------------------------------
// Cleaners / managers
//----------------------------------------------------------------------

type memCleaners struct{ s *MemStore }

func (r *memCleaners) contacts() memContacts { return memContacts{s: r.s} }

func (r *memCleaners) CheckPhoneClaim(ctx context.Context, id uuid.UUID, phone string) error {
	return r.contacts().CheckPhoneClaim(ctx, id, phone)
}
func (r *memCleaners) MarkPhoneVerified(ctx context.Context, id uuid.UUID, phone string, at time.Time) error {
	return r.contacts().MarkPhoneVerified(ctx, id, phone, at)
}
func (r *memCleaners) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	return r.contacts().IsOptedOut(ctx, phone)
}
func (r *memCleaners) SetOptOut(ctx context.Context, phone string, at time.Time) (int64, error) {
	return r.contacts().SetOptOut(ctx, phone, at)
}
func (r *memCleaners) ClearOptOut(ctx context.Context, phone string, at time.Time) (int64, error) {
	return r.contacts().ClearOptOut(ctx, phone, at)
}

func (r *memCleaners) find(match func(*models.Cleaner) bool) *models.Cleaner {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.cleaners {
		if match(c) {
			cp := *c
			return &cp
		}
	}
	return nil
}

func (r *memCleaners) GetByID(_ context.Context, id uuid.UUID) (*models.Cleaner, error) {
	return r.find(func(c *models.Cleaner) bool { return c.ID == id }), nil
}

func (r *memCleaners) GetByPhone(_ context.Context, phone string) (*models.Cleaner, error) {
	return r.find(func(c *models.Cleaner) bool { return utils.Val(c.Phone) == phone }), nil
}

func (r *memCleaners) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Cleaner, error) {
	return r.find(func(c *models.Cleaner) bool { return c.UserID != nil && *c.UserID == userID }), nil
}

func (r *memCleaners) CreateIfNotExists(ctx context.Context, c *models.Cleaner) (*models.Cleaner, error) {
	if c.Phone != nil {
		if existing, _ := r.GetByPhone(ctx, *c.Phone); existing != nil {
			return existing, nil
		}
	}
	c.CreatedAt = r.s.Now()
	c.UpdatedAt = c.CreatedAt
	r.s.AddCleaner(c)
	return r.GetByID(ctx, c.ID)
}

type memManagers struct{ s *MemStore }

func (r *memManagers) contacts() memContacts { return memContacts{s: r.s, managers: true} }

func (r *memManagers) CheckPhoneClaim(ctx context.Context, id uuid.UUID, phone string) error {
	return r.contacts().CheckPhoneClaim(ctx, id, phone)
}
func (r *memManagers) MarkPhoneVerified(ctx context.Context, id uuid.UUID, phone string, at time.Time) error {
	return r.contacts().MarkPhoneVerified(ctx, id, phone, at)
}
func (r *memManagers) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	return r.contacts().IsOptedOut(ctx, phone)
}
func (r *memManagers) SetOptOut(ctx context.Context, phone string, at time.Time) (int64, error) {
	return r.contacts().SetOptOut(ctx, phone, at)
}
func (r *memManagers) ClearOptOut(ctx context.Context, phone string, at time.Time) (int64, error) {
	return r.contacts().ClearOptOut(ctx, phone, at)
}

func (r *memManagers) find(match func(*models.Manager) bool) *models.Manager {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.managers {
		if match(m) {
			cp := *m
			return &cp
		}
	}
	return nil
}

func (r *memManagers) GetByID(_ context.Context, id uuid.UUID) (*models.Manager, error) {
	return r.find(func(m *models.Manager) bool { return m.ID == id }), nil
}

func (r *memManagers) GetByPhone(_ context.Context, phone string) (*models.Manager, error) {
	return r.find(func(m *models.Manager) bool { return utils.Val(m.Phone) == phone }), nil
}

func (r *memManagers) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Manager, error) {
	return r.find(func(m *models.Manager) bool { return m.UserID != nil && *m.UserID == userID }), nil
}

func (r *memManagers) GetMostRecentlyVerifiedInOrg(_ context.Context, orgID uuid.UUID) (*models.Manager, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *models.Manager
	for _, m := range r.s.managers {
		if m.OrgID != orgID || m.Phone == nil || m.PhoneVerifiedAt == nil {
			continue
		}
		if best == nil || m.PhoneVerifiedAt.After(*best.PhoneVerifiedAt) {
			best = m
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

//----------------------------------------------------------------------
// Properties / assignments
//----------------------------------------------------------------------

type memProperties struct{ s *MemStore }

func (r *memProperties) GetByID(_ context.Context, id uuid.UUID) (*models.Property, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.properties[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *memProperties) GetTemplateShot(_ context.Context, shotID uuid.UUID) (*models.TemplateShot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sh, ok := r.s.shots[shotID]; ok {
		cp := *sh
		return &cp, nil
	}
	return nil, nil
}

type memAssignments struct{ s *MemStore }

func (r *memAssignments) Upsert(_ context.Context, propertyID, cleanerID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.assignments {
		if a.PropertyID == propertyID && a.CleanerID == cleanerID {
			return nil
		}
	}
	r.s.assignments = append(r.s.assignments, &models.PropertyCleanerAssignment{
		PropertyID: propertyID,
		CleanerID:  cleanerID,
		CreatedAt:  r.s.Now(),
	})
	return nil
}

func (r *memAssignments) Exists(_ context.Context, propertyID, cleanerID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.assignments {
		if a.PropertyID == propertyID && a.CleanerID == cleanerID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memAssignments) ListByProperty(_ context.Context, propertyID uuid.UUID) ([]*models.PropertyCleanerAssignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.PropertyCleanerAssignment
	for _, a := range r.s.assignments {
		if a.PropertyID == propertyID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

//----------------------------------------------------------------------
// Turns
//----------------------------------------------------------------------

type memTurns struct{ s *MemStore }

func (r *memTurns) Create(_ context.Context, t *models.Turn, ev *models.TurnEvent) error {
	now := r.s.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.s.AddTurn(t)
	if ev != nil {
		r.s.mu.Lock()
		r.s.appendEventLocked(t.ID, ev)
		r.s.mu.Unlock()
	}
	return nil
}

func (r *memTurns) GetByID(_ context.Context, id uuid.UUID) (*models.Turn, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.turns[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *memTurns) ListPhotos(_ context.Context, t *models.Turn) ([]*models.TurnPhoto, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.TurnPhoto, 0, len(r.s.photos[t.ID]))
	for _, p := range r.s.photos[t.ID] {
		cp := *p
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memTurns) Transition(_ context.Context, tr repositories.TurnTransition) (*repositories.TransitionResult, error) {
	if !tr.From.CanTransitionTo(tr.To) {
		return nil, fmt.Errorf("%w: %s -> %s", utils.ErrWrongStatus, tr.From, tr.To)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.turns[tr.TurnID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	if t.Status != tr.From {
		return nil, fmt.Errorf("%w: turn is %s, expected %s", utils.ErrWrongStatus, t.Status, tr.From)
	}

	next := *t
	next.Status = tr.To
	next.RowVersion++
	next.UpdatedAt = r.s.Now()
	switch {
	case tr.To == models.TurnStatusSubmitted && tr.From == models.TurnStatusNeedsFix:
		next.LastFixSubmittedAt = utils.Ptr(tr.At)
	case tr.To == models.TurnStatusSubmitted:
		next.SubmittedAt = utils.Ptr(tr.At)
	case tr.To == models.TurnStatusNeedsFix:
		next.NeedsFixAt = utils.Ptr(tr.At)
	case tr.To == models.TurnStatusApproved:
		next.ApprovedAt = utils.Ptr(tr.At)
		next.ApprovedBy = tr.ApprovedBy
	}
	if tr.ManagerNote != nil {
		next.ManagerNote = *tr.ManagerNote
	}
	if tr.CleanerNote != nil {
		next.CleanerNote = *tr.CleanerNote
	}

	res := &repositories.TransitionResult{}
	photos := r.s.photos[t.ID]
	for _, p := range tr.NewPhotos {
		cp := *p
		cp.TurnID = t.ID
		cp.Shape = t.PhotoShape
		cp.CreatedAt = tr.At
		if t.PhotoShape == models.PhotoShapeV2 {
			if cp.ID == nil {
				cp.ID = utils.Ptr(uuid.New())
			}
		} else {
			cp.ID = nil
			cp.ShotID = nil
			cp.IsFix = false
		}
		p.ID = cp.ID
		photos = append(photos, &cp)
	}
	for _, n := range tr.PhotoNotes {
		for _, p := range photos {
			matched := false
			switch {
			case t.PhotoShape == models.PhotoShapeV2 && n.PhotoID != nil:
				matched = p.ID != nil && *p.ID == *n.PhotoID
			case n.StoragePath != "":
				matched = p.StoragePath == n.StoragePath
			}
			if !matched {
				continue
			}
			p.ManagerNotes = utils.Ptr(n.Note)
			if t.PhotoShape == models.PhotoShapeV2 {
				p.NeedsFix = true
			}
			res.FlaggedCount++
		}
	}
	r.s.photos[t.ID] = photos
	if tr.Event != nil {
		r.s.appendEventLocked(t.ID, tr.Event)
	}

	r.s.turns[t.ID] = &next
	out := next
	res.Turn = &out
	return res, nil
}

func (s *MemStore) appendEventLocked(turnID uuid.UUID, ev *models.TurnEvent) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.TurnID = turnID
	ev.CreatedAt = s.Now()
	cp := *ev
	s.events = append(s.events, &cp)
}

//----------------------------------------------------------------------
// OTP challenges / rate limits
//----------------------------------------------------------------------

type memChallenges struct{ s *MemStore }

func (r *memChallenges) Create(_ context.Context, c *models.OTPChallenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = r.s.Now()
	cp := *c
	r.s.challenges = append(r.s.challenges, &cp)
	return nil
}

func (r *memChallenges) GetLatest(_ context.Context, role models.Role, phone string) (*models.OTPChallenge, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.OTPChallenge
	for _, c := range r.s.challenges {
		if c.Role != role || c.Phone != phone {
			continue
		}
		if latest == nil || !c.CreatedAt.Before(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *memChallenges) byID(id uuid.UUID) *models.OTPChallenge {
	for _, c := range r.s.challenges {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *memChallenges) IncrementAttempts(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c := r.byID(id); c != nil {
		c.Attempts++
	}
	return nil
}

func (r *memChallenges) MarkUsed(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := r.byID(id)
	if c == nil || c.UsedAt != nil {
		return false, nil
	}
	c.UsedAt = utils.Ptr(at)
	return true, nil
}

func (r *memChallenges) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.challenges[:0]
	for _, c := range r.s.challenges {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	r.s.challenges = kept
	return nil
}

func (r *memChallenges) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	kept := r.s.challenges[:0]
	for _, c := range r.s.challenges {
		if c.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	r.s.challenges = kept
	return n, nil
}

type memRateLimits struct{ s *MemStore }

func (r *memRateLimits) Hit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.Now()
	row, ok := r.s.rateLimits[key]
	if !ok || !row.expiresAt.After(now) {
		row = &rateLimitRow{expiresAt: now.Add(window)}
		r.s.rateLimits[key] = row
	}
	row.count++
	return row.count <= limit, nil
}

func (r *memRateLimits) PurgeExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.Now()
	var n int64
	for k, row := range r.s.rateLimits {
		if row.expiresAt.Before(now) {
			delete(r.s.rateLimits, k)
			n++
		}
	}
	return n, nil
}

//----------------------------------------------------------------------
// Notification attempts
//----------------------------------------------------------------------

type memAttempts struct{ s *MemStore }

func (r *memAttempts) Create(_ context.Context, a *models.NotificationAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = r.s.Now()
	cp := *a
	r.s.attempts = append(r.s.attempts, &cp)
	return nil
}

func (r *memAttempts) ListByTurn(_ context.Context, turnID uuid.UUID) ([]*models.NotificationAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.NotificationAttempt
	for _, a := range r.s.attempts {
		if a.TurnID == turnID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}
