package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"automator/internal/models"
	"automator/internal/params"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AlarmClock schedules one-shot alarms by key. Scheduling an existing key replaces it.
type AlarmClock interface {
	Schedule(ctx context.Context, alarm models.Alarm) error
	Cancel(ctx context.Context, key string) error
}

// GeofenceRegistrar registers geofences with the host
type GeofenceRegistrar interface {
	AddGeofences(ctx context.Context, fences []models.Geofence) error
	RemoveGeofences(ctx context.Context, ids []string) error
}

// RuleReader is the part of the rule store the scheduler reads
type RuleReader interface {
	GetRule(ctx context.Context, id string) (models.Rule, error)
	GetEnabledRules(ctx context.Context) ([]models.Rule, error)
	GetTriggersForRule(ctx context.Context, ruleID string) ([]models.Trigger, error)
}

// FireFunc runs a rule whose alarm went off
type FireFunc func(ctx context.Context, ruleID, triggerID string)

// registration is what the scheduler holds for one rule
type registration struct {
	alarms map[string]bool
	fences map[string]bool
}

// Scheduler owns periodic jobs plus the alarm and geofence registrations derived from triggers
type Scheduler struct {
	cron      *cron.Cron
	jobMap    map[string]cron.EntryID // Maps job name to cron entry ID
	jobMapMux sync.RWMutex            // Protects jobMap

	rules   RuleReader
	alarms  AlarmClock
	fences  GeofenceRegistrar
	onFire  FireFunc
	timeout time.Duration
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger

	regMu sync.Mutex
	regs  map[string]*registration
}

// NewScheduler creates a scheduler. timeout bounds each alarm or geofence call; loc is the
// wall-clock zone TIME triggers are expressed in.
func NewScheduler(rules RuleReader, alarms AlarmClock, fences GeofenceRegistrar, timeout time.Duration, loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		jobMap:  make(map[string]cron.EntryID),
		rules:   rules,
		alarms:  alarms,
		fences:  fences,
		timeout: timeout,
		loc:     loc,
		now:     time.Now,
		logger:  logger.Named("scheduler"),
		regs:    make(map[string]*registration),
	}
}

// OnFire sets the callback invoked when a TIME alarm fires
func (s *Scheduler) OnFire(fn FireFunc) {
	s.onFire = fn
}

// SetClock replaces the wall clock
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron scheduler stopped")
}

// AddPeriodic runs fn every interval under name, replacing an existing job of that name
func (s *Scheduler) AddPeriodic(name string, every time.Duration, fn func()) error {
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}
	s.RemovePeriodic(name)
	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", every), fn)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.jobMapMux.Lock()
	s.jobMap[name] = entryID
	s.jobMapMux.Unlock()
	s.logger.Info("Periodic job added", zap.String("job", name), zap.Duration("every", every))
	return nil
}

// RemovePeriodic removes a periodic job by name
func (s *Scheduler) RemovePeriodic(name string) {
	s.jobMapMux.Lock()
	defer s.jobMapMux.Unlock()
	if entryID, ok := s.jobMap[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobMap, name)
	}
}

// JobCount returns the number of periodic jobs
func (s *Scheduler) JobCount() int {
	s.jobMapMux.RLock()
	defer s.jobMapMux.RUnlock()
	return len(s.jobMap)
}

func (s *Scheduler) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// RegisterRule brings the alarm and geofence registrations of a rule in line with its triggers.
// Registrations of triggers that went away are cancelled. A disabled rule is cancelled entirely.
func (s *Scheduler) RegisterRule(ctx context.Context, rule models.Rule, triggers []models.Trigger) error {
	if !rule.IsEnabled {
		return s.CancelRule(ctx, rule.ID, triggers)
	}

	wantAlarms := map[string]models.Alarm{}
	var wantFences []models.Geofence
	var errs []error
	for _, t := range triggers {
		if !t.IsActive || t.RuleID != rule.ID {
			continue
		}
		switch t.Kind {
		case models.TriggerTime:
			tod, ok := t.Params.(params.TimeOfDay)
			if t.ParamsErr != nil || !ok {
				s.logger.Warn("Skipping alarm for malformed trigger", zap.String("rule_id", rule.ID), zap.String("trigger_id", t.ID), zap.Error(t.ParamsErr))
				continue
			}
			key := Key(rule.ID, t.ID)
			wantAlarms[key] = models.Alarm{Key: key, RuleID: rule.ID, TriggerID: t.ID, FireAt: NextFire(s.now().In(s.loc), tod)}
		case models.TriggerLocation:
			g, err := BuildGeofence(t)
			if err != nil {
				s.logger.Warn("Skipping invalid geofence", zap.String("rule_id", rule.ID), zap.String("trigger_id", t.ID), zap.Error(err))
				errs = append(errs, err)
				continue
			}
			wantFences = append(wantFences, g)
		}
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()
	prev := s.regs[rule.ID]
	reg := &registration{alarms: map[string]bool{}, fences: map[string]bool{}}

	for key, alarm := range wantAlarms {
		callCtx, cancel := s.callCtx(ctx)
		err := s.alarms.Schedule(callCtx, alarm)
		cancel()
		if err != nil {
			errs = append(errs, models.NewTransientError("schedule alarm "+key, err))
			continue
		}
		reg.alarms[key] = true
		s.logger.Debug("Alarm scheduled", zap.String("key", key), zap.Time("fire_at", alarm.FireAt))
	}

	if len(wantFences) > 0 {
		for _, batch := range batches(wantFences) {
			callCtx, cancel := s.callCtx(ctx)
			err := s.fences.AddGeofences(callCtx, batch)
			cancel()
			if err != nil {
				errs = append(errs, models.NewTransientError("register geofences", err))
				continue
			}
			for _, g := range batch {
				reg.fences[g.ID] = true
			}
		}
	}

	// tear down what the rule no longer asks for
	if prev != nil {
		var staleFences []string
		for key := range prev.alarms {
			if _, keep := wantAlarms[key]; !keep {
				errs = append(errs, s.cancelAlarm(ctx, key))
			}
		}
		for id := range prev.fences {
			if !reg.fences[id] && !containsFence(wantFences, id) {
				staleFences = append(staleFences, id)
			}
		}
		errs = append(errs, s.removeFences(ctx, staleFences))
	}

	s.regs[rule.ID] = reg
	return errors.Join(errs...)
}

func containsFence(fences []models.Geofence, id string) bool {
	for _, g := range fences {
		if g.ID == id {
			return true
		}
	}
	return false
}

func (s *Scheduler) cancelAlarm(ctx context.Context, key string) error {
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()
	if err := s.alarms.Cancel(callCtx, key); err != nil {
		return models.NewTransientError("cancel alarm "+key, err)
	}
	return nil
}

func (s *Scheduler) removeFences(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()
	if err := s.fences.RemoveGeofences(callCtx, ids); err != nil {
		return models.NewTransientError("remove geofences", err)
	}
	return nil
}

// CancelRule synchronously cancels every alarm and geofence of a rule. Keys are derived from
// both the tracked registrations and the given triggers, so registrations made by a previous
// process are cancelled too.
func (s *Scheduler) CancelRule(ctx context.Context, ruleID string, triggers []models.Trigger) error {
	s.regMu.Lock()
	defer s.regMu.Unlock()

	alarmKeys := map[string]bool{}
	fenceIDs := map[string]bool{}
	if reg := s.regs[ruleID]; reg != nil {
		for k := range reg.alarms {
			alarmKeys[k] = true
		}
		for id := range reg.fences {
			fenceIDs[id] = true
		}
	}
	for _, t := range triggers {
		switch t.Kind {
		case models.TriggerTime:
			alarmKeys[Key(ruleID, t.ID)] = true
		case models.TriggerLocation:
			fenceIDs[Key(ruleID, t.ID)] = true
		}
	}

	var errs []error
	for key := range alarmKeys {
		errs = append(errs, s.cancelAlarm(ctx, key))
	}
	ids := make([]string, 0, len(fenceIDs))
	for id := range fenceIDs {
		ids = append(ids, id)
	}
	for len(ids) > 0 {
		n := min(len(ids), MaxBatch)
		errs = append(errs, s.removeFences(ctx, ids[:n]))
		ids = ids[n:]
	}
	delete(s.regs, ruleID)

	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("Rule registrations cancelled", zap.String("rule_id", ruleID), zap.Int("alarms", len(alarmKeys)), zap.Int("geofences", len(fenceIDs)))
	return nil
}

// OnAlarmFired handles a delivered alarm. It re-registers the following occurrence and runs the
// rule. An alarm whose rule or trigger is gone, or whose fire time no longer matches the
// trigger's parameters, is dropped and the registration refreshed.
func (s *Scheduler) OnAlarmFired(ctx context.Context, alarm models.Alarm) error {
	logger := s.logger.With(zap.String("rule_id", alarm.RuleID), zap.String("trigger_id", alarm.TriggerID))

	rule, err := s.rules.GetRule(ctx, alarm.RuleID)
	if models.IsNotFound(err) {
		logger.Info("Dropping alarm of deleted rule")
		return s.cancelAlarm(ctx, alarm.Key)
	}
	if err != nil {
		return err
	}
	triggers, err := s.rules.GetTriggersForRule(ctx, rule.ID)
	if err != nil {
		return err
	}
	if !rule.IsEnabled {
		logger.Info("Dropping alarm of disabled rule")
		return s.CancelRule(ctx, rule.ID, triggers)
	}

	trigger, ok := findTrigger(triggers, alarm.TriggerID)
	if !ok || !trigger.IsActive || trigger.Kind != models.TriggerTime {
		logger.Info("Dropping alarm of removed trigger")
		return s.RegisterRule(ctx, rule, triggers)
	}
	tod, ok := trigger.Params.(params.TimeOfDay)
	if trigger.ParamsErr != nil || !ok {
		logger.Warn("Dropping alarm of malformed trigger", zap.Error(trigger.ParamsErr))
		return nil
	}
	at := alarm.FireAt.In(s.loc)
	if at.Hour() != tod.Hour || at.Minute() != tod.Minute || !tod.OnDay(at.Weekday()) {
		logger.Info("Dropping stale alarm", zap.Time("fire_at", alarm.FireAt))
		return s.RegisterRule(ctx, rule, triggers)
	}

	if err := s.RegisterRule(ctx, rule, triggers); err != nil {
		logger.Warn("Failed to register next occurrence", zap.Error(err))
	}
	if s.onFire != nil {
		s.onFire(ctx, rule.ID, trigger.ID)
	}
	return nil
}

func findTrigger(triggers []models.Trigger, id string) (models.Trigger, bool) {
	for _, t := range triggers {
		if t.ID == id {
			return t, true
		}
	}
	return models.Trigger{}, false
}

// Resync re-registers every enabled rule. Registrations are idempotent, so this
// re-creates alarms and geofences the host lost without duplicating live ones.
func (s *Scheduler) Resync(ctx context.Context) error {
	rules, err := s.rules.GetEnabledRules(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, r := range rules {
		triggers, err := s.rules.GetTriggersForRule(ctx, r.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.RegisterRule(ctx, r, triggers); err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", r.ID, err))
		}
	}
	s.logger.Debug("Registrations resynced", zap.Int("rules", len(rules)))
	return errors.Join(errs...)
}

// Registered returns the alarm keys and geofence ids held for a rule
func (s *Scheduler) Registered(ruleID string) (alarms, fences []string) {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	reg := s.regs[ruleID]
	if reg == nil {
		return nil, nil
	}
	for k := range reg.alarms {
		alarms = append(alarms, k)
	}
	for id := range reg.fences {
		fences = append(fences, id)
	}
	return alarms, fences
}
