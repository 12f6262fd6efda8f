package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/alfredjeanlab/confengine/internal/events"
	"github.com/alfredjeanlab/confengine/internal/idgen"
	"github.com/alfredjeanlab/confengine/internal/model"
	"github.com/alfredjeanlab/confengine/internal/rules"
	"github.com/alfredjeanlab/confengine/internal/store"
	"github.com/alfredjeanlab/confengine/internal/tree"
)

// ConfigServer implements the configuration API on top of a store.
type ConfigServer struct {
	store     store.Store
	publisher events.Publisher
	stream    *eventStream
	now       func() time.Time
}

// NewConfigServer returns a new ConfigServer backed by the given store and publisher.
func NewConfigServer(s store.Store, p events.Publisher) *ConfigServer {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	return &ConfigServer{
		store:     s,
		publisher: p,
		stream:    newEventStream(streamBacklog),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// commit runs write and records its event in one store transaction. Once
// the transaction commits the event is published and fanned out to SSE
// clients; those two are best-effort. event is called after write so it sees
// the timestamps the store assigned.
func (s *ConfigServer) commit(ctx context.Context, topic, configurationID string, write func(tx store.Store) error, event func() any) error {
	var (
		ev      any
		payload []byte
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := write(tx); err != nil {
			return err
		}
		ev = event()
		var err error
		if payload, err = json.Marshal(ev); err != nil {
			return fmt.Errorf("encode %s event: %w", topic, err)
		}
		return tx.RecordEvent(ctx, &model.Event{
			Topic:           topic,
			ConfigurationID: configurationID,
			Actor:           actorFromContext(ctx),
			CorrelationID:   events.CorrelationIDFromContext(ctx),
			Payload:         payload,
		})
	})
	if err != nil {
		return err
	}

	eventsTotal.WithLabelValues(topic).Inc()
	if err := s.publisher.Publish(ctx, topic, ev); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "configuration_id", configurationID, "error", err)
	}
	s.stream.publish(topic, payload)
	return nil
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// keyTakenError reports a create with a key already in use.
type keyTakenError string

func (e keyTakenError) Error() string {
	return fmt.Sprintf("Configuration with key '%s' already exists", string(e))
}

func (e keyTakenError) Is(target error) bool { return target == store.ErrDuplicateKey }

const (
	errNotFound       = inputError("configuration not found")
	errParentNotFound = inputError("parent configuration not found")
	errParentCycle    = inputError("parent would create a cycle")
)

// createConfiguration validates in and stores a new record.
func (s *ConfigServer) createConfiguration(ctx context.Context, in createConfigurationInput) (*model.Configuration, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	c := &model.Configuration{
		ID:               idgen.NewRecordID(),
		Key:              in.Key,
		Label:            in.Label,
		Description:      in.Description,
		DataType:         in.DataType,
		DefaultValue:     in.DefaultValue,
		Active:           true,
		ParentConfigID:   model.StringPtr(in.ParentConfigID),
		ValidationRules:  in.ValidationRules,
		ParentConditions: in.ParentConditions,
		Translations:     in.Translations,
	}
	if in.Active != nil {
		c.Active = *in.Active
	}
	model.CanonicalizeTranslations(c.Translations)

	if err := model.ValidateConfiguration(c); err != nil {
		return nil, err
	}

	parent, err := s.loadParent(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := s.checkRules(c, parent); err != nil {
		return nil, err
	}

	switch _, err := s.store.GetConfigurationByKey(ctx, c.Key); {
	case err == nil:
		return nil, keyTakenError(c.Key)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("check key: %w", err)
	}

	err = s.commit(ctx, events.TopicConfigurationCreated, c.ID,
		func(tx store.Store) error { return tx.CreateConfiguration(ctx, c) },
		func() any { return events.NewCreated(c, events.CorrelationIDFromContext(ctx)) })
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateKey):
			return nil, keyTakenError(c.Key)
		case errors.Is(err, store.ErrParentNotFound):
			return nil, errParentNotFound
		}
		return nil, fmt.Errorf("create configuration: %w", err)
	}
	return c, nil
}

// updateConfiguration applies the fields present in in to the record id.
// The key never changes.
func (s *ConfigServer) updateConfiguration(ctx context.Context, id string, in updateConfigurationInput) (*model.Configuration, error) {
	existing, err := s.getConfiguration(ctx, id)
	if err != nil {
		return nil, err
	}

	c := existing.Clone()
	changes := in.apply(c)
	model.CanonicalizeTranslations(c.Translations)

	if in.ParentConfigID != nil && c.HasParent() {
		if err := s.checkAncestry(ctx, c.ID, c.ParentID()); err != nil {
			return nil, err
		}
	}
	if err := model.ValidateConfiguration(c); err != nil {
		return nil, err
	}

	parent, err := s.loadParent(ctx, c)
	if err != nil {
		return nil, err
	}
	if err := s.checkRules(c, parent); err != nil {
		return nil, err
	}

	err = s.commit(ctx, events.TopicConfigurationUpdated, c.ID,
		func(tx store.Store) error { return tx.UpdateConfiguration(ctx, c) },
		func() any { return events.NewUpdated(c, changes, events.CorrelationIDFromContext(ctx)) })
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, errNotFound
		case errors.Is(err, store.ErrParentNotFound):
			return nil, errParentNotFound
		}
		return nil, fmt.Errorf("update configuration: %w", err)
	}
	return c, nil
}

// deleteConfiguration removes the record. Children stay, detached.
func (s *ConfigServer) deleteConfiguration(ctx context.Context, id string) error {
	existing, err := s.getConfiguration(ctx, id)
	if err != nil {
		return err
	}
	err = s.commit(ctx, events.TopicConfigurationDeleted, id,
		func(tx store.Store) error { return tx.DeleteConfiguration(ctx, id) },
		func() any { return events.NewDeleted(existing, s.now(), events.CorrelationIDFromContext(ctx)) })
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound
		}
		return fmt.Errorf("delete configuration: %w", err)
	}
	return nil
}

// lookupConfiguration finds a record by id, or by key when idOrKey is not
// a record id.
func (s *ConfigServer) lookupConfiguration(ctx context.Context, idOrKey string) (*model.Configuration, error) {
	if idgen.IsRecordID(idOrKey) {
		return s.getConfiguration(ctx, idOrKey)
	}
	c, err := s.store.GetConfigurationByKey(ctx, idOrKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get configuration by key: %w", err)
	}
	return c, nil
}

func (s *ConfigServer) getConfiguration(ctx context.Context, id string) (*model.Configuration, error) {
	if !idgen.IsRecordID(id) {
		return nil, errNotFound
	}
	c, err := s.store.GetConfiguration(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get configuration: %w", err)
	}
	return c, nil
}

// parentOptions lists records that may become id's parent: everything up to
// MaxParentOptions, minus id and its descendants. An empty id excludes nothing.
func (s *ConfigServer) parentOptions(ctx context.Context, id string) ([]*model.Configuration, error) {
	all, _, err := s.store.ListConfigurations(ctx, model.ConfigurationFilter{Limit: model.MaxParentOptions})
	if err != nil {
		return nil, fmt.Errorf("list parent options: %w", err)
	}
	return tree.ParentOptions(all, id), nil
}

// loadParent fetches c's parent, or nil for a root.
func (s *ConfigServer) loadParent(ctx context.Context, c *model.Configuration) (*model.Configuration, error) {
	if !c.HasParent() {
		return nil, nil
	}
	if !idgen.IsRecordID(c.ParentID()) {
		return nil, errParentNotFound
	}
	parent, err := s.store.GetConfiguration(ctx, c.ParentID())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errParentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get parent configuration: %w", err)
	}
	return parent, nil
}

// checkAncestry rejects parentID when it is id itself or one of id's
// descendants.
func (s *ConfigServer) checkAncestry(ctx context.Context, id, parentID string) error {
	if parentID == id {
		return errParentCycle
	}
	if !idgen.IsRecordID(parentID) {
		return errParentNotFound
	}
	ancestors, err := s.store.AncestorIDs(ctx, parentID)
	if err != nil {
		return fmt.Errorf("load ancestors: %w", err)
	}
	if slices.Contains(ancestors, id) {
		return errParentCycle
	}
	return nil
}

// checkRules runs the rule sections in order and stores the normalized
// default value and conditions on c.
func (s *ConfigServer) checkRules(c *model.Configuration, parent *model.Configuration) error {
	checked, err := rules.Check(rules.Submission{
		DataType:     c.DataType,
		Rules:        c.ValidationRules,
		DefaultValue: c.DefaultValue,
		Parent:       parent,
		Conditions:   c.ParentConditions,
	})
	if err != nil {
		return err
	}
	c.DefaultValue = checked.DefaultValue
	c.ParentConditions = checked.Conditions
	return nil
}

// health pings the store.
func (s *ConfigServer) health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.store.Ping(ctx)
}

type actorKey struct{}

// contextWithActor records who performed a request.
func contextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, strings.TrimSpace(actor))
}

func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
