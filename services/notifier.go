package services

import (
	"context"
	"errors"
	"log"

	"encrypted_match/models"
)

// Notifier receives session events after the record change they describe
// has been stored.
type Notifier interface {
	Notify(ctx context.Context, ev models.SessionEvent) error
}

type NotifierFunc func(ctx context.Context, ev models.SessionEvent) error

func (f NotifierFunc) Notify(ctx context.Context, ev models.SessionEvent) error { return f(ctx, ev) }

// Notifiers fans an event out to every notifier and joins their errors.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev models.SessionEvent) error {
	var errs []error
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes every event to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, ev models.SessionEvent) error {
	log.Printf("📣 Session %s: %s (state=%s)", ev.SessionKey, ev.Type, ev.State)
	return nil
}
