package cmd

import (
	"time"

	"eventhub/config"
	"eventhub/internal/store"
	"eventhub/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
)

// registerEventHooks guards event records written through the dashboard or the
// records API.
func registerEventHooks(app *pocketbase.PocketBase, cfg *config.Config) {
	app.OnRecordValidate(store.CollectionEvents).BindFunc(func(e *core.RecordEvent) error {
		ev, err := store.EventFromRecord(e.Record)
		if err != nil {
			return validation.Errors{"event": validation.NewError("validation_invalid_event", err.Error())}
		}

		var reserved int
		if !e.Record.IsNew() {
			reserved, err = store.NewPocketBaseStore(e.App).ReservedTickets(e.Context, ev.ID, time.Now())
			if err != nil {
				return err
			}
		}

		if err := checkEvent(ev, reserved, cfg.Location()); err != nil {
			return err
		}
		return e.Next()
	})
}

func checkEvent(ev *models.Event, reserved int, loc *time.Location) error {
	if err := ev.Validate(loc); err != nil {
		return validation.Errors{"event": validation.NewError("validation_invalid_event", err.Error())}
	}
	if err := ev.ValidateCapacity(reserved); err != nil {
		return validation.Errors{"capacity": validation.NewError("validation_capacity_below_reserved", err.Error())}
	}
	return nil
}
