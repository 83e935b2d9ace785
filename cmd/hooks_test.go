package cmd

import (
	"testing"
	"time"

	"eventhub/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckEvent(t *testing.T) {
	valid := func() *models.Event {
		return &models.Event{
			ID:        "ev1",
			Date:      "2026-10-20",
			StartTime: "09:00",
			EndTime:   "17:00",
			Capacity:  10,
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, checkEvent(valid(), 3, time.UTC))
	})

	t.Run("bad schedule", func(t *testing.T) {
		ev := valid()
		ev.EndTime = "08:00"
		err := checkEvent(ev, 0, time.UTC)
		var verrs validation.Errors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "event")
	})

	t.Run("capacity below reserved", func(t *testing.T) {
		ev := valid()
		ev.Capacity = 2
		err := checkEvent(ev, 3, time.UTC)
		var verrs validation.Errors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "capacity")
	})

	t.Run("unlimited capacity", func(t *testing.T) {
		ev := valid()
		ev.Capacity = 0
		assert.NoError(t, checkEvent(ev, 500, time.UTC))
	})
}
