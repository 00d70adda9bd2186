package service

import (
	"testing"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTransitionAllowed(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{models.OrderStatusPending, models.OrderStatusConfirmed, true},
		{models.OrderStatusPending, models.OrderStatusShipped, true},
		{models.OrderStatusPending, models.OrderStatusCancelled, true},
		{models.OrderStatusConfirmed, models.OrderStatusConfirmed, false},
		{models.OrderStatusConfirmed, models.OrderStatusShipped, true},
		{models.OrderStatusPartial, models.OrderStatusShipped, true},
		{models.OrderStatusPartial, models.OrderStatusPartial, true},
		{models.OrderStatusPartial, models.OrderStatusCancelled, false},
		{models.OrderStatusShipped, models.OrderStatusCancelled, true},
		{models.OrderStatusShipped, models.OrderStatusDelivered, true},
		{models.OrderStatusShipped, models.OrderStatusPending, false},
		{models.OrderStatusDelivered, models.OrderStatusShipped, false},
		{models.OrderStatusCancelled, models.OrderStatusPending, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, transitionAllowed(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestDeriveOrderStatus(t *testing.T) {
	pending := models.OrderLine{Status: models.LineStatusPending}
	shipped := models.OrderLine{Status: models.LineStatusShipped}

	assert.Equal(t, models.OrderStatusPending, deriveOrderStatus(nil))
	assert.Equal(t, models.OrderStatusPending, deriveOrderStatus([]models.OrderLine{pending, pending}))
	assert.Equal(t, models.OrderStatusPartial, deriveOrderStatus([]models.OrderLine{shipped, pending}))
	assert.Equal(t, models.OrderStatusShipped, deriveOrderStatus([]models.OrderLine{shipped, shipped}))
}
