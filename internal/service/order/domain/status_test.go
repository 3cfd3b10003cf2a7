package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusCreated, StatusPaymentPending, true},
		{StatusCreated, StatusCancelled, true},
		{StatusCreated, StatusPaymentConfirmed, false},
		{StatusCreated, StatusShipped, false},
		{StatusPaymentPending, StatusPaymentConfirmed, true},
		{StatusPaymentPending, StatusPaymentFailed, true},
		{StatusPaymentPending, StatusShipped, false},
		{StatusPaymentConfirmed, StatusShipped, true},
		{StatusPaymentConfirmed, StatusReadyToShip, true},
		{StatusPaymentConfirmed, StatusRefunded, true},
		{StatusPaymentConfirmed, StatusPaymentPending, false},
		{StatusPaymentFailed, StatusCancelled, true},
		{StatusPaymentFailed, StatusShipped, false},
		{StatusReadyToShip, StatusShipped, true},
		{StatusReadyToShip, StatusDelivered, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusRefunded, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusRefunded, true},
		{StatusCancelled, StatusPaymentPending, false},
		{StatusRefunded, StatusShipped, false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatesHaveNoOutgoingEdges(t *testing.T) {
	all := []Status{
		StatusCreated, StatusPaymentPending, StatusPaymentConfirmed, StatusPaymentFailed,
		StatusInventoryReserved, StatusInventoryReservationFailed,
		StatusReadyToShip, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded,
	}
	for _, terminal := range []Status{StatusCancelled, StatusRefunded} {
		for _, next := range all {
			assert.Falsef(t, terminal.CanTransitionTo(next), "terminal %s must not reach %s", terminal, next)
		}
	}
	// DELIVERED 是业务终态但保留退款这一条出边
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusDelivered.CanTransitionTo(StatusRefunded))
}

func TestPaymentSettled(t *testing.T) {
	assert.False(t, StatusCreated.PaymentSettled())
	assert.False(t, StatusPaymentPending.PaymentSettled())
	assert.True(t, StatusPaymentConfirmed.PaymentSettled())
	assert.True(t, StatusPaymentFailed.PaymentSettled())
	assert.True(t, StatusShipped.PaymentSettled())
}

func TestCancellable(t *testing.T) {
	assert.True(t, StatusCreated.Cancellable())
	assert.True(t, StatusPaymentPending.Cancellable())
	assert.True(t, StatusReadyToShip.Cancellable())
	assert.False(t, StatusShipped.Cancellable())
	assert.False(t, StatusDelivered.Cancellable())
	assert.False(t, StatusCancelled.Cancellable())
	assert.False(t, StatusRefunded.Cancellable())
}
