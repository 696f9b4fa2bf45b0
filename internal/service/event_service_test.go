package service

import (
	"context"
	"modelhub/internal/mock"
	"modelhub/internal/models"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventService_Since(t *testing.T) {
	ctrl := gomock.NewController(t)
	events := mock.NewMockEventStore(ctrl)
	svc := NewEventService(events, testTimeout)
	caller := &models.User{ID: 3}

	events.EXPECT().GetEventsSince(gomock.Any(), int64(3), int64(0)).Return([]models.Event{{ID: 1}, {ID: 2}}, nil)
	list, err := svc.Since(context.Background(), caller, "")
	require.NoError(t, err)
	require.Len(t, list, 2)

	events.EXPECT().GetEventsSince(gomock.Any(), int64(3), int64(2)).Return([]models.Event{}, nil)
	list, err = svc.Since(context.Background(), caller, "2")
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = svc.Since(context.Background(), caller, "yesterday")
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Since(context.Background(), caller, "-1")
	require.ErrorIs(t, err, ErrValidation)
}
