package summary

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Simha-Reddy/SSVF-VetConnect/recordclient"
	"github.com/Simha-Reddy/SSVF-VetConnect/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type refresherFunc func(ctx context.Context, subjectID string) (*tokenstore.Credential, error)

func (f refresherFunc) Refresh(ctx context.Context, subjectID string) (*tokenstore.Credential, error) {
	return f(ctx, subjectID)
}

func newTestAggregator(client recordclient.Client, refresher CredentialRefresher) *Aggregator {
	aggregator := NewAggregator(client, refresher)
	aggregator.now = func() time.Time { return now }
	return aggregator
}

func TestAggregator_Build(t *testing.T) {
	ctx := context.Background()
	unauthorized := &recordclient.Failure{StatusCode: http.StatusUnauthorized}
	t.Run("all lookups succeed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := recordclient.NewMockClient(ctrl)
		client.EXPECT().Patient(gomock.Any(), "access", subjectID).Return(patient(), nil)
		client.EXPECT().Appointments(gomock.Any(), "access", subjectID, recordclient.Before(now)).Return(pastAppointments(), nil)
		client.EXPECT().Appointments(gomock.Any(), "access", subjectID, recordclient.OnOrAfter(now)).Return(upcomingAppointments(), nil)
		client.EXPECT().PractitionerRoles(gomock.Any(), "access", subjectID).Return(practitionerRoles(), nil)

		actual := newTestAggregator(client, nil).Build(ctx, subjectID, "access")

		assert.Equal(t, Merge(subjectID, now, allSections()), actual)
		assert.False(t, actual.Unauthorized)
	})
	t.Run("all lookups fail", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := recordclient.NewMockClient(ctrl)
		client.EXPECT().Patient(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, &recordclient.Failure{StatusCode: http.StatusInternalServerError})
		client.EXPECT().Appointments(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused")).Times(2)
		client.EXPECT().PractitionerRoles(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, &recordclient.Failure{StatusCode: http.StatusForbidden})

		actual := newTestAggregator(client, nil).Build(ctx, subjectID, "access")

		assert.Equal(t, Record{ID: subjectID}, actual)
	})
	t.Run("only past appointments lookup fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := recordclient.NewMockClient(ctrl)
		client.EXPECT().Patient(gomock.Any(), gomock.Any(), gomock.Any()).Return(patient(), nil)
		client.EXPECT().Appointments(gomock.Any(), gomock.Any(), gomock.Any(), recordclient.Before(now)).Return(nil, &recordclient.Failure{StatusCode: http.StatusForbidden})
		client.EXPECT().Appointments(gomock.Any(), gomock.Any(), gomock.Any(), recordclient.OnOrAfter(now)).Return(upcomingAppointments(), nil)
		client.EXPECT().PractitionerRoles(gomock.Any(), gomock.Any(), gomock.Any()).Return(practitionerRoles(), nil)

		actual := newTestAggregator(client, nil).Build(ctx, subjectID, "access")

		assert.Nil(t, actual.PastAppointments)
		assert.Equal(t, "John Doe", *actual.Name)
		assert.Len(t, *actual.UpcomingAppointments, 1)
		assert.Len(t, actual.CareTeams, 2)
	})
	t.Run("unauthorized without refresher", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := recordclient.NewMockClient(ctrl)
		client.EXPECT().Patient(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, unauthorized)
		client.EXPECT().Appointments(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, unauthorized).Times(2)
		client.EXPECT().PractitionerRoles(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, unauthorized)

		actual := newTestAggregator(client, nil).Build(ctx, subjectID, "access")

		assert.True(t, actual.Unauthorized)
		assert.Nil(t, actual.Name)
	})
	t.Run("unauthorized, retried with refreshed access token", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := recordclient.NewMockClient(ctrl)
		client.EXPECT().Patient(gomock.Any(), "expired", subjectID).Return(nil, unauthorized)
		client.EXPECT().Appointments(gomock.Any(), "expired", subjectID, gomock.Any()).Return(nil, unauthorized).Times(2)
		client.EXPECT().PractitionerRoles(gomock.Any(), "expired", subjectID).Return(nil, unauthorized)
		client.EXPECT().Patient(gomock.Any(), "fresh", subjectID).Return(patient(), nil)
		client.EXPECT().Appointments(gomock.Any(), "fresh", subjectID, gomock.Any()).Return(nil, nil).Times(2)
		client.EXPECT().PractitionerRoles(gomock.Any(), "fresh", subjectID).Return(nil, nil)
		refresher := refresherFunc(func(_ context.Context, id string) (*tokenstore.Credential, error) {
			require.Equal(t, subjectID, id)
			return &tokenstore.Credential{AccessToken: "fresh"}, nil
		})

		actual := newTestAggregator(client, refresher).Build(ctx, subjectID, "expired")

		assert.False(t, actual.Unauthorized)
		assert.Equal(t, "John Doe", *actual.Name)
	})
	t.Run("unauthorized, refresh fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		client := recordclient.NewMockClient(ctrl)
		client.EXPECT().Patient(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, unauthorized)
		client.EXPECT().Appointments(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
		client.EXPECT().PractitionerRoles(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
		refresher := refresherFunc(func(context.Context, string) (*tokenstore.Credential, error) {
			return nil, tokenstore.ErrNoRefreshToken
		})

		actual := newTestAggregator(client, refresher).Build(ctx, subjectID, "expired")

		assert.True(t, actual.Unauthorized)
		assert.Empty(t, *actual.PastAppointments)
	})
}
