package summary

import (
	"context"
	"time"

	"github.com/Simha-Reddy/SSVF-VetConnect/lib/logging"
	"github.com/Simha-Reddy/SSVF-VetConnect/recordclient"
	"github.com/Simha-Reddy/SSVF-VetConnect/tokenstore"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// CredentialRefresher obtains a new access token for a subject, e.g. *tokenstore.Refresher.
type CredentialRefresher interface {
	Refresh(ctx context.Context, subjectID string) (*tokenstore.Credential, error)
}

type Config struct {
	// RefreshOnUnauthorized makes the aggregator refresh the subject's access token and retry once
	// when the FHIR API rejects it.
	RefreshOnUnauthorized bool `koanf:"refreshonunauthorized"`
}

func DefaultConfig() Config {
	return Config{}
}

// Aggregator builds Records by running the four lookups concurrently.
type Aggregator struct {
	client    recordclient.Client
	refresher CredentialRefresher
	now       func() time.Time
}

// NewAggregator creates an Aggregator. refresher may be nil, in which case rejected access tokens aren't refreshed.
func NewAggregator(client recordclient.Client, refresher CredentialRefresher) *Aggregator {
	return &Aggregator{
		client:    client,
		refresher: refresher,
		now:       time.Now,
	}
}

// Build aggregates the Record of the subject. Failing lookups don't fail the whole: their fields are left out.
func (a *Aggregator) Build(ctx context.Context, subjectID string, accessToken string) Record {
	result := a.build(ctx, subjectID, accessToken)
	if !result.Unauthorized || a.refresher == nil {
		return result
	}
	credential, err := a.refresher.Refresh(ctx, subjectID)
	if err != nil {
		log.Warn().Ctx(ctx).Err(err).Msg("FHIR API rejected the subject's access token and refreshing it failed")
		return result
	}
	log.Info().Ctx(ctx).Msg("Refreshed subject's access token after FHIR API rejected it, retrying")
	return a.build(ctx, subjectID, credential.AccessToken)
}

func (a *Aggregator) build(ctx context.Context, subjectID string, accessToken string) Record {
	// Captured once, so past and upcoming appointments partition without gap or overlap.
	now := a.now()
	var sections Sections
	var group errgroup.Group
	group.Go(func() error {
		sections.Patient.Value, sections.Patient.Err = a.client.Patient(ctx, accessToken, subjectID)
		return nil
	})
	group.Go(func() error {
		sections.PastAppointments.Value, sections.PastAppointments.Err = a.client.Appointments(ctx, accessToken, subjectID, recordclient.Before(now))
		return nil
	})
	group.Go(func() error {
		sections.UpcomingAppointments.Value, sections.UpcomingAppointments.Err = a.client.Appointments(ctx, accessToken, subjectID, recordclient.OnOrAfter(now))
		return nil
	})
	group.Go(func() error {
		sections.PractitionerRoles.Value, sections.PractitionerRoles.Err = a.client.PractitionerRoles(ctx, accessToken, subjectID)
		return nil
	})
	_ = group.Wait()

	logFailure(ctx, "Patient", sections.Patient.Err)
	logFailure(ctx, "Appointment (past)", sections.PastAppointments.Err)
	logFailure(ctx, "Appointment (upcoming)", sections.UpcomingAppointments.Err)
	logFailure(ctx, "PractitionerRole", sections.PractitionerRoles.Err)

	result := Merge(subjectID, now, sections)
	result.Unauthorized = recordclient.IsUnauthorized(sections.Patient.Err) ||
		recordclient.IsUnauthorized(sections.PastAppointments.Err) ||
		recordclient.IsUnauthorized(sections.UpcomingAppointments.Err) ||
		recordclient.IsUnauthorized(sections.PractitionerRoles.Err)
	return result
}

func logFailure(ctx context.Context, section string, err error) {
	if err != nil {
		log.Warn().Ctx(ctx).Err(err).Str(logging.FieldResourceType, section).Msg("Leaving section out of subject summary, lookup failed")
	}
}

