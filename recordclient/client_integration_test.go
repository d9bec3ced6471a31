//go:build slowtests

package recordclient

import (
	"context"
	"testing"
	"time"

	"github.com/Simha-Reddy/SSVF-VetConnect/lib/test"
	"github.com/Simha-Reddy/SSVF-VetConnect/lib/to"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

func TestFHIRClient_HAPI(t *testing.T) {
	ctx := context.Background()
	fhirBaseURL := test.SetupHAPI(t)
	now := time.Now()

	test.PutResource(t, fhirBaseURL, "Patient/"+subjectID, fhir.Patient{
		Id:        to.Ptr(subjectID),
		Name:      []fhir.HumanName{{Given: []string{"John"}, Family: to.Ptr("Doe")}},
		BirthDate: to.Ptr("1980-01-01"),
	})
	test.PutResource(t, fhirBaseURL, "Appointment/past", fhir.Appointment{
		Id:          to.Ptr("past"),
		Status:      fhir.AppointmentStatusFulfilled,
		Start:       to.Ptr(now.Add(-24 * time.Hour).UTC().Format(time.RFC3339)),
		End:         to.Ptr(now.Add(-23 * time.Hour).UTC().Format(time.RFC3339)),
		Description: to.Ptr("Past checkup"),
		Participant: []fhir.AppointmentParticipant{{
			Actor:  &fhir.Reference{Reference: to.Ptr("Patient/" + subjectID)},
			Status: fhir.ParticipationStatusAccepted,
		}},
	})
	test.PutResource(t, fhirBaseURL, "Appointment/upcoming", fhir.Appointment{
		Id:          to.Ptr("upcoming"),
		Status:      fhir.AppointmentStatusBooked,
		Start:       to.Ptr(now.Add(24 * time.Hour).UTC().Format(time.RFC3339)),
		End:         to.Ptr(now.Add(25 * time.Hour).UTC().Format(time.RFC3339)),
		Description: to.Ptr("Upcoming checkup"),
		Participant: []fhir.AppointmentParticipant{{
			Actor:  &fhir.Reference{Reference: to.Ptr("Patient/" + subjectID)},
			Status: fhir.ParticipationStatusAccepted,
		}},
	})

	client, err := New(Config{BaseURL: fhirBaseURL.String(), Timeout: 30 * time.Second})
	require.NoError(t, err)

	patient, err := client.Patient(ctx, "access", subjectID)
	require.NoError(t, err)
	assert.Equal(t, "Doe", *patient.Name[0].Family)

	past, err := client.Appointments(ctx, "access", subjectID, Before(now))
	require.NoError(t, err)
	require.Len(t, past, 1)
	assert.Equal(t, "Past checkup", *past[0].Description)

	upcoming, err := client.Appointments(ctx, "access", subjectID, OnOrAfter(now))
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Upcoming checkup", *upcoming[0].Description)

	_, err = client.Patient(ctx, "access", "unknown")
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 404, failure.StatusCode)
}
