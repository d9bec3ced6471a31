// Package summary aggregates a subject's demographics, appointments and care team from the FHIR API into a Record.
package summary

// Record is the aggregated view of a subject. It is recomputed on every read and never stored.
// Optional fields are nil when the lookup that provides them failed or didn't contain the data.
type Record struct {
	ID      string   `json:"id"`
	Name    *string  `json:"name,omitempty"`
	Age     *int     `json:"age,omitempty"`
	DOB     *string  `json:"dob,omitempty"`
	Phones  []string `json:"phones,omitempty"`
	Emails  []string `json:"emails,omitempty"`
	Address *string  `json:"address,omitempty"`
	SSN     *string  `json:"ssn,omitempty"`
	// PastAppointments and UpcomingAppointments are nil if the search failed, and an empty list if it found nothing.
	PastAppointments     *[]Appointment `json:"past_appointments,omitempty"`
	UpcomingAppointments *[]Appointment `json:"upcoming_appointments,omitempty"`
	CareTeams            []CareTeam     `json:"care_teams,omitempty"`
	// Unauthorized is set when the FHIR API rejected the access token on any of the lookups.
	Unauthorized bool `json:"-"`
}

type Appointment struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Status      string `json:"status"`
	ServiceType string `json:"service_type"`
	Reason      string `json:"reason"`
}

type CareTeam struct {
	Practitioner string   `json:"practitioner"`
	Organization string   `json:"organization"`
	Role         []string `json:"role"`
	Locations    []string `json:"locations"`
}
