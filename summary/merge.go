package summary

import (
	"strings"
	"time"

	"github.com/Simha-Reddy/SSVF-VetConnect/lib/to"
	"github.com/Simha-Reddy/SSVF-VetConnect/recordclient"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// IdentifierTypeSystem is the HL7 v2 identifier type code system, SSNs are identified by code SS.
const IdentifierTypeSystem = "http://terminology.hl7.org/CodeSystem/v2-0203"

const daysPerYear = 365.25

// Result is the outcome of one lookup: a value, or the error that made it fail.
type Result[T any] struct {
	Value T
	Err   error
}

// Sections holds the outcomes of the four independent lookups a Record is merged from.
type Sections struct {
	Patient              Result[*fhir.Patient]
	PastAppointments     Result[[]recordclient.Appointment]
	UpcomingAppointments Result[[]recordclient.Appointment]
	PractitionerRoles    Result[[]fhir.PractitionerRole]
}

// Merge builds the Record of a subject from the lookup outcomes. A failed lookup leaves its fields out.
// now is the instant ages are computed against.
func Merge(subjectID string, now time.Time, sections Sections) Record {
	result := Record{ID: subjectID}
	if sections.Patient.Err == nil && sections.Patient.Value != nil {
		mergePatient(&result, now, *sections.Patient.Value)
	}
	if sections.PastAppointments.Err == nil {
		result.PastAppointments = to.Ptr(appointments(sections.PastAppointments.Value))
	}
	if sections.UpcomingAppointments.Err == nil {
		result.UpcomingAppointments = to.Ptr(appointments(sections.UpcomingAppointments.Value))
	}
	if sections.PractitionerRoles.Err == nil {
		result.CareTeams = careTeams(sections.PractitionerRoles.Value)
	}
	return result
}

func mergePatient(result *Record, now time.Time, patient fhir.Patient) {
	if len(patient.Name) > 0 {
		// present even when the entry has no given or family name
		result.Name = to.Ptr(FormatName(patient.Name[0]))
	}
	if patient.BirthDate != nil {
		result.DOB = to.Ptr(*patient.BirthDate)
		if birthDate, err := time.Parse(time.DateOnly, *patient.BirthDate); err == nil {
			result.Age = to.Ptr(Age(birthDate, now))
		}
	}
	for _, telecom := range patient.Telecom {
		if telecom.System == nil || telecom.Value == nil {
			continue
		}
		switch *telecom.System {
		case fhir.ContactPointSystemPhone:
			result.Phones = append(result.Phones, *telecom.Value)
		case fhir.ContactPointSystemEmail:
			result.Emails = append(result.Emails, *telecom.Value)
		}
	}
	if len(patient.Address) > 0 {
		result.Address = to.Ptr(FormatAddress(patient.Address[0]))
	}
	result.SSN = ssn(patient.Identifier)
}

// FormatName returns the first given name followed by the family name.
func FormatName(name fhir.HumanName) string {
	var given string
	if len(name.Given) > 0 {
		given = name.Given[0]
	}
	return strings.TrimSpace(given + " " + to.Empty(name.Family))
}

// FormatAddress formats an address as "<lines>, <city>, <state>, <postal code>".
func FormatAddress(address fhir.Address) string {
	return strings.Join(address.Line, ", ") + ", " + to.Empty(address.City) + ", " + to.Empty(address.State) + ", " + to.Empty(address.PostalCode)
}

// Age returns the whole number of years between birthDate and now, counting 365.25 days per year.
func Age(birthDate time.Time, now time.Time) int {
	days := int(now.Sub(birthDate).Hours() / 24)
	return int(float64(days) / daysPerYear)
}

func ssn(identifiers []fhir.Identifier) *string {
	for _, identifier := range identifiers {
		if identifier.Type == nil || identifier.Value == nil || *identifier.Value == "" {
			continue
		}
		for _, coding := range identifier.Type.Coding {
			if to.Empty(coding.System) == IdentifierTypeSystem && to.Empty(coding.Code) == "SS" {
				return to.Ptr(*identifier.Value)
			}
		}
	}
	return nil
}

// appointments converts the appointments that have a start time. It never returns nil.
func appointments(resources []recordclient.Appointment) []Appointment {
	result := make([]Appointment, 0, len(resources))
	for _, resource := range resources {
		if resource.Start == nil || *resource.Start == "" {
			continue
		}
		result = append(result, Appointment{
			Date:        *resource.Start,
			Description: to.Empty(resource.Description),
			Status:      resource.Status,
			ServiceType: joinTexts(resource.ServiceType),
			Reason:      joinTexts(resource.ReasonCode),
		})
	}
	return result
}

func careTeams(roles []fhir.PractitionerRole) []CareTeam {
	var result []CareTeam
	for _, role := range roles {
		team := CareTeam{
			Role:      make([]string, 0, len(role.Code)),
			Locations: make([]string, 0, len(role.Location)),
		}
		if role.Practitioner != nil {
			team.Practitioner = to.Empty(role.Practitioner.Display)
		}
		if role.Organization != nil {
			team.Organization = to.Empty(role.Organization.Display)
		}
		for _, code := range role.Code {
			team.Role = append(team.Role, to.Empty(code.Text))
		}
		for _, location := range role.Location {
			team.Locations = append(team.Locations, to.Empty(location.Display))
		}
		result = append(result, team)
	}
	return result
}

func joinTexts(concepts []fhir.CodeableConcept) string {
	texts := make([]string, 0, len(concepts))
	for _, concept := range concepts {
		texts = append(texts, to.Empty(concept.Text))
	}
	return strings.Join(texts, ", ")
}
