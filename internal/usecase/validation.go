package usecase

import (
	"regexp"
	"strings"

	"github.com/xavierca1/linkedin-outreach/internal/entity"
)

var (
	linkedInProfileRe = regexp.MustCompile(`^https://www\.linkedin\.com/(in|sales/lead|sales/people)/[^/\s]+$`)
	providerHandleRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)
)

// ValidateStagedProspect checks the minimum fields a row needs to become a
// prospect: a name and a usable channel profile identifier.
func ValidateStagedProspect(row *entity.StagedProspect) []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(row.FirstName) == "" && strings.TrimSpace(row.LastName) == "" {
		errors = append(errors, ValidationError{"name", "is required"})
	}

	profile := entity.NormalizeProfileID(row.ProfileID)
	if profile == "" {
		errors = append(errors, ValidationError{"profile_id", "is required"})
	} else if !isValidProfileID(profile) {
		errors = append(errors, ValidationError{"profile_id", "must be a LinkedIn profile URL or provider handle"})
	}

	return errors
}

func isValidProfileID(profile string) bool {
	if strings.HasPrefix(profile, "https://") {
		return linkedInProfileRe.MatchString(profile)
	}
	return providerHandleRe.MatchString(profile)
}

func hasField(errs []ValidationError, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}
