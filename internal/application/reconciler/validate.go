package reconciler

import (
	"regexp"

	"github.com/K33P-repo/k33p-backend/internal/domain"
	"github.com/K33P-repo/k33p-backend/internal/domain/models"
)

var (
	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)
	phonePattern  = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	pinPattern    = regexp.MustCompile(`^[0-9]{4}$`)
)

var biometricTypes = map[models.BiometricType]bool{
	models.BiometricFace:        true,
	models.BiometricFingerprint: true,
	models.BiometricVoice:       true,
	models.BiometricIris:        true,
}

// validateSignup checks every input before any state is mutated.
func validateSignup(req *models.SignupRequest) error {
	if req.UserAddress == "" {
		return domain.NewValidationError("user_address", "must not be empty")
	}
	if !userIDPattern.MatchString(req.UserID) {
		return domain.NewValidationError("user_id", "must be 3-32 characters of letters, digits or underscore")
	}
	if !phonePattern.MatchString(req.Phone) {
		return domain.NewValidationError("phone", "must be a plausible phone number")
	}

	switch req.Method {
	case "", models.MethodPhone:
		// Phone-only signup needs nothing beyond the phone itself.
	case models.MethodPIN:
		if !pinPattern.MatchString(req.PIN) {
			return domain.NewValidationError("pin", "must be exactly 4 digits")
		}
	case models.MethodBiometric:
		if req.Biometric == "" {
			return domain.NewValidationError("biometric_data", "must not be empty")
		}
		if !biometricTypes[req.BiometricType] {
			return domain.NewValidationError("biometric_type", "unrecognized biometric type")
		}
	default:
		return domain.NewValidationError("verification_method", "unrecognized verification method")
	}

	return nil
}
