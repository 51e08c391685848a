package services

import (
	"log"

	"dca_flow_app_go/models"

	"gorm.io/gorm"
)

// regionFieldKeys are the payload keys that would mutate a record's
// region. Region is set once at creation and never changes afterwards.
var regionFieldKeys = []string{"region", "region_id"}

// StripRegionFields removes region keys from an update payload before it
// reaches persistence. Each stripped key is logged: a client sending one
// is either buggy or probing. Returns the stripped key names.
func StripRegionFields(payload map[string]interface{}) []string {
	var stripped []string
	for _, key := range regionFieldKeys {
		if _, present := payload[key]; present {
			delete(payload, key)
			stripped = append(stripped, key)
			log.Printf("[REGION] Stripped immutable field %q from update payload", key)
		}
	}
	return stripped
}

// RejectIfRegionMutation is the stricter variant used at the API
// boundary: any region key in an update payload fails the whole request
// with REGION_IMMUTABLE so the caller knows instead of being silently
// corrected.
func RejectIfRegionMutation(payload map[string]interface{}) error {
	var present []string
	for _, key := range regionFieldKeys {
		if _, ok := payload[key]; ok {
			present = append(present, key)
		}
	}
	if len(present) > 0 {
		return NewDomainErrorWithDetails(
			ErrCodeRegionImmutable,
			"region cannot be changed after creation",
			map[string]interface{}{"rejected_fields": present},
		)
	}
	return nil
}

// ValidateRegionForInsert ensures a creation payload names a region,
// either by id or by region code, and resolves it to an existing active
// region. Returns the resolved region.
func ValidateRegionForInsert(db *gorm.DB, payload map[string]interface{}) (*models.Region, error) {
	if id, ok := payload["region_id"].(string); ok && id != "" {
		var region models.Region
		if err := db.First(&region, "id = ? AND is_active = ?", id, true).Error; err != nil {
			return nil, NewDomainError(ErrCodeValidation, "region_id does not reference an active region")
		}
		return &region, nil
	}

	if code, ok := payload["region_code"].(string); ok && code != "" {
		var region models.Region
		if err := db.First(&region, "code = ? AND is_active = ?", code, true).Error; err != nil {
			return nil, NewDomainError(ErrCodeValidation, "region_code does not reference an active region")
		}
		return &region, nil
	}

	return nil, NewDomainError(ErrCodeValidation, "a region (region_id or region_code) is required at creation")
}
