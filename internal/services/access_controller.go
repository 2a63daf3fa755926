package services

import (
	"context"
	"fmt"
	"log"

	"acey/internal/models"
)

// EntitlementProvider is the boundary to the installation/trial/override
// systems. Implementations live outside the pipeline; the controller only
// consumes lookups.
type EntitlementProvider interface {
	GetInstalledSkills(ctx context.Context, userID string) ([]string, error)
	CheckTrialAccess(ctx context.Context, userID, skillID string) (bool, error)
	CheckEnterpriseOverride(ctx context.Context, userID, skillID string) (bool, error)
}

// AccessDecision is the tagged outcome of an authorization check: either the
// full permission set, or the first denial encountered. Denial is an expected,
// frequent outcome and is not modeled as an error.
type AccessDecision struct {
	Allowed      bool                        `json:"allowed"`
	Permissions  []string                    `json:"permissions,omitempty"`
	SkillName    string                      `json:"skill_name,omitempty"`
	Reason       string                      `json:"reason,omitempty"`
	RequiredTier string                      `json:"required_tier,omitempty"`
	Decisions    []models.PermissionDecision `json:"decisions"`
}

// ConfigurationError marks a deployment bug: an intent routed to a skill ID
// that was never registered. Fatal; propagated unmodified.
type ConfigurationError struct {
	SkillID string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("skill %q is not registered: configuration error", e.SkillID)
}

// AccessController evaluates tier hierarchy, installation status, trial
// eligibility and enterprise overrides for the skills a message requires.
type AccessController struct {
	entitlements EntitlementProvider
}

// NewAccessController creates an access controller backed by the given
// entitlement provider
func NewAccessController(entitlements EntitlementProvider) *AccessController {
	return &AccessController{entitlements: entitlements}
}

// Authorize evaluates every required skill in order. The first denial stops
// evaluation; success across all skills returns the deduplicated union of
// their permission strings. A missing manifest is a ConfigurationError, not
// a denial.
func (a *AccessController) Authorize(ctx context.Context, snapshot *RegistrySnapshot, user *models.User, requiredSkillIDs []string) (*AccessDecision, error) {
	decision := &AccessDecision{Allowed: true}
	seen := map[string]bool{}

	for _, skillID := range requiredSkillIDs {
		manifest := snapshot.Get(skillID)
		if manifest == nil {
			return nil, &ConfigurationError{SkillID: skillID}
		}

		perm := a.evaluateSkill(ctx, manifest, user)
		decision.Decisions = append(decision.Decisions, perm)

		if !perm.Allowed {
			decision.Allowed = false
			decision.SkillName = manifest.DisplayName
			decision.Reason = perm.Reason
			decision.RequiredTier = perm.RequiredTier
			decision.Permissions = nil
			log.Printf("🔒 [ACCESS] Denied %s for user %s: %s", skillID, user.ID, perm.Reason)
			return decision, nil
		}

		for _, p := range manifest.Permissions {
			if !seen[p] {
				seen[p] = true
				decision.Permissions = append(decision.Permissions, p)
			}
		}
	}

	return decision, nil
}

// evaluateSkill produces one PermissionDecision for a single skill
func (a *AccessController) evaluateSkill(ctx context.Context, manifest *models.SkillManifest, user *models.User) models.PermissionDecision {
	decision := models.PermissionDecision{SkillID: manifest.ID}

	// Enterprise override grants access unconditionally
	if a.entitlements != nil {
		if ok, err := a.entitlements.CheckEnterpriseOverride(ctx, user.ID, manifest.ID); err == nil && ok {
			decision.Allowed = true
			return decision
		}
	}

	if !models.TierAtLeast(user.TierID, manifest.MinimumTier) {
		decision.Allowed = false
		decision.Reason = fmt.Sprintf("Requires %s tier or higher", models.TierDisplayName(manifest.MinimumTier))
		decision.RequiredTier = manifest.MinimumTier
		return decision
	}

	// Free skills need no installation
	if manifest.MinimumTier == models.TierFree {
		decision.Allowed = true
		return decision
	}

	if a.isInstalled(ctx, user, manifest.ID) {
		decision.Allowed = true
		return decision
	}

	// Not installed: a trial may still grant temporary access
	if a.entitlements != nil {
		if ok, err := a.entitlements.CheckTrialAccess(ctx, user.ID, manifest.ID); err == nil && ok {
			decision.Allowed = true
			return decision
		}
	}

	decision.Allowed = false
	decision.Reason = "Skill must be installed from Skill Store"
	decision.RequiredTier = manifest.MinimumTier
	return decision
}

// isInstalled checks the inline set from the auth layer first, then the
// external installation lookup
func (a *AccessController) isInstalled(ctx context.Context, user *models.User, skillID string) bool {
	if user.HasInstalled(skillID) {
		return true
	}
	if a.entitlements == nil {
		return false
	}
	installed, err := a.entitlements.GetInstalledSkills(ctx, user.ID)
	if err != nil {
		log.Printf("⚠️ [ACCESS] Installed-skill lookup failed for user %s: %v", user.ID, err)
		return false
	}
	for _, id := range installed {
		if id == skillID {
			return true
		}
	}
	return false
}
