package plans

import (
	"errors"
	"fmt"
	"sort"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/angelmondragon/shopdesk-backend/pkg/types"
)

// Capability names a feature whose availability depends on the shop tier.
type Capability string

const (
	CapabilityCatalogUnlimited   Capability = "catalog_unlimited"
	CapabilityStaffAccounts      Capability = "staff_accounts"
	CapabilityCategories         Capability = "categories"
	CapabilityMultiShop          Capability = "multi_shop"
	CapabilityAdvancedAccounting Capability = "advanced_accounting"
	CapabilityAccountingExport   Capability = "accounting_export"
	CapabilityTaxModule          Capability = "tax_module"
)

// minimumTiers is the single source of truth for feature gating. A capability
// granted at a tier is granted at every tier above it.
var minimumTiers = map[Capability]enums.PlanTier{
	CapabilityCatalogUnlimited:   enums.PlanMedium,
	CapabilityStaffAccounts:      enums.PlanPro,
	CapabilityCategories:         enums.PlanPro,
	CapabilityMultiShop:          enums.PlanPro,
	CapabilityAdvancedAccounting: enums.PlanMedium,
	CapabilityAccountingExport:   enums.PlanPro,
	CapabilityTaxModule:          enums.PlanProPlus,
}

var upgradeMessages = map[Capability]string{
	CapabilityCatalogUnlimited:   "Your plan's product limit has been reached. Upgrade to add more products.",
	CapabilityStaffAccounts:      "Staff accounts are available from the Pro plan.",
	CapabilityCategories:         "Product categories are available from the Pro plan.",
	CapabilityMultiShop:          "Managing several shops is available from the Pro plan.",
	CapabilityAdvancedAccounting: "Advanced accounting is available from the Medium plan.",
	CapabilityAccountingExport:   "Accounting exports are available from the Pro plan.",
	CapabilityTaxModule:          "The tax module is available on the Pro+ plan.",
}

func (c Capability) String() string {
	return string(c)
}

func (c Capability) IsValid() bool {
	_, ok := minimumTiers[c]
	return ok
}

// Capabilities lists every gated capability in a stable order.
func Capabilities() []Capability {
	out := make([]Capability, 0, len(minimumTiers))
	for c := range minimumTiers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MinimumTier returns the lowest tier that grants capability.
func MinimumTier(capability Capability) (enums.PlanTier, bool) {
	tier, ok := minimumTiers[capability]
	return tier, ok
}

// Allows reports whether tier grants capability. Unknown tiers and unknown
// capabilities are denied.
func Allows(tier enums.PlanTier, capability Capability) bool {
	min, ok := minimumTiers[capability]
	if !ok {
		return false
	}
	return tier.AtLeast(min)
}

// UpgradeRequired is returned when a policy denies an operation because of
// the shop's tier. It is rendered as an upgrade prompt rather than a failure.
type UpgradeRequired struct {
	Capability   Capability
	CurrentTier  enums.PlanTier
	RequiredTier enums.PlanTier
	Message      string
}

func (e *UpgradeRequired) Error() string {
	return fmt.Sprintf("upgrade required: %s needs %s plan (current %s)", e.Capability, e.RequiredTier, e.CurrentTier)
}

// Prompt converts the denial into the response body shown to clients.
func (e *UpgradeRequired) Prompt() types.UpgradePrompt {
	return types.UpgradePrompt{
		Capability:   e.Capability.String(),
		CurrentTier:  e.CurrentTier.String(),
		RequiredTier: e.RequiredTier.String(),
		Message:      e.Message,
	}
}

// Check returns nil when tier grants capability, otherwise the denial.
func Check(tier enums.PlanTier, capability Capability) *UpgradeRequired {
	if Allows(tier, capability) {
		return nil
	}
	required, ok := minimumTiers[capability]
	if !ok {
		required = enums.PlanProPlus
	}
	return &UpgradeRequired{
		Capability:   capability,
		CurrentTier:  tier,
		RequiredTier: required,
		Message:      upgradeMessages[capability],
	}
}

// AsUpgradeRequired extracts an upgrade denial from an error chain.
func AsUpgradeRequired(err error) (*UpgradeRequired, bool) {
	var target *UpgradeRequired
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
