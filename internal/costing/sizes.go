package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"menucost/models"
)

// ValidateSizeGroup enforces exactly one reference option and positive
// multipliers.
func ValidateSizeGroup(group *models.SizeGroup) error {
	references := 0
	for _, option := range group.Options {
		if option.Multiplier.Sign() <= 0 {
			return fmt.Errorf("%w: option %q multiplier %s", ErrInvalidSizeGroup, option.Name, option.Multiplier)
		}
		if option.IsReference {
			references++
		}
	}
	switch {
	case references == 0:
		return fmt.Errorf("%w: group %d", ErrOrphanedSizeReference, group.ID)
	case references > 1:
		return fmt.Errorf("%w: group %d has %d reference options", ErrInvalidSizeGroup, group.ID, references)
	}
	return nil
}

// ReferenceOption returns the reference option of a valid group.
func ReferenceOption(group *models.SizeGroup) (models.SizeOption, error) {
	if err := ValidateSizeGroup(group); err != nil {
		return models.SizeOption{}, err
	}
	for _, option := range group.Options {
		if option.IsReference {
			return option, nil
		}
	}
	return models.SizeOption{}, fmt.Errorf("%w: group %d", ErrOrphanedSizeReference, group.ID)
}

// ScaleCost derives the cost of option from the reference cost.
func ScaleCost(referenceCost decimal.Decimal, option, reference models.SizeOption) decimal.Decimal {
	if option.ID == reference.ID || option.Multiplier.Equal(reference.Multiplier) {
		return referenceCost
	}
	return referenceCost.Mul(option.Multiplier).DivRound(reference.Multiplier, CostScale)
}

// DeriveSizeCosts returns the cost of every option in the group keyed by
// option id.
func DeriveSizeCosts(referenceCost decimal.Decimal, group *models.SizeGroup) (map[uint]decimal.Decimal, error) {
	reference, err := ReferenceOption(group)
	if err != nil {
		return nil, err
	}
	costs := make(map[uint]decimal.Decimal, len(group.Options))
	for _, option := range group.Options {
		costs[option.ID] = ScaleCost(referenceCost, option, reference)
	}
	return costs, nil
}

// PromoteReference makes optionID the single reference option of the group.
func PromoteReference(group *models.SizeGroup, optionID uint) error {
	if _, ok := findOption(group, optionID); !ok {
		return fmt.Errorf("%w: size option %d is not in group %d", ErrMissingComponent, optionID, group.ID)
	}
	for i := range group.Options {
		group.Options[i].IsReference = group.Options[i].ID == optionID
	}
	return ValidateSizeGroup(group)
}

// RemoveOption drops an option from the group. Removing the reference
// requires a successor, which is promoted first.
func RemoveOption(group *models.SizeGroup, optionID uint, successorID *uint) error {
	option, ok := findOption(group, optionID)
	if !ok {
		return fmt.Errorf("%w: size option %d is not in group %d", ErrMissingComponent, optionID, group.ID)
	}
	if option.IsReference {
		if successorID == nil || *successorID == optionID {
			return fmt.Errorf("%w: removing reference option %d needs a successor", ErrOrphanedSizeReference, optionID)
		}
		if err := PromoteReference(group, *successorID); err != nil {
			return err
		}
	}

	kept := group.Options[:0]
	for _, candidate := range group.Options {
		if candidate.ID != optionID {
			kept = append(kept, candidate)
		}
	}
	group.Options = kept
	return ValidateSizeGroup(group)
}

func findOption(group *models.SizeGroup, optionID uint) (models.SizeOption, bool) {
	for _, option := range group.Options {
		if option.ID == optionID {
			return option, true
		}
	}
	return models.SizeOption{}, false
}
