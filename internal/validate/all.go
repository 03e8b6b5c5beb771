package validate

import (
	"context"
	"sync"

	"github.com/leadforge/leadgen-cli/internal/model"
	"golang.org/x/sync/errgroup"
)

// Validator bundles the field validators behind one entry point.
type Validator struct {
	Phone   *PhoneValidator
	Email   *EmailValidator
	Website *WebsiteValidator
}

// NewValidator returns a validator for the given default phone
// country.
func NewValidator(defaultCountry string) *Validator {
	return &Validator{
		Phone:   NewPhoneValidator(defaultCountry),
		Email:   NewEmailValidator(),
		Website: NewWebsiteValidator(),
	}
}

// Levels selects a validation level per field, so a caller can force
// one contact check deeper or shallower than the rest.
type Levels struct {
	Phone   Level
	Email   Level
	Website Level
}

// UniformLevels applies the same level to every field.
func UniformLevels(level Level) Levels {
	return Levels{Phone: level, Email: level, Website: level}
}

func (l Levels) forField(field string) Level {
	switch field {
	case "phone":
		return l.Phone
	case "email":
		return l.Email
	case "website":
		return l.Website
	}
	return LevelBasic
}

// ValidateAll validates whichever of phone, email and website are
// present on the lead, at the requested level. Basic stays offline;
// standard and premium run their network checks concurrently. A check
// that panics or errors internally yields a zero-confidence result
// rather than failing the batch.
func (v *Validator) ValidateAll(ctx context.Context, lead *model.Lead, level Level) map[string]Result {
	return v.ValidateFields(ctx, lead, UniformLevels(level))
}

// ValidateFields is ValidateAll with a per-field level choice.
func (v *Validator) ValidateFields(ctx context.Context, lead *model.Lead, levels Levels) map[string]Result {
	results := make(map[string]Result)
	var mu sync.Mutex
	set := func(field string, r Result) {
		mu.Lock()
		results[field] = r
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)

	if lead.Phone != "" {
		if levels.Phone == LevelBasic {
			set("phone", v.Phone.ValidateFormat(lead.Phone, lead.Country))
		} else {
			g.Go(func() error {
				set("phone", v.Phone.ValidateCarrier(lead.Phone, lead.Country))
				return nil
			})
		}
	}

	if lead.Email != "" {
		switch levels.Email {
		case LevelBasic:
			set("email", v.Email.ValidateFormat(lead.Email))
		case LevelStandard:
			g.Go(func() error {
				set("email", v.Email.ValidateMX(ctx, lead.Email))
				return nil
			})
		default:
			g.Go(func() error {
				set("email", v.Email.ValidateSMTP(ctx, lead.Email))
				return nil
			})
		}
	}

	if lead.Website != "" {
		if levels.Website == LevelBasic {
			set("website", v.Website.ValidateFormat(lead.Website))
		} else {
			g.Go(func() error {
				set("website", v.Website.ValidateHTTP(ctx, lead.Website))
				return nil
			})
		}
	}

	g.Wait()
	return results
}

// Apply writes validation results onto the lead's validation map in
// the compact per-field form carried through the pipeline.
func Apply(lead *model.Lead, results map[string]Result, level Level) {
	ApplyLevels(lead, results, UniformLevels(level))
}

// ApplyLevels is Apply for results gathered at per-field levels; each
// field's method records the level it was actually checked at.
func ApplyLevels(lead *model.Lead, results map[string]Result, levels Levels) {
	if len(results) == 0 {
		return
	}
	if lead.Validation == nil {
		lead.Validation = make(map[string]model.FieldValidation, len(results))
	}
	for field, r := range results {
		fv := model.FieldValidation{
			Valid:  r.IsValid,
			Score:  r.Confidence,
			Method: string(levels.forField(field)),
		}
		if r.Error != "" {
			fv.Detail = r.Error
		} else if reason, ok := r.Details["reason"].(string); ok {
			fv.Detail = reason
		} else if warning, ok := r.Details["warning"].(string); ok {
			fv.Detail = warning
		}
		lead.Validation[field] = fv
	}
}
