package billing

// PlansConfig maps the provider's price IDs to internal plan types.
// The mapping is static per deployment and supplied through the environment.
type PlansConfig struct {
	MonthlyPriceID string `env:"PADDLE_PRO_MONTHLY_PRICE_ID,required"`
	YearlyPriceID  string `env:"PADDLE_PRO_YEARLY_PRICE_ID,required"`
}

// CreditsConfig holds the free-tier credit grants. Signup and churn values
// differ deliberately and are configured separately so the product owner
// controls the asymmetry.
type CreditsConfig struct {
	FreeSignupCredits int `env:"FREE_SIGNUP_CREDITS" envDefault:"30"`
	FreeChurnCredits  int `env:"FREE_CHURN_CREDITS" envDefault:"3"`
}

// PlanDetails is the feature blob served by the subscription details API.
type PlanDetails struct {
	PlanType    PlanType `json:"planType"`
	Name        string   `json:"name"`
	PriceUSD    string   `json:"price"`
	Interval    string   `json:"interval"`
	PoemCredits int      `json:"poemCredits"` // -1 means unlimited
	Features    []string `json:"features"`
}

// Plans resolves provider price IDs to plan types and serves plan details.
type Plans struct {
	byPriceID map[string]PlanType
	priceByPT map[PlanType]string
	credits   CreditsConfig
}

// NewPlans builds the catalog from config.
func NewPlans(cfg PlansConfig, credits CreditsConfig) *Plans {
	return &Plans{
		byPriceID: map[string]PlanType{
			cfg.MonthlyPriceID: PlanMonthly,
			cfg.YearlyPriceID:  PlanYearly,
		},
		priceByPT: map[PlanType]string{
			PlanMonthly: cfg.MonthlyPriceID,
			PlanYearly:  cfg.YearlyPriceID,
		},
		credits: credits,
	}
}

// Resolve maps an external price ID to a plan type. Unknown price IDs
// resolve to PlanFree with ok=false; callers log the mismatch but never
// fail the webhook over it.
func (p *Plans) Resolve(priceID string) (PlanType, bool) {
	if pt, ok := p.byPriceID[priceID]; ok {
		return pt, true
	}
	return PlanFree, false
}

// PriceID returns the provider price ID for a paid plan type.
func (p *Plans) PriceID(pt PlanType) (string, bool) {
	id, ok := p.priceByPT[pt]
	return id, ok && id != ""
}

// Credits returns the free-tier credit configuration.
func (p *Plans) Credits() CreditsConfig {
	return p.credits
}

// Details returns the feature blob for a plan type.
func (p *Plans) Details(pt PlanType) PlanDetails {
	switch pt {
	case PlanMonthly:
		return PlanDetails{
			PlanType:    PlanMonthly,
			Name:        "Pro Monthly",
			PriceUSD:    "7.00",
			Interval:    "month",
			PoemCredits: UnlimitedCredits,
			Features: []string{
				"Unlimited poem generations",
				"All poem types and lengths",
				"Poem history and favorites",
				"Priority generation queue",
			},
		}
	case PlanYearly:
		return PlanDetails{
			PlanType:    PlanYearly,
			Name:        "Pro Yearly",
			PriceUSD:    "47.00",
			Interval:    "year",
			PoemCredits: UnlimitedCredits,
			Features: []string{
				"Unlimited poem generations",
				"All poem types and lengths",
				"Poem history and favorites",
				"Priority generation queue",
				"Two months free vs monthly",
			},
		}
	default:
		return PlanDetails{
			PlanType:    PlanFree,
			Name:        "Free",
			PriceUSD:    "0.00",
			Interval:    "none",
			PoemCredits: p.credits.FreeSignupCredits,
			Features: []string{
				"Limited poem generations",
				"Standard poem types",
			},
		}
	}
}
