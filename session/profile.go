package session

// Profile is the user as the backend knows them, served at ProfilePath.
type Profile struct {
	Id               int64    `json:"id"`
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	Picture          *string  `json:"picture,omitempty"`
	SubscriptionTier string   `json:"subscription_tier,omitempty"`
	LegacyTier       string   `json:"tier,omitempty"`
	Premium          bool     `json:"is_premium"`
	Roles            []string `json:"roles,omitempty"`
	KindeId          string   `json:"kinde_id"`
	GoogleId         *string  `json:"google_id,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

const (
	// DefaultDisplayName is shown for a profile with neither name nor email.
	DefaultDisplayName = "User"

	// DefaultTier applies when the backend reports no tier.
	DefaultTier = "free"
)

// DisplayName is the name, else the email, else DefaultDisplayName. It is
// safe to call on a nil Profile.
func (p *Profile) DisplayName() string {
	switch {
	case p == nil:
		return DefaultDisplayName
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	default:
		return DefaultDisplayName
	}
}

// Tier is the subscription tier. Older backends report it as "tier".
func (p *Profile) Tier() string {
	switch {
	case p == nil:
		return DefaultTier
	case p.SubscriptionTier != "":
		return p.SubscriptionTier
	case p.LegacyTier != "":
		return p.LegacyTier
	default:
		return DefaultTier
	}
}

// IsPremium reports the backend's premium flag; false for a nil Profile.
func (p *Profile) IsPremium() bool {
	return p != nil && p.Premium
}

// PictureURL returns the picture or "" when there is none.
func (p *Profile) PictureURL() string {
	if p == nil || p.Picture == nil {
		return ""
	}
	return *p.Picture
}

// View is the profile as served to the browser, derived fields included.
type View struct {
	*Profile
	DisplayName   string `json:"display_name"`
	EffectiveTier string `json:"effective_tier"`
	IsPremium     bool   `json:"premium"`
}

// NewView derives the browser view of p.
func NewView(p *Profile) View {
	return View{
		Profile:       p,
		DisplayName:   p.DisplayName(),
		EffectiveTier: p.Tier(),
		IsPremium:     p.IsPremium(),
	}
}
