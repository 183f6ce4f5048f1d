package domain

// User roles
const (
	RoleGuest = "guest"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

// User is a company-scoped account. Guests are created implicitly when tickets are reserved for them.
type User struct {
	ID        int64   `json:"id"`
	CompanyID int64   `json:"company_id"`
	Role      string  `json:"role"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     string  `json:"email"`
}

// FullName joins the non-empty name parts
func (u *User) FullName() string {
	var first, last string
	if u.FirstName != nil {
		first = *u.FirstName
	}
	if u.LastName != nil {
		last = *u.LastName
	}
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	default:
		return last
	}
}

// Company is a tenant. Stripe and Donorfy credentials are per company; empty values fall back to
// the service defaults.
type Company struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Domain              string `json:"domain"`
	Currency            string `json:"currency"`
	StripePublicKey     string `json:"-"`
	StripeSecretKey     string `json:"-"`
	StripeWebhookSecret string `json:"-"`
	DonorfyAPIKey       string `json:"-"`
	DonorfyAccessKey    string `json:"-"`
}
