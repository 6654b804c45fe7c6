package domain

type SessionKind string

const (
	KindAnonymous SessionKind = "anonymous"
	KindBuyer     SessionKind = "buyer"
	KindSeller    SessionKind = "seller"
	KindAdmin     SessionKind = "admin"
)

// Role reports whether k names a role an account can sign in as.
func (k SessionKind) Role() bool {
	return k == KindBuyer || k == KindSeller || k == KindAdmin
}

// Session is the resolved identity behind a session cookie. Exactly one of
// Buyer, Seller or Admin is set, matching Kind; all are nil when anonymous.
type Session struct {
	ID     string
	Kind   SessionKind
	UID    string
	Email  string
	Buyer  *Buyer
	Seller *Seller
	Admin  *Admin
}

func AnonymousSession(sid string) Session {
	return Session{ID: sid, Kind: KindAnonymous}
}

func (s Session) Anonymous() bool { return s.Kind == KindAnonymous || s.Kind == "" }

// IsPending marks sellers that may sign in but not sell yet.
func (s Session) IsPending() bool {
	return s.Kind == KindSeller && s.Seller != nil && s.Seller.Status == SellerPending
}

func (s Session) DisplayName() string {
	switch s.Kind {
	case KindBuyer:
		return s.Buyer.Name
	case KindSeller:
		return s.Seller.BrandName
	case KindAdmin:
		return s.Admin.Name
	}
	return ""
}
