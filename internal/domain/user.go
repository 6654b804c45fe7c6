package domain

type BuyerStatus string

const (
	BuyerUnblocked BuyerStatus = "unblocked"
	BuyerBlocked   BuyerStatus = "blocked"
)

func (s BuyerStatus) Valid() bool { return s == BuyerUnblocked || s == BuyerBlocked }

type SellerStatus string

const (
	SellerPending  SellerStatus = "pending"
	SellerApproved SellerStatus = "approved"
	SellerBlocked  SellerStatus = "blocked"
)

func (s SellerStatus) Valid() bool {
	switch s {
	case SellerPending, SellerApproved, SellerBlocked:
		return true
	}
	return false
}

type Buyer struct {
	UID       string      `json:"uid"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Phone     string      `json:"phone,omitempty"`
	Address   string      `json:"address,omitempty"`
	Status    BuyerStatus `json:"status"`
	CreatedAt string      `json:"createdAt"`
	UpdatedAt string      `json:"updatedAt,omitempty"`
}

type Seller struct {
	UID         string       `json:"uid"`
	Email       string       `json:"email"`
	BrandName   string       `json:"brandName"`
	OwnerName   string       `json:"ownerName,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Address     string       `json:"address,omitempty"`
	Description string       `json:"description,omitempty"`
	Website     string       `json:"website"`
	Status      SellerStatus `json:"status"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt,omitempty"`
}

// Admin records are keyed by e-mail rather than uid.
type Admin struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}
