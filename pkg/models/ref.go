package models

import "fmt"

// PaymentType discriminates the obligation a penalty or payment transaction points at.
type PaymentType string

const (
	PaymentTypeDeposit   PaymentType = "deposit"
	PaymentTypeInterest  PaymentType = "interest"
	PaymentTypePrincipal PaymentType = "principal"
	PaymentTypePenalty   PaymentType = "penalty"
)

// PaymentRef is a typed reference to one payable obligation. Build it with the
// constructors below rather than by hand so the tag always matches the table.
type PaymentRef struct {
	Type PaymentType
	ID   uint
}

func DepositRef(id uint) PaymentRef   { return PaymentRef{Type: PaymentTypeDeposit, ID: id} }
func InterestRef(id uint) PaymentRef  { return PaymentRef{Type: PaymentTypeInterest, ID: id} }
func PrincipalRef(id uint) PaymentRef { return PaymentRef{Type: PaymentTypePrincipal, ID: id} }

// ParsePaymentType accepts the wire names used by the API and the gateway udf fields.
func ParsePaymentType(s string) (PaymentType, error) {
	switch PaymentType(s) {
	case PaymentTypeDeposit, PaymentTypeInterest, PaymentTypePrincipal, PaymentTypePenalty:
		return PaymentType(s), nil
	}
	return "", NewValidationError("payment_type", "must be one of deposit interest principal penalty")
}

// Validate reports whether the reference is well formed.
func (r PaymentRef) Validate() error {
	if _, err := ParsePaymentType(string(r.Type)); err != nil {
		return err
	}
	if r.ID == 0 {
		return NewValidationError("related_object_id", "is required")
	}
	return nil
}

// Penalizable reports whether the accrual engine charges penalties against this kind.
func (r PaymentRef) Penalizable() bool {
	return r.Type == PaymentTypeDeposit || r.Type == PaymentTypeInterest
}

func (r PaymentRef) String() string {
	return fmt.Sprintf("%s#%d", r.Type, r.ID)
}
