package models

// Payment methods accepted for orders. PIX is the only gateway-backed method;
// the manual methods await an operator confirmation and the free methods mark
// the order paid on creation.
const (
	PaymentMethodPix          = "PIX"
	PaymentMethodCash         = "MANUAL_CASH"
	PaymentMethodBankTransfer = "MANUAL_TRANSFER"
	PaymentMethodFree         = "FREE"
	PaymentMethodCourtesy     = "COURTESY"
)

var ManualPaymentMethods = []string{PaymentMethodCash, PaymentMethodBankTransfer}

var FreePaymentMethods = []string{PaymentMethodFree, PaymentMethodCourtesy}

// AdminOnlyPaymentMethods may only be selected by administrators.
var AdminOnlyPaymentMethods = []string{PaymentMethodCourtesy}

func IsManualPaymentMethod(method string) bool {
	return containsMethod(ManualPaymentMethods, method)
}

func IsFreePaymentMethod(method string) bool {
	return containsMethod(FreePaymentMethods, method)
}

func IsAdminOnlyPaymentMethod(method string) bool {
	return containsMethod(AdminOnlyPaymentMethods, method)
}

func IsKnownPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodPix, PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodFree, PaymentMethodCourtesy:
		return true
	}
	return false
}

func containsMethod(methods []string, method string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}
