package domain

import "github.com/dmehra2102/walkup-orders/pkg/apperr"

var (
	ErrNoLineItems          = apperr.New(apperr.KindValidation, "no_line_items", "order must contain at least one line item")
	ErrInvalidItemQuantity  = apperr.New(apperr.KindValidation, "invalid_item_quantity", "item quantity must be at least 1")
	ErrInvalidPaymentMethod = apperr.New(apperr.KindValidation, "invalid_payment_method", "payment method must be online or offline")
	ErrInvalidStatus        = apperr.New(apperr.KindValidation, "invalid_status", "unknown order status")
	ErrOwnerRequired        = apperr.New(apperr.KindValidation, "owner_required", "customer orders require an owner")
	ErrContactRequired      = apperr.New(apperr.KindValidation, "contact_required", "manual orders require an email or phone contact")
	ErrMissingOrderID       = apperr.New(apperr.KindValidation, "missing_order_id", "order id is required")

	ErrItemNotFound    = apperr.New(apperr.KindNotFound, "item_not_found", "catalog item not found")
	ErrItemUnavailable = apperr.New(apperr.KindStateConflict, "item_unavailable", "catalog item is not available")
	ErrOrderNotFound   = apperr.New(apperr.KindNotFound, "order_not_found", "order not found")

	ErrIllegalStatusTransition = apperr.New(apperr.KindStateConflict, "illegal_status_transition", "order status cannot move to the requested state")
	ErrPaymentAlreadyConfirmed = apperr.New(apperr.KindStateConflict, "payment_already_confirmed", "payment is already confirmed")
	ErrOrderNotClaimable       = apperr.New(apperr.KindStateConflict, "order_not_claimable", "order cannot be claimed")
	ErrContactMismatch         = apperr.New(apperr.KindStateConflict, "contact_mismatch", "contact does not match the order")

	// ErrVersionConflict is returned by stores when a compare-and-set loses.
	ErrVersionConflict  = apperr.New(apperr.KindTransient, "version_conflict", "order was modified concurrently")
	ErrConcurrentUpdate = apperr.New(apperr.KindTransient, "concurrent_update", "order is being modified concurrently, retry")
)
