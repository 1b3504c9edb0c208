package realtime

import "github.com/dmehra2102/walkup-orders/pkg/apperr"

var (
	ErrUnauthorized  = apperr.New(apperr.KindUnauthorized, "unauthorized", "staff topic requires a staff identity")
	ErrInvalidTopic  = apperr.New(apperr.KindValidation, "invalid_topic", "unknown topic or missing topic key")
	ErrNotRegistered = apperr.New(apperr.KindValidation, "not_registered", "connection is not registered")
	ErrClosed        = apperr.New(apperr.KindTransient, "router_closed", "router is shut down")
)
