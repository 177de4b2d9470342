/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"errors"
	"fmt"

	"metal-trade-core/internal/pricing"
	"metal-trade-core/internal/store"

	"go.uber.org/zap"
)

// ErrorCode classifies a rejected request for the caller
type ErrorCode string

const (
	CodeInvalidRequest      ErrorCode = "invalid_request"
	CodeInsufficientBalance ErrorCode = "insufficient_balance"
	CodeLockExists          ErrorCode = "lock_exists"
	CodeLockNotFound        ErrorCode = "lock_not_found"
	CodeLockExpired         ErrorCode = "lock_expired"
	CodeOrderNotFound       ErrorCode = "order_not_found"
	CodeOrderNotPending     ErrorCode = "order_not_pending"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodePriceUnavailable    ErrorCode = "price_unavailable"
	CodeInternal            ErrorCode = "internal_error"
)

// Error is the user-facing form of every core failure
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func invalid(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

var validationErrors = []error{
	store.ErrInvalidAmount,
	store.ErrInvalidAsset,
	store.ErrInvalidSide,
	store.ErrInvalidPrice,
	store.ErrInvalidPaymentMethod,
	store.ErrInvalidExpiry,
	store.ErrInvalidAddress,
}

// toError maps a core error to an *Error. Unclassified errors are logged and
// reported without internal detail.
func toError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return &Error{Code: CodeInvalidRequest, Message: err.Error(), Err: err}
		}
	}

	code := CodeInternal
	switch {
	case errors.Is(err, store.ErrInsufficientBalance):
		code = CodeInsufficientBalance
	case errors.Is(err, store.ErrLockExists):
		code = CodeLockExists
	case errors.Is(err, store.ErrLockNotFound):
		code = CodeLockNotFound
	case errors.Is(err, store.ErrLockExpired):
		code = CodeLockExpired
	case errors.Is(err, store.ErrOrderNotFound):
		code = CodeOrderNotFound
	case errors.Is(err, store.ErrOrderNotPending):
		code = CodeOrderNotPending
	case errors.Is(err, store.ErrUnauthorized):
		code = CodeUnauthorized
	case errors.Is(err, pricing.ErrPriceUnavailable):
		code = CodePriceUnavailable
	}

	if code == CodeInternal {
		zap.L().Error("Request failed", zap.String("operation", op), zap.Error(err))
		return &Error{Code: code, Message: fmt.Sprintf("failed to %s", op), Err: err}
	}
	return &Error{Code: code, Message: err.Error(), Err: err}
}
