// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package resp3

import "fmt"

// ProtocolErrorCode enumerates the protocol-domain error codes the parser
// can raise. These are translated to rediscoro.Error at the connection
// boundary; resp3 itself stays free of the root package to avoid an import
// cycle.
type ProtocolErrorCode string

const (
	ErrInvalidTypeByte   ProtocolErrorCode = "invalid_type_byte"
	ErrInvalidLength     ProtocolErrorCode = "invalid_length"
	ErrInvalidInteger    ProtocolErrorCode = "invalid_integer"
	ErrInvalidDouble     ProtocolErrorCode = "invalid_double"
	ErrInvalidBoolean    ProtocolErrorCode = "invalid_boolean"
	ErrInvalidNull       ProtocolErrorCode = "invalid_null"
	ErrInvalidBulkTrailr ProtocolErrorCode = "invalid_bulk_trailer"
	ErrInvalidMapPairs   ProtocolErrorCode = "invalid_map_pairs"
	ErrInvalidState      ProtocolErrorCode = "invalid_state"
	ErrLimitExceeded     ProtocolErrorCode = "limit_exceeded"
)

// ProtocolError is returned by the parser on any malformed input or
// resource-limit violation. Once raised, the parser is sticky-failed until
// Reset is called.
type ProtocolError struct {
	Code   ProtocolErrorCode
	Detail string
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("resp3: %s", e.Code)
	}
	return fmt.Sprintf("resp3: %s: %s", e.Code, e.Detail)
}

func protoErr(code ProtocolErrorCode, detail string) *ProtocolError {
	return &ProtocolError{Code: code, Detail: detail}
}
