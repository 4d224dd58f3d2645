// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package tracer

import (
	"fmt"
	"strconv"
	"strings"
)

// GenerateID returns a new random trace or span identifier. The value
// is uniformly distributed over 63 bits: the top bit is always clear so
// that the identifier stays positive when represented as a signed
// 64-bit integer by other tracing libraries.
func GenerateID() uint64 {
	return random.Uint63()
}

// FormatDecimal returns the decimal string of id, the representation
// used by the Datadog propagation headers and the correlation
// attributes.
func FormatDecimal(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// FormatHex returns the 16 digit zero-padded lowercase hexadecimal
// string of id, the representation used by the B3 and W3C propagation
// headers.
func FormatHex(id uint64) string {
	return fmt.Sprintf("%016x", id)
}

// ParseDecimal parses an identifier from its decimal string. Negative
// values are accepted and mapped to their two's complement, as some
// tracing libraries serialize identifiers as signed 64-bit integers.
func ParseDecimal(str string) (uint64, error) {
	if strings.HasPrefix(str, "-") {
		id, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint64(id), nil
	}
	return strconv.ParseUint(str, 10, 64)
}

// ParseHex parses an identifier from a hexadecimal string of up to 16
// digits. The full 64-bit value is preserved so that identifiers
// extracted from foreign headers round-trip unchanged.
func ParseHex(str string) (uint64, error) {
	return strconv.ParseUint(str, 16, 64)
}
