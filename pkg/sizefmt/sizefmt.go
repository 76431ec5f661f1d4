// Copyright 2025 Stagegate Authors
// SPDX-License-Identifier: Apache-2.0

// Package sizefmt renders object sizes for listing responses.
package sizefmt

import (
	"math"
	"strconv"
)

var units = []string{"Bytes", "KB", "MB", "GB", "TB", "PB"}

// HumanSize renders a byte count using 1024-based units, rounded to the
// nearest whole unit. Zero renders as "0 Byte"; values beyond PB stay in PB.
func HumanSize(n int64) string {
	if n <= 0 {
		return "0 Byte"
	}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}
	v := math.Round(float64(n) / math.Pow(1024, float64(i)))
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + units[i]
}
