// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package artifact

import (
	"strings"
)

// SanitizeFilename strips directory components, any character outside a
// safe ASCII subset, and leading dots, matching werkzeug.utils.secure_filename's behaviour
// referenced by original_source/app/pipelines/services.py. Returns "" if
// nothing safe remains (callers must reject that as Invalid, per §4.3).
func SanitizeFilename(name string) string {
	// Strip any path components; only the base name is kept.
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimLeft(name, ".")

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
