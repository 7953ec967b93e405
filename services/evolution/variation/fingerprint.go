// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package variation

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/AleutianAI/AleutianEvolve/services/evolution/datatypes"
)

// Fingerprint returns a short stable content hash of the document.
//
// The hash is FNV-1a 64 over the canonical JSON encoding. It exists for
// lineage trails and routing identity only; it is never used for equality or
// anything security-sensitive, so a non-cryptographic hash is sufficient.
func Fingerprint(doc datatypes.ConfigurationDocument) string {
	data, err := json.Marshal(doc)
	if err != nil {
		// Marshal of these plain structs cannot fail; keep the signature
		// simple and return a fixed sentinel if it ever does.
		return "fp-invalid"
	}
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}
