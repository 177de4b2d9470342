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

package common

import (
	"fmt"
	"strings"

	"metal-trade-core/internal/api"
)

// ParseAddresses splits a comma separated -address flag into normalized,
// de-duplicated wallet addresses in the order given.
func ParseAddresses(flagValue string) ([]string, error) {
	var addresses []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(flagValue, ",") {
		address := api.NormalizeAddress(part)
		if address == "" || seen[address] {
			continue
		}
		seen[address] = true
		addresses = append(addresses, address)
	}
	if len(addresses) == 0 {
		return nil, fmt.Errorf("at least one address is required")
	}
	return addresses, nil
}
