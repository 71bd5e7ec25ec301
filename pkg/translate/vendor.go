// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package translate converts tool catalogs, tool-call envelopes, and
// tool results between the internal representation and the vendor
// wire formats (Anthropic, OpenAI, Gemini).
//
// All functions are pure: no I/O, no shared state. Adding a vendor
// means adding one constant and one branch per exported function.
package translate

import "fmt"

// Vendor identifies a function-calling wire format.
type Vendor string

const (
	// VendorAnthropic is the Anthropic Messages API tool format.
	VendorAnthropic Vendor = "anthropic"
	// VendorOpenAI is the OpenAI Chat Completions function format.
	VendorOpenAI Vendor = "openai"
	// VendorGemini is the Gemini function-declarations format.
	VendorGemini Vendor = "gemini"
)

// Vendors lists every supported vendor tag.
func Vendors() []Vendor {
	return []Vendor{VendorAnthropic, VendorOpenAI, VendorGemini}
}

// ParseVendor validates an inbound vendor string.
func ParseVendor(s string) (Vendor, error) {
	switch Vendor(s) {
	case VendorAnthropic:
		return VendorAnthropic, nil
	case VendorOpenAI:
		return VendorOpenAI, nil
	case VendorGemini:
		return VendorGemini, nil
	default:
		return "", fmt.Errorf("unknown vendor %q (supported: anthropic, openai, gemini)", s)
	}
}

// String implements fmt.Stringer.
func (v Vendor) String() string {
	return string(v)
}

// errUnknownVendor is the shared failure for exhaustive vendor switches.
func errUnknownVendor(v Vendor) error {
	return fmt.Errorf("unknown vendor %q", v)
}
