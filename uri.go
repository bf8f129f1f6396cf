/*
 * Metabox - Size-bounded Asset Metadata Registry
 *
 * Copyright Flow Foundation
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *   http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package metabox

import (
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
)

const (
	uriScheme           = "algorand://"
	uriAppPath          = "app"
	uriBoxQuery         = "box"
	uriNetAuthPrefix    = "net:"
	complianceARCPrefix = "arc"
	complianceSeparator = "+"
)

// Compliance is the list of ARC numbers in a URI fragment, e.g. "#arc3" or "#arc89+62".
type Compliance []uint64

// ParseCompliance parses a compliance fragment with or without the leading '#'.
// Invalid fragments parse as empty compliance.
func ParseCompliance(fragment string) Compliance {
	fragment = strings.TrimPrefix(fragment, "#")
	if !strings.HasPrefix(fragment, complianceARCPrefix) {
		return nil
	}

	remainder := fragment[len(complianceARCPrefix):]
	if remainder == "" {
		return nil
	}

	parts := strings.Split(remainder, complianceSeparator)
	arcs := make(Compliance, 0, len(parts))
	for _, p := range parts {
		// decimal digits only, no leading zeros
		if p == "" || (len(p) > 1 && p[0] == '0') {
			return nil
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil
		}
		arcs = append(arcs, n)
	}

	if arcs.Has(3) && len(arcs) > 1 {
		// ARC-3 must be the sole entry
		return nil
	}
	return arcs
}

func (c Compliance) Has(arc uint64) bool {
	for _, n := range c {
		if n == arc {
			return true
		}
	}
	return false
}

// Fragment renders c without the leading '#'. Empty compliance renders as "".
func (c Compliance) Fragment() (string, error) {
	if len(c) == 0 {
		return "", nil
	}
	if c.Has(3) && len(c) > 1 {
		return "", NewInvalidURIError("", "ARC-3 must be the sole entry of the compliance fragment")
	}

	var sb strings.Builder
	sb.WriteString(complianceARCPrefix)
	for i, n := range c {
		if i > 0 {
			sb.WriteString(complianceSeparator)
		}
		sb.WriteString(strconv.FormatUint(n, 10))
	}
	return sb.String(), nil
}

// URI is an ARC-90 reference to a record box:
//
//	algorand://net:testnet/app/<registry id>?box=<base64url box key>#arc89
//	algorand://app/<registry id>?box=<base64url box key>#arc89  (mainnet)
//
// A partial URI has an empty box value.
type URI struct {
	NetAuth    string
	RegistryID uint64
	BoxName    []byte
	Compliance Compliance
}

// ParseURI parses an ARC-90 record URI.
func ParseURI(s string) (URI, error) {
	if !strings.HasPrefix(s, uriScheme) {
		return URI{}, NewInvalidURIError(s, "not an algorand:// URI")
	}
	rest := s[len(uriScheme):]

	var u URI

	rest, fragment, _ := strings.Cut(rest, "#")
	u.Compliance = ParseCompliance(fragment)

	rest, rawQuery, hasQuery := strings.Cut(rest, "?")
	if !hasQuery {
		return URI{}, NewInvalidURIError(s, "missing box query parameter")
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return URI{}, NewInvalidURIError(s, "malformed query: "+err.Error())
	}
	boxValues, ok := query[uriBoxQuery]
	if !ok {
		return URI{}, NewInvalidURIError(s, "missing box query parameter")
	}

	authority, path, _ := strings.Cut(rest, "/")
	segments := make([]string, 0, 2)
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	var rawID string
	switch {
	case strings.HasPrefix(authority, uriNetAuthPrefix):
		if len(segments) < 2 || segments[0] != uriAppPath {
			return URI{}, NewInvalidURIError(s, "expected path /app/<id> for net: URIs")
		}
		u.NetAuth = authority
		rawID = segments[1]

	case authority == uriAppPath && len(segments) >= 1:
		rawID = segments[0]

	default:
		return URI{}, NewInvalidURIError(s, "unrecognized ARC-90 app URI shape")
	}

	u.RegistryID, err = strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return URI{}, NewInvalidURIError(s, "invalid app id in path")
	}

	if len(boxValues) > 0 && boxValues[0] != "" {
		boxName, err := decodeBoxName(boxValues[0])
		if err != nil {
			return URI{}, NewInvalidURIError(s, "invalid base64url box name")
		}
		if len(boxName) != AssetIDLength {
			return URI{}, NewInvalidURIError(s, "box name must be an 8-byte asset id")
		}
		u.BoxName = boxName
	}

	return u, nil
}

func decodeBoxName(s string) ([]byte, error) {
	b, err := base64.URLEncoding.DecodeString(s)
	if err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// PartialURI returns the partial URI of a registry.
func PartialURI(netAuth string, registryID uint64) URI {
	return URI{NetAuth: netAuth, RegistryID: registryID}
}

func (u URI) IsPartial() bool {
	return u.BoxName == nil
}

// AssetID returns the asset id in the box query, if any.
func (u URI) AssetID() (AssetID, bool) {
	if u.IsPartial() {
		return 0, false
	}
	id, err := NewAssetIDFromBoxKey(u.BoxName)
	if err != nil {
		return 0, false
	}
	return id, true
}

// WithAssetID returns u completed with the box key of id.
func (u URI) WithAssetID(id AssetID) URI {
	u.BoxName = id.BoxKey()
	return u
}

// WithCompliance returns u with the given compliance fragment.
func (u URI) WithCompliance(c Compliance) URI {
	u.Compliance = c
	return u
}

// prefix renders the URI up to and including "?box=".
func (u URI) prefix() string {
	var sb strings.Builder
	sb.WriteString(uriScheme)
	if u.NetAuth != "" {
		sb.WriteString(u.NetAuth)
		sb.WriteString("/")
	}
	sb.WriteString(uriAppPath)
	sb.WriteString("/")
	sb.WriteString(strconv.FormatUint(u.RegistryID, 10))
	sb.WriteString("?")
	sb.WriteString(uriBoxQuery)
	sb.WriteString("=")
	return sb.String()
}

// Render returns the URI string. It fails if the compliance fragment
// can't be rendered.
func (u URI) Render() (string, error) {
	fragment, err := u.Compliance.Fragment()
	if err != nil {
		// err is categorized already by Compliance.Fragment()
		return "", err
	}

	s := u.prefix()
	if u.BoxName != nil {
		s += url.QueryEscape(base64.URLEncoding.EncodeToString(u.BoxName))
	}
	if fragment != "" {
		s += "#" + fragment
	}
	return s, nil
}

func (u URI) String() string {
	s, err := u.Render()
	if err != nil {
		return u.prefix()
	}
	return s
}

// BoxNameBase64 returns the box key in standard padded base64,
// as node box APIs expect it.
func (u URI) BoxNameBase64() (string, error) {
	if u.IsPartial() {
		return "", NewInvalidURIError(u.String(), "partial URI has no box name")
	}
	return base64.StdEncoding.EncodeToString(u.BoxName), nil
}

// CompletePartialAssetURL completes an asset URL holding a partial URI
// with the box key of id. Complete URIs are returned re-rendered.
func CompletePartialAssetURL(assetURL string, id AssetID) (string, error) {
	u, err := ParseURI(assetURL)
	if err != nil {
		// err is categorized already by ParseURI()
		return "", err
	}
	if u.IsPartial() {
		u = u.WithAssetID(id)
	}
	// err is categorized already by URI.Render()
	return u.Render()
}
