// Package dnsname converts between fully qualified record names and the
// zone-relative host labels some provider APIs expect.
package dnsname

import "strings"

// Apex is the host label for the zone apex.
const Apex = "@"

// Relative returns name relative to zone, e.g. "home" for "home.example.com" in "example.com".
// A name outside the zone is returned unchanged, which lets callers pass host labels directly.
func Relative(name, zone string) string {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	zone = strings.ToLower(strings.TrimSuffix(zone, "."))
	if name == zone || name == "" {
		return Apex
	}
	if strings.HasSuffix(name, "."+zone) {
		return strings.TrimSuffix(name, "."+zone)
	}
	return name
}

// Absolute is the inverse of Relative.
func Absolute(host, zone string) string {
	zone = strings.TrimSuffix(zone, ".")
	if host == Apex || host == "" {
		return zone
	}
	return host + "." + zone
}
