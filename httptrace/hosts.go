// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package httptrace

import (
	"net/url"
	"strings"
)

// hostSet holds the configured first-party hosts. Matching respects dot
// boundaries: "example.com" matches itself and "api.example.com" but
// never "notexample.com".
type hostSet struct {
	hosts []string
}

func newHostSet(hosts []string) *hostSet {
	s := &hostSet{hosts: make([]string, 0, len(hosts))}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			s.hosts = append(s.hosts, h)
		}
	}
	return s
}

// matches reports whether the URL targets a first-party host.
func (s *hostSet) matches(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, h := range s.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
