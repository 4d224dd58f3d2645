// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package ddrum

import (
	"mime"
	"strings"
)

// ResourceType classifies the kind of resource a tracked request loaded.
// The values match the resource types understood by the Datadog RUM
// intake.
type ResourceType string

const (
	// ResourceTypeDocument marks HTML documents.
	ResourceTypeDocument ResourceType = "document"
	// ResourceTypeImage marks image resources.
	ResourceTypeImage ResourceType = "image"
	// ResourceTypeXHR marks XMLHttpRequest-style API calls.
	ResourceTypeXHR ResourceType = "xhr"
	// ResourceTypeBeacon marks analytics beacons.
	ResourceTypeBeacon ResourceType = "beacon"
	// ResourceTypeCSS marks stylesheets.
	ResourceTypeCSS ResourceType = "css"
	// ResourceTypeFetch marks fetch API calls.
	ResourceTypeFetch ResourceType = "fetch"
	// ResourceTypeFont marks font resources.
	ResourceTypeFont ResourceType = "font"
	// ResourceTypeJS marks scripts.
	ResourceTypeJS ResourceType = "js"
	// ResourceTypeMedia marks audio and video resources.
	ResourceTypeMedia ResourceType = "media"
	// ResourceTypeOther marks resources with no better classification.
	ResourceTypeOther ResourceType = "other"
	// ResourceTypeNative marks resources loaded by native code, the
	// fallback classification for this SDK.
	ResourceTypeNative ResourceType = "native"
)

// ResourceTypeFromContentType derives the resource classification from
// the value of a Content-Type response header. Unknown or malformed
// values classify as ResourceTypeNative.
func ResourceTypeFromContentType(contentType string) ResourceType {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ResourceTypeNative
	}
	primary, _, _ := strings.Cut(mediaType, "/")
	switch primary {
	case "image":
		return ResourceTypeImage
	case "audio", "video":
		return ResourceTypeMedia
	case "font":
		return ResourceTypeFont
	}
	switch mediaType {
	case "text/css":
		return ResourceTypeCSS
	case "text/javascript", "application/javascript":
		return ResourceTypeJS
	case "text/html":
		return ResourceTypeDocument
	}
	return ResourceTypeNative
}
